// Package kpi folds invoice and receipt collections into the statistics
// shown on dashboards. Every function is pure: results are recomputed from
// the current collections and never stored.
package kpi

import (
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// fold groups items by key in order of first appearance and accumulates
// each group with add. Items with an empty key are skipped.
func fold[T, S any](items []T, key func(T) string, init func(name string) S, add func(*S, T)) []S {
	index := make(map[string]int)
	var out []S
	for _, item := range items {
		k := key(item)
		if k == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, init(k))
		}
		add(&out[i], item)
	}
	return out
}

// Rank returns a copy of stats sorted by amount, highest first. Equal
// amounts keep their input order.
func Rank[S any](stats []S, amount func(S) decimal.Decimal) []S {
	out := slices.Clone(stats)
	slices.SortStableFunc(out, func(a, b S) int {
		return amount(b).Cmp(amount(a))
	})
	return out
}

// Top returns at most n leading entries of ranked.
func Top[S any](ranked []S, n int) []S {
	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

// Rate returns part/total as a percentage, or 0 when total is 0.
func Rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Percent returns part/total as a percentage, or 0 when total is not
// positive.
func Percent(part, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	f, _ := part.Div(total).Mul(hundred).Float64()
	return f
}

// Average divides total by n, returning zero when n is 0.
func Average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n)))
}

func averageCount(total, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

func contains(names []string, name string) bool {
	return len(names) == 0 || slices.Contains(names, name)
}
