package ocr

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyAmount = regexp.MustCompile(`(?i)\b(?:RM|MYR)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	plainAmount    = regexp.MustCompile(`\b([0-9][0-9,]*\.[0-9]{2})\b`)
)

// DecodeDataURI splits a "data:<mime>;base64,<payload>" URI into the decoded
// bytes and its media type. Only image payloads are accepted.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", ErrInvalidDataURI
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, mime, ErrUnsupportedImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, mime, ErrInvalidDataURI
	}
	return data, mime, nil
}

// GuessAmount picks the largest amount in text. Amounts prefixed with RM or
// MYR win over bare decimals such as "1,234.50".
func GuessAmount(text string) (decimal.Decimal, bool) {
	if d, ok := largest(currencyAmount.FindAllStringSubmatch(text, -1)); ok {
		return d, true
	}
	return largest(plainAmount.FindAllStringSubmatch(text, -1))
}

func largest(matches [][]string) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, m := range matches {
		d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || !d.IsPositive() {
			continue
		}
		if !found || d.GreaterThan(best) {
			best, found = d, true
		}
	}
	return best, found
}
