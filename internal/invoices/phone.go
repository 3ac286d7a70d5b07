package invoices

import (
	"strings"
	"unicode"

	"github.com/ttacon/libphonenumber"

	"crm/pkg/models"
)

// NormalizePhone returns raw in E.164 form when it parses for region, and
// its bare digits otherwise, so "012-345 6789" and "+60123456789" compare
// equal for region MY.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if num, err := libphonenumber.Parse(raw, region); err == nil {
		return libphonenumber.Format(num, libphonenumber.E164)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
}

// ValidPhone reports whether raw is a dialable number for region.
func ValidPhone(raw, region string) bool {
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return false
	}
	return libphonenumber.IsValidNumber(num)
}

// InvalidPhones returns the phone numbers of inv that are not valid for
// region.
func InvalidPhones(inv models.Invoice, region string) []string {
	var out []string
	for _, p := range inv.Phones() {
		if !ValidPhone(p, region) {
			out = append(out, p)
		}
	}
	return out
}
