package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Product is the read-only shape supplied by the catalog. The cart/order core
// never mutates it; stock is checked at ledger-write time only.
type Product struct {
	ID         int64
	CategoryID int64
	Name       string
	Slug       string
	Price      decimal.Decimal
	Stock      int
	Available  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Slugify lowercases, turns whitespace runs into single hyphens and drops
// everything that is not alphanumeric or a hyphen.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
