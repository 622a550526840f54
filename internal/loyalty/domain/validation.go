package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeIdentifier canonicalizes a phone or email so the same customer
// resolves to one global row. Emails are lowercased and trimmed; phone
// numbers keep only digits and a leading plus.
func NormalizeIdentifier(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "@") {
		return s
	}

	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveIdentifier picks the global identifier for a store-local customer,
// preferring phone over email. It returns the empty string when the customer
// has no usable contact field.
func ResolveIdentifier(phone, email string) (string, IdentifierType) {
	if p := NormalizeIdentifier(phone); p != "" {
		return p, IdentifierPhone
	}
	if e := NormalizeIdentifier(email); e != "" {
		return e, IdentifierEmail
	}
	return "", ""
}

// ComputeEarnedPoints converts a purchase amount to points: floor of the
// earn percentage, clamped to the per-transaction maximum.
func ComputeEarnedPoints(amount decimal.Decimal, earnPercent decimal.Decimal, maxPerTx int64) int64 {
	if amount.LessThanOrEqual(decimal.Zero) || earnPercent.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	pts := amount.Mul(earnPercent).Div(decimal.NewFromInt(100)).Floor().IntPart()
	if maxPerTx > 0 && pts > maxPerTx {
		return maxPerTx
	}
	return pts
}
