package logger

import "strings"

// MaskAuthorization masks bearer tokens, preserving the scheme.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return "Bearer " + maskLast4(parts[1])
	}
	return maskLast4(value)
}

// MaskIdentifier masks a customer phone number or email address so loyalty
// logs never carry a full identifier. Emails keep their domain.
func MaskIdentifier(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if idx := strings.Index(value, "@"); idx >= 0 {
		return maskLast4(value[:idx]) + value[idx:]
	}
	return maskLast4(value)
}

func maskLast4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	// A value this short would be revealed entirely by a last-4 suffix.
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
