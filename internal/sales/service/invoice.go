package service

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// invoiceAttempts bounds the regenerate-and-retry loop on duplicate invoice
// numbers before falling back to a timestamp-derived identifier.
const invoiceAttempts = 5

// generateInvoiceNumber builds a candidate like "INV-ACME-493021".
func generateInvoiceNumber(prefix string) string {
	return fmt.Sprintf("INV-%s-%06d", strings.ToUpper(prefix), rand.Intn(1_000_000))
}

// fallbackInvoiceNumber is collision-proof for practical purposes: nanosecond
// timestamps do not repeat within one store's request rate.
func fallbackInvoiceNumber(prefix string) string {
	return fmt.Sprintf("INV-%s-%d", strings.ToUpper(prefix), time.Now().UnixNano())
}
