package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GeneratePaymentReference builds a per-attempt gateway reference. Uniqueness
// is enforced downstream at settlement, not at generation, so timestamp plus
// random suffix is sufficient here.
func GeneratePaymentReference(eventID string) (string, error) {
	suffix, err := GenerateCode(5)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EVT_%s_%d_%s", eventID, time.Now().UnixMilli(), strings.ToLower(suffix)), nil
}

// GenerateTicketNumber builds a human-presentable globally unique ticket id.
func GenerateTicketNumber() (string, error) {
	suffix, err := GenerateCode(3)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%d-%s", time.Now().UnixMilli(), suffix), nil
}
