package email

import (
	"strings"
)

// Normalize lowercases and trims an address so lookups and the unique index
// agree on one spelling.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
