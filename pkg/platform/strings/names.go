// Package strings provides string helpers for composing person names and
// merging partial updates.
package strings

import (
	"strings"
)

// JoinNonEmpty trims each part and joins the non-empty ones with a single
// space.
//
// Example:
//
//	JoinNonEmpty("Juan", " ", "Dela Cruz")
//	// Returns: "Juan Dela Cruz"
func JoinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}

// Override returns the trimmed value of supplied whenever it is non-nil, so an
// explicit blank clears an optional field. A nil supplied keeps fallback.
func Override(supplied *string, fallback string) string {
	if supplied == nil {
		return fallback
	}
	return strings.TrimSpace(*supplied)
}

// Coalesce returns the trimmed value of supplied when it is non-nil and not
// blank, otherwise fallback.
func Coalesce(supplied *string, fallback string) string {
	if supplied == nil {
		return fallback
	}
	if trimmed := strings.TrimSpace(*supplied); trimmed != "" {
		return trimmed
	}
	return fallback
}
