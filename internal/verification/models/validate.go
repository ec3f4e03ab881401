package models

import (
	"strings"

	"citizenportal/pkg/platform/validation"
)

func validateStruct(s any) error {
	return validation.Struct(s)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
