// Package validation wraps go-playground/validator with the portal's custom
// rules and folds failures into a single VALIDATION_ERROR keyed by JSON
// field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "citizenportal/pkg/domain-errors"
)

// DateLayout is the wire format of calendar dates such as a date of birth.
const DateLayout = "2006-01-02"

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,19}$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("pastdate", func(fl validator.FieldLevel) bool {
			d, err := time.Parse(DateLayout, fl.Field().String())
			return err == nil && d.Before(time.Now())
		})
		validate = v
	})
	return validate
}

// Struct runs the tag rules on s and reports every failing field at once.
func Struct(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate request")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = fieldMessage(fe)
	}
	return dErrors.NewValidation(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "phone":
		return "must be a valid phone number"
	case "pastdate":
		return "must be a past date in YYYY-MM-DD format"
	case "gt":
		return "must be a positive number"
	default:
		return "is invalid"
	}
}
