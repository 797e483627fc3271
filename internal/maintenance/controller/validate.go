package controller

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateInput runs the struct's validate tags and reports every failed
// field in snake_case.
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", e.ErrValidation, err)
	}

	verr := &e.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Violations = append(verr.Violations, e.FieldViolation{
			Field:       snakeCase(fe.Field()),
			Description: describe(fe),
		})
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gtefield":
		return "must not be before " + snakeCase(fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// snakeCase turns a Go field name into its wire name: MaintenanceTeamID
// becomes maintenance_team_id.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
