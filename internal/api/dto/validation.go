package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/craigfelt/zerobitone-ticket-service/pkg/util/errorutil"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report JSON field names in validation details.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct tags and converts failures into VALIDATION_FAILED
// with the offending fields and rules in details.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	fields := make([]string, 0, len(validationErrors))
	rules := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fe.Field())
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		rules[fe.Field()] = rule
	}
	return apperrors.NewValidationError("request validation failed", map[string]any{
		"fields": fields,
		"rules":  rules,
	})
}
