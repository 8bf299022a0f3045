package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

// Report 'json' tag name instead of struct field name
// Falls back to 'form' tag for multipart requests
func useJSONTagNames(fld reflect.StructField) string {
	tag := fld.Tag.Get("json")
	if tag == "" {
		tag = fld.Tag.Get("form")
	}

	name := strings.SplitN(tag, ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func fieldMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required", "notblank":
		return "This field is required"
	case "min":
		return "Value is too short (minimum " + fieldError.Param() + ")"
	case "max":
		return "Value is too long (maximum " + fieldError.Param() + ")"
	case "email":
		return "Invalid email"
	default:
		return "Invalid value"
	}
}
