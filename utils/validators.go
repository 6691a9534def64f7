package utils

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func InitValidator() {
	Validate = validator.New()
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("usercode", ValidateUserCodeRule)
	}
	Validate.RegisterValidation("usercode", ValidateUserCodeRule)
}

// ValidateUserCodeRule accepts directory codes: uppercase letters,
// digits, and underscores.
func ValidateUserCodeRule(fl validator.FieldLevel) bool {
	return ValidateUserCode(fl.Field().String())
}

func ValidateUserCode(code string) bool {
	if code == "" {
		return false
	}
	for _, char := range code {
		switch {
		case char >= 'A' && char <= 'Z':
		case char >= '0' && char <= '9':
		case char == '_':
		default:
			return false
		}
	}
	return !strings.HasPrefix(code, "_")
}
