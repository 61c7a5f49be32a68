package dto

import (
	"strings"

	"casino-engine/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("currency", validateCurrency)
	}
}

// validateCurrency accepts cash or credits in any case.
func validateCurrency(fl validator.FieldLevel) bool {
	return ParseCurrency(fl.Field().String()).Valid()
}

// ParseCurrency normalises a request currency.
func ParseCurrency(s string) domain.Currency {
	return domain.Currency(strings.ToLower(strings.TrimSpace(s)))
}
