package dto

import (
	"regexp"

	"micro-savings-wallet/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var currencyCodeRe = regexp.MustCompile(`^[a-zA-Z]{3}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators installs the custom tags used by request DTOs.
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("currency_code", validateCurrencyCode)
	_ = v.RegisterValidation("idempotency_key", validateIdempotencyKey)
}

// validateCurrencyCode accepts three letters in either case; the ledger
// upper-cases and checks support.
func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyCodeRe.MatchString(fl.Field().String())
}

func validateIdempotencyKey(fl validator.FieldLevel) bool {
	return domain.ValidIdempotencyKey(fl.Field().String())
}
