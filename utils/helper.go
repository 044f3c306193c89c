package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var validate = validator.New()

// ValidateInput runs struct tag validation on an input payload.
func ValidateInput(input interface{}) error {
	return validate.Struct(input)
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"input": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	out := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var def T
	if len(defaults) > 0 {
		def = defaults[0]
	}
	return def
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

// ParseDecimal accepts display-formatted amounts ("20,000", "MMK 1,234.50").
func ParseDecimal(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if idx := strings.LastIndexAny(cleaned, " "); idx >= 0 {
		cleaned = cleaned[idx+1:]
	}
	return decimal.NewFromString(cleaned)
}
