package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrRuleNotFound    = errors.New("fee rule not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrProductNotFound = errors.New("product not found")
	ErrMappingNotFound = errors.New("item mapping not found")
	ErrInvalidMethod   = errors.New("invalid payment method")
	ErrInvalidInput    = errors.New("invalid input")
)

// invalid wraps ErrInvalidInput with a message for the caller.
func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// notFound translates gorm.ErrRecordNotFound into a service sentinel and wraps anything else.
func notFound(err error, sentinel error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
