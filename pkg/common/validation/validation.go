// Package validation provides common validation utilities for the streamflow library.
package validation

import (
	"strconv"

	"github.com/vnykmshr/streamflow/pkg/buffer"
	gferrors "github.com/vnykmshr/streamflow/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return gferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegative validates that an integer value is non-negative (>= 0).
// Returns a ValidationError if the value is negative.
func ValidateNonNegative(module, field string, value int) error {
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return gferrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNonEmpty validates that a string value is set.
func ValidateNonEmpty(module, field, value string) error {
	if value == "" {
		return gferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a " + field)
	}
	return nil
}

// ValidateMinCount validates that at least min items were supplied.
func ValidateMinCount(module, field string, count, min int) error {
	if count < min {
		return gferrors.NewValidationError(module, field, count, "too few items").
			WithHint("pass at least " + strconv.Itoa(min))
	}
	return nil
}

// ValidateEncoding validates that name is a supported string encoding.
// The empty name is accepted and means the default encoding.
func ValidateEncoding(module, field, name string) error {
	if _, err := buffer.Normalize(name); err != nil {
		return gferrors.NewValidationError(module, field, name, "unknown encoding").
			WithHint("use utf8, hex, base64, latin1, utf16le or ascii")
	}
	return nil
}
