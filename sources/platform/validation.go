package platform

import (
	"fmt"

	"github.com/google/uuid"
)

func ValidateNotEmpty(value string, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

func ValidateNonNegative(value int64, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s must be non-negative", fieldName)
	}
	return nil
}

func ParseUUID(value string, fieldName string) (uuid.UUID, error) {
	if err := ValidateNotEmpty(value, fieldName); err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid uuid: %w", fieldName, err)
	}
	return id, nil
}
