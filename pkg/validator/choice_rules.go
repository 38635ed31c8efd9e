package validator

import (
	"fmt"
	"slices"
)

// InList validates that value is one of allowedValues.
func InList[T comparable](field string, value T, allowedValues []T) Rule {
	return Rule{
		Check: func() bool {
			return slices.Contains(allowedValues, value)
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be one of: %v", allowedValues),
			TranslationKey: "validation.in_list",
			TranslationValues: map[string]any{
				"field":          field,
				"allowed_values": allowedValues,
			},
		},
	}
}

// OneOf is a semantic alias for InList.
func OneOf[T comparable](field string, value T, options []T) Rule {
	return InList(field, value, options)
}
