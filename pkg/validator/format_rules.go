package validator

import "regexp"

// emailRegex accepts local@domain.tld with no whitespace and a single @.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail validates that a string is shaped like an email address.
// Only the shape is checked; deliverability is left to the transport.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return emailRegex.MatchString(value)
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid email address",
			TranslationKey: "validation.email",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}
