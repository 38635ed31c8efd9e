package validator

import "time"

// FutureDate validates that value is strictly after now.
func FutureDate(field string, value, now time.Time) Rule {
	return Rule{
		Check: func() bool {
			return value.After(now)
		},
		Error: ValidationError{
			Field:          field,
			Message:        "date must be in the future",
			TranslationKey: "validation.date_future",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}

// FutureUnix validates that a unix timestamp in seconds is strictly after now.
// Sub-second precision of now is dropped, so a value equal to the current second fails.
func FutureUnix(field string, value int64, now time.Time) Rule {
	return Rule{
		Check: func() bool {
			return value > now.Unix()
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be in the future",
			TranslationKey: "validation.date_future",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}
