// Package validator provides small declarative validation rules.
//
// Every exported rule constructor returns a Rule: a Check func paired with a
// translation-friendly ValidationError. Apply evaluates rules in order and
// aggregates failures into ValidationErrors, which implements error, so all
// problems with a request are reported at once.
//
// # Usage
//
//	err := validator.Apply(
//	    validator.RequiredString("to", req.To),
//	    validator.ValidEmail("to", req.To),
//	    validator.FutureUnix("scheduledTime", req.ScheduledTime, time.Now()),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs != nil {
//	    for _, e := range errs {
//	        fmt.Println(e.Field, e.Message)
//	    }
//	}
//
// Time-based rules take the reference time explicitly so callers can inject a clock.
package validator
