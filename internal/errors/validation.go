package errors

import (
	"fmt"
	"strings"
)

// ValidationError collects every rule violation, keyed by field.
type ValidationError struct {
	fields []string
	errs   map[string][]string
}

func (ve *ValidationError) Error() string {
	lines := make([]string, 0, len(ve.fields))
	for _, f := range ve.fields {
		for _, msg := range ve.errs[f] {
			lines = append(lines, fmt.Sprintf("%s: %s", f, msg))
		}
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(lines, "\n  - "))
}

// Add records a violation for field. Fields keep first-seen order.
func (ve *ValidationError) Add(field, msg string) {
	if ve.errs == nil {
		ve.errs = make(map[string][]string)
	}
	if _, ok := ve.errs[field]; !ok {
		ve.fields = append(ve.fields, field)
	}
	ve.errs[field] = append(ve.errs[field], msg)
}

func (ve *ValidationError) HasErrors() bool {
	return len(ve.fields) > 0
}

// Fields returns the fields with violations in the order they were reported.
func (ve *ValidationError) Fields() []string {
	return append([]string(nil), ve.fields...)
}

// For returns the messages reported for field.
func (ve *ValidationError) For(field string) []string {
	return append([]string(nil), ve.errs[field]...)
}

// Messages returns a copy of all violations keyed by field.
func (ve *ValidationError) Messages() map[string][]string {
	out := make(map[string][]string, len(ve.errs))
	for f, msgs := range ve.errs {
		out[f] = append([]string(nil), msgs...)
	}
	return out
}

// OrNil returns ve when it holds violations and nil otherwise, so callers can
// return it directly as an error.
func (ve *ValidationError) OrNil() error {
	if ve == nil || !ve.HasErrors() {
		return nil
	}
	return ve
}
