package schema

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"connkit/internal/errors"
)

// Rule is a validation check applied to a present field value.
type Rule struct {
	Message string
	Check   func(value any) bool
}

const (
	PhoneLengthMessage  = "Please make sure your phone number is 10 digits long"
	PhoneNumericMessage = "Please make sure your phone number is only numeric characters"
)

var numericRegex = regexp.MustCompile(`^[0-9]+$`)

// Length requires the value's string form to be exactly n characters.
func Length(n int, msg string) Rule {
	return Rule{Message: msg, Check: func(v any) bool {
		return utf8.RuneCountInString(formatValue(v)) == n
	}}
}

// Numeric requires the value's string form to be one or more ASCII digits.
func Numeric(msg string) Rule {
	return Rule{Message: msg, Check: func(v any) bool {
		return numericRegex.MatchString(formatValue(v))
	}}
}

// PhoneNumber returns the 10 digit phone number rules.
func PhoneNumber() []Rule {
	return []Rule{
		Length(10, PhoneLengthMessage),
		Numeric(PhoneNumericMessage),
	}
}

// RuleErrors returns one message per rule f's value violates. Absent values
// are not checked; required-ness is reported separately.
func RuleErrors(f FieldSpec, value any) []string {
	if value == nil {
		return nil
	}
	var msgs []string
	for _, r := range f.Rules {
		if !r.Check(value) {
			msgs = append(msgs, r.Message)
		}
	}
	return msgs
}

// Validate checks values against every leaf field of s and reports all
// violations together, keyed by field.
func (s *Schema) Validate(values Values) error {
	ve := &errors.ValidationError{}
	s.Walk(func(f FieldSpec) {
		val := values[f.Key]
		if isEmpty(val) {
			if f.Required {
				ve.Add(f.Key, "is required")
			}
			// An entered but blank value is still checked against the rules.
			for _, msg := range RuleErrors(f, val) {
				ve.Add(f.Key, msg)
			}
			return
		}
		if msg := kindError(f, val); msg != "" {
			ve.Add(f.Key, msg)
			return
		}
		for _, msg := range RuleErrors(f, val) {
			ve.Add(f.Key, msg)
		}
	})
	return ve.OrNil()
}

func kindError(f FieldSpec, val any) string {
	switch f.Kind {
	case KindInteger:
		if _, ok := toInt(val); !ok {
			return fmt.Sprintf("must be an integer, got %v", val)
		}
	case KindBoolean:
		if _, ok := toBool(val); !ok {
			return fmt.Sprintf("must be true or false, got %v", val)
		}
	case KindChoice:
		if !f.HasChoice(val) {
			return fmt.Sprintf("%v is not one of the available choices", val)
		}
	}
	return ""
}
