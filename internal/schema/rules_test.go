package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connkit/internal/errors"
)

func phoneField() FieldSpec {
	f := Text("phoneNumber", "Phone Number")
	f.Rules = PhoneNumber()
	return f
}

func TestPhoneNumberRules(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"5551234567", nil},
		{"12a", []string{PhoneLengthMessage, PhoneNumericMessage}},
		{"123", []string{PhoneLengthMessage}},
		{"555123456x", []string{PhoneNumericMessage}},
		{"55512345678", []string{PhoneLengthMessage}},
		{"", []string{PhoneLengthMessage, PhoneNumericMessage}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, RuleErrors(phoneField(), tt.input))
		})
	}
}

func TestPhoneNumberRulesAcceptJSONNumbers(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"float64", float64(5551234567), nil},
		{"int64", int64(5551234567), nil},
		{"short float64", float64(555), []string{PhoneLengthMessage}},
		{"fraction", 555123456.7, []string{PhoneLengthMessage, PhoneNumericMessage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RuleErrors(phoneField(), tt.input))
		})
	}

	s, err := New(phoneField())
	require.NoError(t, err)
	assert.NoError(t, s.Validate(Values{"phoneNumber": float64(5551234567)}))
}

func TestRuleErrorsSkipsAbsentValue(t *testing.T) {
	assert.Nil(t, RuleErrors(phoneField(), nil))
}

func TestValidateReportsEveryViolation(t *testing.T) {
	status := Dropdown("httpStatusCode", "HTTP Status Code",
		Choice{Name: "OK: 200", Value: "200"},
		Choice{Name: "NOT_FOUND: 404", Value: "404"},
	)
	status.Required = true
	count := Integer("count", "Count")

	s, err := New(phoneField(), status, count)
	require.NoError(t, err)

	err = s.Validate(Values{"phoneNumber": "12a", "count": "many"})
	require.Error(t, err)

	var ve *errors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{PhoneLengthMessage, PhoneNumericMessage}, ve.For("phoneNumber"))
	assert.Equal(t, []string{"is required"}, ve.For("httpStatusCode"))
	assert.Len(t, ve.For("count"), 1)
}

func TestValidateAcceptsLooseChoiceValues(t *testing.T) {
	status := Dropdown("httpStatusCode", "HTTP Status Code", Choice{Name: "OK: 200", Value: "200"})
	s, err := New(status)
	require.NoError(t, err)

	assert.NoError(t, s.Validate(Values{"httpStatusCode": float64(200)}))
	assert.Error(t, s.Validate(Values{"httpStatusCode": "201"}))
}

func TestValidateValid(t *testing.T) {
	s, err := New(phoneField(), Boolean("toggle", "Toggle"))
	require.NoError(t, err)
	assert.NoError(t, s.Validate(Values{"phoneNumber": "5551234567", "toggle": "true"}))
	assert.NoError(t, s.Validate(Values{}))
}
