package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/switchback-sms/switchback/internal/testutils"
	"github.com/switchback-sms/switchback/pkg/schema"
)

func TestValidateInput_Text(t *testing.T) {
	step := &schema.Step{
		ID:   "q",
		Kind: schema.KindText,
		Validation: &schema.Rules{
			MinLength: testutils.IntPtr(2),
			MaxLength: testutils.IntPtr(5),
		},
	}

	cases := []struct {
		name    string
		raw     string
		valid   bool
		stored  string
		message string
	}{
		{name: "ok", raw: "Ada", valid: true, stored: "Ada"},
		{name: "trims whitespace", raw: "  Ada  ", valid: true, stored: "Ada"},
		{name: "empty", raw: "   ", message: "Please enter a response."},
		{name: "too short", raw: "A", message: "Please enter at least 2 characters."},
		{name: "too long", raw: "Adelaide", message: "Please enter no more than 5 characters."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := ValidateInput(step, tc.raw)
			assert.Equal(t, tc.valid, v.Valid)
			if tc.valid {
				assert.Equal(t, tc.stored, v.StoredValue)
			} else {
				assert.Equal(t, tc.message, v.ErrorMessage)
			}
		})
	}
}

func TestValidateInput_TextLengthCountsRunes(t *testing.T) {
	step := &schema.Step{
		ID:         "q",
		Kind:       schema.KindText,
		Validation: &schema.Rules{MaxLength: testutils.IntPtr(3)},
	}
	v := ValidateInput(step, "hél") // 4 bytes but 3 runes
	assert.True(t, v.Valid)
}

func TestValidateInput_Regex(t *testing.T) {
	step := &schema.Step{
		ID:         "zip",
		Kind:       schema.KindRegex,
		Validation: &schema.Rules{Pattern: `\d{5}`},
	}

	assert.True(t, ValidateInput(step, "90210").Valid)
	assert.True(t, ValidateInput(step, " 90210 ").Valid)

	// The pattern must match the whole reply, not a substring.
	assert.False(t, ValidateInput(step, "zip is 90210").Valid)
	assert.False(t, ValidateInput(step, "902101").Valid)
	assert.False(t, ValidateInput(step, "").Valid)

	v := ValidateInput(step, "nope")
	assert.Equal(t, "Invalid format. Please try again.", v.ErrorMessage)
}

func TestValidateInput_RegexCustomError(t *testing.T) {
	step := &schema.Step{
		ID:           "zip",
		Kind:         schema.KindRegex,
		Validation:   &schema.Rules{Pattern: `\d{5}`},
		ErrorMessage: "Please enter a 5-digit ZIP code.",
	}
	v := ValidateInput(step, "nope")
	assert.Equal(t, "Please enter a 5-digit ZIP code.", v.ErrorMessage)
}

func TestValidateInput_Choice(t *testing.T) {
	step := &schema.Step{
		ID:   "mood",
		Kind: schema.KindChoice,
		Validation: &schema.Rules{Choices: []schema.ChoiceOption{
			{Display: "Good", Value: "good"},
			{Display: "Bad", Value: "bad"},
		}},
	}

	// Display labels match case-insensitively and map to the stored value.
	for _, raw := range []string{"Good", "good", "GOOD", " gOoD "} {
		v := ValidateInput(step, raw)
		assert.True(t, v.Valid, raw)
		assert.Equal(t, "good", v.StoredValue, raw)
	}

	v := ValidateInput(step, "meh")
	assert.False(t, v.Valid)
	assert.Equal(t, "Please reply with one of: Good, Bad.", v.ErrorMessage)

	// The stored value is not a valid reply unless it is also a display.
	assert.False(t, ValidateInput(step, "bad2").Valid)
}

func TestValidateInput_Terminal(t *testing.T) {
	step := &schema.Step{ID: "end", Kind: schema.KindTerminal}
	assert.True(t, ValidateInput(step, "anything").Valid)
	assert.True(t, ValidateInput(step, "").Valid)
}
