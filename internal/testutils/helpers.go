// Package testutils holds shared helpers for package tests.
package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/switchback-sms/switchback/pkg/schema"
)

// SampleSurveyYAML is a small but complete survey document exercising
// every step kind, branching, and templating.
const SampleSurveyYAML = `
metadata:
  id: wellness_check
  name: Weekly Wellness Check
  description: A short weekly check-in.
  version: 1.0.0
  start_words: [wellness, checkin]

consent:
  step_id: ask_name
  text: "Hi! We'd like to ask you a few questions about your week. Reply YES to continue or NO to decline."
  accept_values: [yes, y, ok]
  decline_values: [no, n]
  decline_message: "No problem. Take care!"

settings:
  max_retry_attempts: 3
  retry_exceeded_message: "Let's move on."
  timeout_hours: 24

steps:
  - id: ask_name
    type: text
    text: "What's your first name?"
    validation:
      min_length: 2
      max_length: 50
    store_as: name
    next: ask_mood

  - id: ask_mood
    type: choice
    text: "Thanks {{.name}}! How are you feeling this week?"
    validation:
      choices:
        - display: Good
          value: good
        - display: Okay
          value: okay
        - display: Bad
          value: bad
    store_as: mood
    next_conditional:
      - condition: mood == 'bad'
        next: ask_support
    next: ask_zip

  - id: ask_support
    type: choice
    text: "Sorry to hear that. Would you like someone to reach out?"
    validation:
      choices:
        - display: "Yes"
          value: "yes"
        - display: "No"
          value: "no"
    store_as: wants_support
    next: ask_zip

  - id: ask_zip
    type: regex
    text: "Almost done. What's your ZIP code?"
    validation:
      pattern: '\d{5}'
    store_as: zip
    error_message: "Please enter a 5-digit ZIP code."
    next: done

  - id: done
    type: terminal
    text: "That's everything, {{.name}}. Thanks for checking in!"
`

// SampleDefinition parses SampleSurveyYAML, failing the test on error.
func SampleDefinition(t *testing.T) *schema.Definition {
	t.Helper()
	def, err := schema.Parse([]byte(SampleSurveyYAML))
	require.NoError(t, err, "sample survey must parse")
	return def
}

// IntPtr returns a pointer to n, for building validation rules inline.
func IntPtr(n int) *int { return &n }
