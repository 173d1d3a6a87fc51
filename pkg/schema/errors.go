package schema

import "fmt"

// FieldError represents a single field-level validation failure.
type FieldError struct {
	Path   string // e.g. "steps[2].validation.pattern"
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Path, e.Reason)
}

// ParseError aggregates every failure found while parsing a survey
// document. Parse errors are configuration defects: the survey must not be
// served until the document is fixed.
type ParseError struct {
	SurveyID string
	Errors   []error
}

func (e *ParseError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("survey %q: %s", e.SurveyID, e.Errors[0].Error())
	}
	msg := fmt.Sprintf("survey %q: %d validation errors:\n", e.SurveyID, len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// FieldErrors returns the individual failures if err is a ParseError.
func FieldErrors(err error) []error {
	if pe, ok := err.(*ParseError); ok {
		return pe.Errors
	}
	return nil
}
