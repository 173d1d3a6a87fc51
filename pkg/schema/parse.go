package schema

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	idPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Default settings applied when the document omits them.
const (
	DefaultMaxRetryAttempts     = 3
	DefaultRetryExceededMessage = "Too many invalid attempts. Moving to the next question."
	DefaultTimeoutHours         = 24
)

// Parse decodes and validates a survey document. It enforces every
// field-level invariant; graph-level checks (cycles, reachability) are the
// structural validator's job. The returned Definition is immutable.
func Parse(raw []byte) (*Definition, error) {
	var def Definition

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, &ParseError{
			SurveyID: def.Metadata.ID,
			Errors:   []error{fmt.Errorf("invalid yaml: %w", err)},
		}
	}

	applyDefaults(&def.Settings)
	normalize(&def)

	if errs := validate(&def); len(errs) > 0 {
		return nil, &ParseError{SurveyID: def.Metadata.ID, Errors: errs}
	}

	def.buildIndex()
	return &def, nil
}

func applyDefaults(s *Settings) {
	if s.MaxRetryAttempts == 0 {
		s.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if s.RetryExceededMessage == "" {
		s.RetryExceededMessage = DefaultRetryExceededMessage
	}
	if s.TimeoutHours == 0 {
		s.TimeoutHours = DefaultTimeoutHours
	}
}

// normalize lowercases every value that is compared case-insensitively at
// runtime, so the comparison sets are canonical from the moment of load.
func normalize(d *Definition) {
	for i, w := range d.Metadata.StartWords {
		d.Metadata.StartWords[i] = strings.ToLower(strings.TrimSpace(w))
	}
	for i, v := range d.Consent.AcceptValues {
		d.Consent.AcceptValues[i] = strings.ToLower(strings.TrimSpace(v))
	}
	for i, v := range d.Consent.DeclineValues {
		d.Consent.DeclineValues[i] = strings.ToLower(strings.TrimSpace(v))
	}
}

func validate(d *Definition) []error {
	var errs []error
	fail := func(path, reason string) {
		errs = append(errs, &FieldError{Path: path, Reason: reason})
	}

	// Metadata.
	switch {
	case d.Metadata.ID == "":
		fail("metadata.id", "required")
	case !idPattern.MatchString(d.Metadata.ID):
		fail("metadata.id", "must contain only letters, digits, underscores, or hyphens")
	}
	if d.Metadata.Name == "" {
		fail("metadata.name", "required")
	}
	if !semverPattern.MatchString(d.Metadata.Version) {
		fail("metadata.version", "must be a semantic version (e.g. 1.0.0)")
	}
	if len(d.Metadata.StartWords) == 0 {
		fail("metadata.start_words", "at least one start word is required")
	}

	// Consent.
	if d.Consent.StepID == "" {
		fail("consent.step_id", "required")
	}
	if d.Consent.Text == "" {
		fail("consent.text", "required")
	}
	if len(d.Consent.AcceptValues) == 0 {
		fail("consent.accept_values", "at least one accept value is required")
	}
	if len(d.Consent.DeclineValues) == 0 {
		fail("consent.decline_values", "at least one decline value is required")
	}
	if d.Consent.DeclineMessage == "" {
		fail("consent.decline_message", "required")
	}

	// Settings.
	if d.Settings.MaxRetryAttempts < 1 || d.Settings.MaxRetryAttempts > 10 {
		fail("settings.max_retry_attempts", "must be between 1 and 10")
	}
	if d.Settings.TimeoutHours < 1 || d.Settings.TimeoutHours > 168 {
		fail("settings.timeout_hours", "must be between 1 and 168")
	}

	// Steps.
	if len(d.Steps) == 0 {
		fail("steps", "at least one step is required")
		return errs
	}

	ids := make(map[string]bool, len(d.Steps))
	for i := range d.Steps {
		step := &d.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)

		switch {
		case step.ID == "":
			fail(path+".id", "required")
		case !idPattern.MatchString(step.ID):
			fail(path+".id", "must contain only letters, digits, underscores, or hyphens")
		case ids[step.ID]:
			fail(path+".id", fmt.Sprintf("duplicate step id %q", step.ID))
		default:
			ids[step.ID] = true
		}

		if step.Text == "" {
			fail(path+".text", "required")
		}

		validateStepKind(step, path, fail)
	}

	// Cross-references must resolve within this definition.
	if d.Consent.StepID != "" && !ids[d.Consent.StepID] {
		fail("consent.step_id", fmt.Sprintf("references unknown step %q", d.Consent.StepID))
	}
	for i := range d.Steps {
		step := &d.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)
		if step.Next != "" && !ids[step.Next] {
			fail(path+".next", fmt.Sprintf("references unknown step %q", step.Next))
		}
		for j, cond := range step.NextConditional {
			if cond.Next != "" && !ids[cond.Next] {
				fail(fmt.Sprintf("%s.next_conditional[%d].next", path, j),
					fmt.Sprintf("references unknown step %q", cond.Next))
			}
		}
	}

	return errs
}

func validateStepKind(step *Step, path string, fail func(path, reason string)) {
	switch step.Kind {
	case KindText, KindRegex, KindChoice, KindTerminal:
	default:
		fail(path+".type", fmt.Sprintf("unknown step type %q", step.Kind))
		return
	}

	if step.Terminal() {
		if step.Next != "" || len(step.NextConditional) > 0 {
			fail(path, "terminal steps cannot have 'next' or 'next_conditional'")
		}
		return
	}

	if step.Next == "" && len(step.NextConditional) == 0 {
		fail(path, "non-terminal steps must have 'next' or 'next_conditional'")
	}

	for j, cond := range step.NextConditional {
		condPath := fmt.Sprintf("%s.next_conditional[%d]", path, j)
		if cond.Condition == "" {
			fail(condPath+".condition", "required")
		}
		if cond.Next == "" {
			fail(condPath+".next", "required")
		}
	}

	switch step.Kind {
	case KindRegex:
		if step.Validation == nil || step.Validation.Pattern == "" {
			fail(path+".validation.pattern", "regex steps require a pattern")
		} else if _, err := regexp.Compile(`^(?:` + step.Validation.Pattern + `)$`); err != nil {
			// Compiled exactly as the runtime will anchor it, so a pattern
			// that loads is a pattern that matches.
			fail(path+".validation.pattern", fmt.Sprintf("does not compile: %v", err))
		}
	case KindChoice:
		if step.Validation == nil || len(step.Validation.Choices) == 0 {
			fail(path+".validation.choices", "choice steps require a non-empty option list")
			return
		}
		for j, c := range step.Validation.Choices {
			if c.Display == "" || c.Value == "" {
				fail(fmt.Sprintf("%s.validation.choices[%d]", path, j),
					"both display and value are required")
			}
		}
	}

	if step.Validation != nil {
		if step.Validation.MinLength != nil && *step.Validation.MinLength < 1 {
			fail(path+".validation.min_length", "must be >= 1")
		}
		if step.Validation.MaxLength != nil && *step.Validation.MaxLength < 1 {
			fail(path+".validation.max_length", "must be >= 1")
		}
		if step.Validation.MinLength != nil && step.Validation.MaxLength != nil &&
			*step.Validation.MaxLength < *step.Validation.MinLength {
			fail(path+".validation.max_length", "must be >= min_length")
		}
	}
}
