package schema

import (
	"strings"
	"testing"
)

const validDoc = `
metadata:
  id: demo
  name: Demo Survey
  version: 1.0.0
  start_words: [Demo]
consent:
  step_id: q1
  text: "Participate? YES/NO"
  accept_values: [YES]
  decline_values: [NO]
  decline_message: "Bye"
steps:
  - id: q1
    type: text
    text: "Name?"
    store_as: name
    next: done
  - id: done
    type: terminal
    text: "Thanks"
`

func TestParse_Valid(t *testing.T) {
	def, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}

	if def.Metadata.ID != "demo" {
		t.Errorf("Metadata.ID = %q, want demo", def.Metadata.ID)
	}
	if def.Settings.MaxRetryAttempts != DefaultMaxRetryAttempts {
		t.Errorf("MaxRetryAttempts = %d, want default %d", def.Settings.MaxRetryAttempts, DefaultMaxRetryAttempts)
	}
	if def.Settings.TimeoutHours != DefaultTimeoutHours {
		t.Errorf("TimeoutHours = %d, want default %d", def.Settings.TimeoutHours, DefaultTimeoutHours)
	}

	// Comparison sets are canonicalized at load.
	if !def.IsStartWord("demo") {
		t.Error("IsStartWord(demo) = false, want true")
	}
	if !def.Consent.Accepts("yes") {
		t.Error("Accepts(yes) = false, want true")
	}

	if def.Step("q1") == nil || def.Step("done") == nil {
		t.Fatal("step index missing known steps")
	}
	if def.Step("missing") != nil {
		t.Error("Step(missing) should be nil")
	}
}

func TestParse_UnknownField(t *testing.T) {
	doc := strings.Replace(validDoc, "store_as: name", "store_az: name", 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("Parse() should reject unknown fields")
	}
}

func TestParse_FieldFailures(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(string) string
		wantPath string
	}{
		{
			name:     "missing name",
			mutate:   func(s string) string { return strings.Replace(s, "  name: Demo Survey\n", "", 1) },
			wantPath: "metadata.name",
		},
		{
			name:     "bad version",
			mutate:   func(s string) string { return strings.Replace(s, "version: 1.0.0", "version: v1", 1) },
			wantPath: "metadata.version",
		},
		{
			name:     "no start words",
			mutate:   func(s string) string { return strings.Replace(s, "start_words: [Demo]", "start_words: []", 1) },
			wantPath: "metadata.start_words",
		},
		{
			name:     "bad step id charset",
			mutate:   func(s string) string { return strings.Replace(s, "- id: q1\n", "- id: \"q 1\"\n", 1) },
			wantPath: "steps[0].id",
		},
		{
			name:     "dangling next",
			mutate:   func(s string) string { return strings.Replace(s, "next: done", "next: nowhere", 1) },
			wantPath: "steps[0].next",
		},
		{
			name:     "consent references unknown step",
			mutate:   func(s string) string { return strings.Replace(s, "step_id: q1", "step_id: q9", 1) },
			wantPath: "consent.step_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.mutate(validDoc)))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			errs := FieldErrors(err)
			if len(errs) == 0 {
				t.Fatalf("error should be a *ParseError with field errors, got %v", err)
			}
			found := false
			for _, e := range errs {
				if fe, ok := e.(*FieldError); ok && fe.Path == tc.wantPath {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for path %q in %v", tc.wantPath, err)
			}
		})
	}
}

func TestParse_DuplicateStepIDs(t *testing.T) {
	doc := strings.Replace(validDoc, "id: done", "id: q1", 1)
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("Parse() should reject duplicate step ids")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got %v", err)
	}
}

func TestParse_StepKindRules(t *testing.T) {
	cases := []struct {
		name string
		step string
	}{
		{
			name: "terminal with next",
			step: `
  - id: bad
    type: terminal
    text: "Bye"
    next: done`,
		},
		{
			name: "non-terminal without next",
			step: `
  - id: bad
    type: text
    text: "Q?"`,
		},
		{
			name: "regex without pattern",
			step: `
  - id: bad
    type: regex
    text: "Q?"
    next: done`,
		},
		{
			name: "regex with pattern that does not compile",
			step: `
  - id: bad
    type: regex
    text: "Q?"
    validation:
      pattern: '[unclosed'
    next: done`,
		},
		{
			name: "choice without options",
			step: `
  - id: bad
    type: choice
    text: "Q?"
    next: done`,
		},
		{
			name: "choice option missing value",
			step: `
  - id: bad
    type: choice
    text: "Q?"
    validation:
      choices:
        - display: A
    next: done`,
		},
		{
			name: "max below min",
			step: `
  - id: bad
    type: text
    text: "Q?"
    validation:
      min_length: 10
      max_length: 5
    next: done`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(validDoc + tc.step)); err == nil {
				t.Fatal("Parse() should fail")
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("metadata: [broken"))
	if err == nil {
		t.Fatal("Parse() should fail on malformed yaml")
	}
}

func TestSettings_Ranges(t *testing.T) {
	doc := strings.Replace(validDoc, "steps:", "settings:\n  max_retry_attempts: 11\nsteps:", 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("Parse() should reject max_retry_attempts > 10")
	}

	doc = strings.Replace(validDoc, "steps:", "settings:\n  timeout_hours: 400\nsteps:", 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("Parse() should reject timeout_hours > 168")
	}
}
