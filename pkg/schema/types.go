package schema

import (
	"strings"
	"time"
)

// StepKind defines the control flow and validation behavior of a step.
type StepKind string

const (
	// KindText is a free-text question, optionally bounded by length rules.
	KindText StepKind = "text"
	// KindRegex is a question whose answer must fully match a pattern.
	KindRegex StepKind = "regex"
	// KindChoice is a question answered by one of a fixed set of labels.
	KindChoice StepKind = "choice"
	// KindTerminal is a closing message; reaching it completes the session.
	KindTerminal StepKind = "terminal"
)

// ChoiceOption pairs the label shown to the subject with the value stored
// in the session context when that label is chosen.
type ChoiceOption struct {
	Display string `yaml:"display"`
	Value   string `yaml:"value"`
}

// Rules holds the validation configuration for a step. Which fields apply
// depends on the step kind: text uses the length bounds, regex uses
// Pattern, choice uses Choices.
type Rules struct {
	MinLength *int           `yaml:"min_length,omitempty"`
	MaxLength *int           `yaml:"max_length,omitempty"`
	Pattern   string         `yaml:"pattern,omitempty"`
	Choices   []ChoiceOption `yaml:"choices,omitempty"`
}

// ConditionalNext routes to Next when Condition evaluates true under the
// session context. Conditionals are evaluated in declared order.
type ConditionalNext struct {
	Condition string `yaml:"condition"`
	Next      string `yaml:"next"`
}

// Step is one node in the survey graph.
type Step struct {
	ID              string            `yaml:"id"`
	Text            string            `yaml:"text"`
	Kind            StepKind          `yaml:"type"`
	Validation      *Rules            `yaml:"validation,omitempty"`
	StoreAs         string            `yaml:"store_as,omitempty"`
	Next            string            `yaml:"next,omitempty"`
	NextConditional []ConditionalNext `yaml:"next_conditional,omitempty"`
	ErrorMessage    string            `yaml:"error_message,omitempty"`
}

// Terminal reports whether the step ends the conversation.
func (s *Step) Terminal() bool { return s.Kind == KindTerminal }

// Consent configures the gate every subject must pass before normal flow.
type Consent struct {
	StepID         string   `yaml:"step_id"`
	Text           string   `yaml:"text"`
	AcceptValues   []string `yaml:"accept_values"`
	DeclineValues  []string `yaml:"decline_values"`
	DeclineMessage string   `yaml:"decline_message"`
}

// Accepts reports whether the trimmed, lowercased reply grants consent.
func (c *Consent) Accepts(normalized string) bool {
	return containsFold(c.AcceptValues, normalized)
}

// Declines reports whether the trimmed, lowercased reply refuses consent.
func (c *Consent) Declines(normalized string) bool {
	return containsFold(c.DeclineValues, normalized)
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Settings holds survey-wide policy knobs.
type Settings struct {
	MaxRetryAttempts     int    `yaml:"max_retry_attempts"`
	RetryExceededMessage string `yaml:"retry_exceeded_message"`
	TimeoutHours         int    `yaml:"timeout_hours"`
}

// Timeout converts the configured staleness window to a duration.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutHours) * time.Hour
}

// Metadata identifies a survey document.
type Metadata struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	StartWords  []string `yaml:"start_words"`
}

// Definition is a complete, immutable survey. Once parsed and validated it
// is safe to share across any number of concurrent sessions.
type Definition struct {
	Metadata Metadata `yaml:"metadata"`
	Consent  Consent  `yaml:"consent"`
	Settings Settings `yaml:"settings"`
	Steps    []Step   `yaml:"steps"`

	index map[string]*Step
}

// Step returns the step with the given id, or nil.
func (d *Definition) Step(id string) *Step {
	return d.index[id]
}

// IsStartWord reports whether the trimmed, lowercased message is one of the
// survey's trigger words.
func (d *Definition) IsStartWord(normalized string) bool {
	return containsFold(d.Metadata.StartWords, normalized)
}

func (d *Definition) buildIndex() {
	d.index = make(map[string]*Step, len(d.Steps))
	for i := range d.Steps {
		d.index[d.Steps[i].ID] = &d.Steps[i]
	}
}
