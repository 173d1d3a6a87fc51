package runtime

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/switchback-sms/switchback/pkg/schema"
)

// Verdict is the outcome of validating one reply against one step.
type Verdict struct {
	Valid bool
	// StoredValue is the normalized value to keep: the trimmed reply for
	// text and regex steps, the configured option value for choice steps.
	StoredValue string
	// ErrorMessage is the text to send back when Valid is false.
	ErrorMessage string
}

// patternCache memoizes anchored compilations across sessions. Definitions
// are validated at load time, so a pattern that reaches here compiles.
var patternCache sync.Map // string -> *regexp.Regexp

// ValidateInput checks a raw reply against the step's rules. It never
// mutates anything; the engine decides what to do with the verdict.
func ValidateInput(step *schema.Step, raw string) Verdict {
	trimmed := strings.TrimSpace(raw)

	switch step.Kind {
	case schema.KindTerminal:
		// Terminal steps ask nothing, so any reply is acceptable.
		return Verdict{Valid: true, StoredValue: trimmed}
	case schema.KindText:
		return validateText(step, trimmed)
	case schema.KindRegex:
		return validateRegex(step, trimmed)
	case schema.KindChoice:
		return validateChoice(step, trimmed)
	default:
		return invalid(step, "Invalid response. Please try again.")
	}
}

func validateText(step *schema.Step, trimmed string) Verdict {
	if trimmed == "" {
		return invalid(step, "Please enter a response.")
	}
	if rules := step.Validation; rules != nil {
		n := len([]rune(trimmed))
		if rules.MinLength != nil && n < *rules.MinLength {
			return invalid(step, fmt.Sprintf("Please enter at least %d characters.", *rules.MinLength))
		}
		if rules.MaxLength != nil && n > *rules.MaxLength {
			return invalid(step, fmt.Sprintf("Please enter no more than %d characters.", *rules.MaxLength))
		}
	}
	return Verdict{Valid: true, StoredValue: trimmed}
}

func validateRegex(step *schema.Step, trimmed string) Verdict {
	if trimmed == "" {
		return invalid(step, "Please enter a response.")
	}
	re, err := compileAnchored(step.Validation.Pattern)
	if err != nil {
		// Unreachable for validated definitions; treat as non-match.
		return invalid(step, "Invalid format. Please try again.")
	}
	if !re.MatchString(trimmed) {
		return invalid(step, "Invalid format. Please try again.")
	}
	return Verdict{Valid: true, StoredValue: trimmed}
}

func validateChoice(step *schema.Step, trimmed string) Verdict {
	for _, opt := range step.Validation.Choices {
		if strings.EqualFold(opt.Display, trimmed) {
			return Verdict{Valid: true, StoredValue: opt.Value}
		}
	}
	displays := make([]string, len(step.Validation.Choices))
	for i, opt := range step.Validation.Choices {
		displays[i] = opt.Display
	}
	return invalid(step, "Please reply with one of: "+strings.Join(displays, ", ")+".")
}

// invalid applies the step's configured error message when present,
// falling back to the kind-specific default otherwise.
func invalid(step *schema.Step, fallback string) Verdict {
	msg := step.ErrorMessage
	if msg == "" {
		msg = fallback
	}
	return Verdict{ErrorMessage: msg}
}

// compileAnchored wraps the pattern so it must match the whole reply.
// A zip-code pattern should not accept a zip code buried in a sentence.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}
