package runtime

import (
	"fmt"
	"html"
	"strings"
	"text/template"
)

// RenderError reports a step template that failed to render, usually
// because it referenced a context variable that has not been collected.
type RenderError struct {
	StepID string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render step %s: %v", e.StepID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Render substitutes collected answers into a step's message text.
// Placeholders use Go template syntax over the session context, e.g.
// "Thanks {{.name}}!". Unknown variables are an error, never silently
// rendered empty. Context values are escaped before substitution so a
// subject's reply cannot inject markup into later messages.
func Render(stepID, text string, vars map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New(stepID).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", &RenderError{StepID: stepID, Err: err}
	}

	escaped := make(map[string]string, len(vars))
	for k, v := range vars {
		escaped[k] = html.EscapeString(v)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, escaped); err != nil {
		return "", &RenderError{StepID: stepID, Err: err}
	}
	return buf.String(), nil
}
