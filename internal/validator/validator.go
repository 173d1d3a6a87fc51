// Package validator performs graph-level analysis of a parsed survey:
// cycle detection and reachability from the consent step. It assumes the
// definition already passed field-level validation, so every referenced
// step id resolves.
package validator

import (
	"fmt"

	"github.com/switchback-sms/switchback/pkg/schema"
)

// StructureError reports a fatal flaw in the survey graph. Like parse
// errors, structure errors are configuration defects: the survey must not
// be served until the document is fixed.
type StructureError struct {
	SurveyID string
	Reason   string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("survey %q: %s", e.SurveyID, e.Reason)
}

// ValidateGraph checks the survey flow graph starting from the consent
// step. A cycle reachable from the start is fatal. Unreachable steps are
// not: terminal ones are legitimate alternate endings, and non-terminal
// ones are common while content is being staged, so both are returned as
// warnings for the operator instead.
func ValidateGraph(def *schema.Definition) (warnings []string, err error) {
	adj := buildAdjacency(def)
	start := def.Consent.StepID

	if cycle := findCycle(adj, start); cycle != "" {
		return nil, &StructureError{
			SurveyID: def.Metadata.ID,
			Reason:   fmt.Sprintf("circular reference through step %q", cycle),
		}
	}

	reached := reachable(adj, start)
	for i := range def.Steps {
		step := &def.Steps[i]
		if reached[step.ID] {
			continue
		}
		if step.Terminal() {
			warnings = append(warnings, fmt.Sprintf("terminal step %q is unreachable (alternate ending?)", step.ID))
		} else {
			warnings = append(warnings, fmt.Sprintf("step %q is unreachable from the consent step", step.ID))
		}
	}

	return warnings, nil
}

// buildAdjacency maps every step to its default and conditional targets.
func buildAdjacency(def *schema.Definition) map[string][]string {
	adj := make(map[string][]string, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.Next != "" {
			adj[step.ID] = append(adj[step.ID], step.Next)
		}
		for _, cond := range step.NextConditional {
			adj[step.ID] = append(adj[step.ID], cond.Next)
		}
	}
	return adj
}

// findCycle runs an iterative DFS from start tracking the active recursion
// stack. Any edge back into the stack is a cycle; the offending step id is
// returned, or "" when the graph is acyclic. A step naming itself is a
// one-node cycle by the same rule.
func findCycle(adj map[string][]string, start string) string {
	const (
		white = iota // unvisited
		grey         // on the recursion stack
		black        // fully explored
	)
	color := make(map[string]int)

	type frame struct {
		id   string
		next int
	}

	var stack []frame
	color[start] = grey
	stack = append(stack, frame{id: start})

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		targets := adj[top.id]
		if top.next < len(targets) {
			target := targets[top.next]
			top.next++
			switch color[target] {
			case grey:
				return target
			case white:
				color[target] = grey
				stack = append(stack, frame{id: target})
			}
			continue
		}
		color[top.id] = black
		stack = stack[:len(stack)-1]
	}
	return ""
}

// reachable runs a BFS from start and returns the visited set.
func reachable(adj map[string][]string, start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, target := range adj[current] {
			if !seen[target] {
				seen[target] = true
				queue = append(queue, target)
			}
		}
	}
	return seen
}
