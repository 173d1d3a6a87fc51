package runtime

import (
	"fmt"
	"log/slog"

	"github.com/switchback-sms/switchback/pkg/condition"
	"github.com/switchback-sms/switchback/pkg/schema"
)

// BranchingError reports a non-terminal step with no satisfied route:
// every conditional evaluated false or errored and no default next exists.
type BranchingError struct {
	StepID string
}

func (e *BranchingError) Error() string {
	return fmt.Sprintf("step %s: no branch matched and no default next", e.StepID)
}

// ResolveNext picks the id of the step that follows step under the given
// context. Conditionals are tried in declared order; the first that
// evaluates true wins. A conditional whose expression errors (undefined
// variable, malformed syntax that survived authoring) is logged and
// skipped, not fatal, so one bad branch cannot strand a conversation that
// has a valid route further down the list.
func ResolveNext(step *schema.Step, vars map[string]string, logger *slog.Logger) (string, error) {
	for i, cond := range step.NextConditional {
		ok, err := condition.Eval(cond.Condition, vars)
		if err != nil {
			logger.Warn("skipping branch condition",
				"step_id", step.ID, "index", i, "condition", cond.Condition, "err", err)
			continue
		}
		if ok {
			return cond.Next, nil
		}
	}
	if step.Next != "" {
		return step.Next, nil
	}
	return "", &BranchingError{StepID: step.ID}
}
