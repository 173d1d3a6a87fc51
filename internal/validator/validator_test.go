package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchback-sms/switchback/pkg/schema"
)

func parse(t *testing.T, doc string) *schema.Definition {
	t.Helper()
	def, err := schema.Parse([]byte(doc))
	require.NoError(t, err)
	return def
}

const header = `
metadata:
  id: graph_test
  name: Graph Test
  version: 1.0.0
  start_words: [go]
consent:
  step_id: a
  text: "Ready?"
  accept_values: [yes]
  decline_values: [no]
  decline_message: "Bye"
steps:
`

func TestValidateGraph_Linear(t *testing.T) {
	def := parse(t, header+`
  - id: a
    type: text
    text: "A?"
    next: b
  - id: b
    type: text
    text: "B?"
    next: end
  - id: end
    type: terminal
    text: "Done"
`)
	warnings, err := ValidateGraph(def)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateGraph_CycleIsFatal(t *testing.T) {
	def := parse(t, header+`
  - id: a
    type: text
    text: "A?"
    next: b
  - id: b
    type: text
    text: "B?"
    next: a
  - id: end
    type: terminal
    text: "Done"
`)
	_, err := ValidateGraph(def)
	require.Error(t, err)
	var structErr *StructureError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, "graph_test", structErr.SurveyID)
	assert.Contains(t, structErr.Reason, "circular")
}

func TestValidateGraph_SelfLoopIsFatal(t *testing.T) {
	def := parse(t, header+`
  - id: a
    type: text
    text: "A?"
    next: a
  - id: end
    type: terminal
    text: "Done"
`)
	_, err := ValidateGraph(def)
	assert.Error(t, err)
}

// A conditional edge back to an earlier step is still a cycle, even if at
// runtime the condition might never fire.
func TestValidateGraph_ConditionalCycleIsFatal(t *testing.T) {
	def := parse(t, header+`
  - id: a
    type: text
    text: "A?"
    next: b
  - id: b
    type: text
    text: "B?"
    next_conditional:
      - condition: answer == 'again'
        next: a
    next: end
  - id: end
    type: terminal
    text: "Done"
`)
	_, err := ValidateGraph(def)
	assert.Error(t, err)
}

func TestValidateGraph_UnreachableStepsWarn(t *testing.T) {
	def := parse(t, header+`
  - id: a
    type: text
    text: "A?"
    next: end
  - id: orphan
    type: text
    text: "Never asked"
    next: end
  - id: end
    type: terminal
    text: "Done"
  - id: alt_end
    type: terminal
    text: "Other ending"
`)
	warnings, err := ValidateGraph(def)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "orphan")
	assert.Contains(t, warnings[1], "alternate ending")
}

// Branching between two terminals must not be flagged.
func TestValidateGraph_DiamondIsAcyclic(t *testing.T) {
	def := parse(t, header+`
  - id: a
    type: choice
    text: "Pick"
    validation:
      choices:
        - display: One
          value: one
        - display: Two
          value: two
    store_as: pick
    next_conditional:
      - condition: pick == 'one'
        next: left
    next: right
  - id: left
    type: terminal
    text: "L"
  - id: right
    type: terminal
    text: "R"
`)
	warnings, err := ValidateGraph(def)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
