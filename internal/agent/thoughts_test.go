package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rainagent/rain/internal/tools"
)

func TestThoughtLog(t *testing.T) {
	l := newThoughtLog()
	l.add(tools.Step{Round: 1, Kind: tools.StepInvoke, Tool: "web_search", Args: `{"query":"weather"}`})
	l.add(tools.Step{Round: 1, Kind: tools.StepObservation, Tool: "web_search", Content: "1. Sunny"})
	l.add(tools.Step{Round: 2, Kind: tools.StepFinal, Content: "It is sunny. "})

	want := "> Entering new AgentExecutor chain...\n" +
		"\nInvoking: `web_search` with `{\"query\":\"weather\"}`\n" +
		"\n1. Sunny\n" +
		"\nIt is sunny.\n\n> Finished chain."
	assert.Equal(t, want, l.String())
}
