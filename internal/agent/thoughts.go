package agent

import (
	"fmt"
	"strings"

	"github.com/rainagent/rain/internal/tools"
)

// thoughtLog renders loop steps as a readable chain trace, the text shown
// under "Show Agent's Thought Process".
type thoughtLog struct {
	sb strings.Builder
}

func newThoughtLog() *thoughtLog {
	l := &thoughtLog{}
	l.sb.WriteString("> Entering new AgentExecutor chain...\n")
	return l
}

func (l *thoughtLog) add(s tools.Step) {
	switch s.Kind {
	case tools.StepInvoke:
		fmt.Fprintf(&l.sb, "\nInvoking: `%s` with `%s`\n", s.Tool, s.Args)
		if c := strings.TrimSpace(s.Content); c != "" {
			fmt.Fprintf(&l.sb, "responded: %s\n", c)
		}
	case tools.StepObservation:
		fmt.Fprintf(&l.sb, "\n%s\n", s.Content)
	case tools.StepFinal:
		fmt.Fprintf(&l.sb, "\n%s\n\n> Finished chain.", strings.TrimSpace(s.Content))
	}
}

func (l *thoughtLog) String() string {
	return l.sb.String()
}
