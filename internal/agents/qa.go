package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/devloop/internal/engine"
	"github.com/vinayprograms/devloop/internal/session"
	"github.com/vinayprograms/devloop/internal/tools"
)

// DefaultVerifyRetries is the verification agent's retry budget.
const DefaultVerifyRetries = 10

// QA is the verification stage: it exercises the running application through
// remote browser tools and returns a structured verdict.
type QA struct {
	agent    *engine.Agent
	remote   RemoteTools
	planning *tools.Registry
	logger   *logging.Logger
}

// NewQA creates the verification stage. remote may be nil. maxRetries <= 0
// uses DefaultVerifyRetries.
func NewQA(provider llm.Provider, remote RemoteTools, maxRetries int) *QA {
	if maxRetries <= 0 {
		maxRetries = DefaultVerifyRetries
	}
	return &QA{
		agent:    engine.New("verify", provider, QAInstructions, maxRetries),
		remote:   remote,
		planning: tools.NewPlanningRegistry(),
		logger:   logging.New().WithComponent("qa"),
	}
}

// Verify checks the build described by note against the session's task. The
// verification agent keeps its own plan so the build plan is left untouched.
func (q *QA) Verify(ctx context.Context, sess *session.Session, note string) (*Verdict, error) {
	private, err := session.New(sess.Task, sess.Root, nil)
	if err != nil {
		return nil, fmt.Errorf("verification session: %w", err)
	}

	sess.AddEvent(session.Event{Type: session.EventStageStart, Agent: q.agent.Name, Content: note})
	start := time.Now()

	tb := newVerifyToolbox(tools.Bind(q.planning, private, q.agent.Name), q.remote)

	var v Verdict
	err = q.agent.RunStructured(ctx, VerificationInput(sess.Task, note), tb, VerdictSchema(), &v, v.Validate)

	evt := session.Event{
		Type:       session.EventStageEnd,
		Agent:      q.agent.Name,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		evt.Error = err.Error()
		sess.AddEvent(evt)
		return nil, err
	}
	evt.Content = fmt.Sprintf("%s: %s", v.Result, v.Summary)
	sess.AddEvent(evt)

	q.logger.Info("verification finished", map[string]interface{}{
		"result": v.Result,
		"bugs":   len(v.BreakingBugs),
	})
	return &v, nil
}
