// Package orchestrator runs build and verification cycles until the work
// passes or the cycle budget runs out.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vinayprograms/devloop/internal/agents"
	"github.com/vinayprograms/devloop/internal/procs"
	"github.com/vinayprograms/devloop/internal/session"
)

// DefaultMaxCycles is the number of build and verify attempts.
const DefaultMaxCycles = 3

// ErrNoVerdict is returned when a Verifier reports neither a verdict nor an
// error.
var ErrNoVerdict = errors.New("verifier returned no verdict")

// Builder implements a task inside a session and describes the result.
type Builder interface {
	Build(ctx context.Context, sess *session.Session) (string, error)
}

// Verifier judges a build.
type Verifier interface {
	Verify(ctx context.Context, sess *session.Session, note string) (*agents.Verdict, error)
}

// Loop alternates build and verification in fresh sessions rooted at Root.
type Loop struct {
	Builder   Builder
	Verifier  Verifier
	Root      string
	MaxCycles int
	Grace     time.Duration // teardown grace per process

	// Guard, if set, tracks each cycle's processes for the exit hook.
	Guard *procs.Guard
	// Store, if set, receives every cycle's transcript.
	Store session.Store

	OnCycle    func(cycle int, v *agents.Verdict)
	OnTeardown func(cycle int, stopped int)

	logger *logging.Logger
}

// New creates a loop with the default cycle budget.
func New(builder Builder, verifier Verifier, root string) *Loop {
	return &Loop{
		Builder:   builder,
		Verifier:  verifier,
		Root:      root,
		MaxCycles: DefaultMaxCycles,
		Grace:     procs.DefaultGrace,
	}
}

// Run executes cycles until a verdict passes or MaxCycles is reached, and
// returns the last verdict. A failing verdict is not an error. Errors from
// either stage end the run after the cycle's teardown.
func (l *Loop) Run(ctx context.Context, task string) (*agents.Verdict, error) {
	if l.logger == nil {
		l.logger = logging.New().WithComponent("orchestrator")
	}
	maxCycles := l.MaxCycles
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}

	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "orchestrator.run")
	defer span.End()
	span.SetAttributes(attribute.Int("orchestrator.max_cycles", maxCycles))

	var last *agents.Verdict
	for n := 1; n <= maxCycles; n++ {
		v, err := l.cycle(ctx, task, n)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("cycle %d: %w", n, err)
		}
		last = v
		if l.OnCycle != nil {
			l.OnCycle(n, v)
		}
		if v.Passed() {
			span.SetAttributes(attribute.Int("orchestrator.cycles", n))
			return v, nil
		}
		l.logger.Warn("verification failed", map[string]interface{}{
			"cycle": n,
			"bugs":  len(v.BreakingBugs),
		})
	}

	span.SetAttributes(attribute.Int("orchestrator.cycles", maxCycles))
	return last, nil
}

// cycle runs one build and verification in a new session and always tears
// the session's processes down before returning.
func (l *Loop) cycle(ctx context.Context, task string, n int) (v *agents.Verdict, err error) {
	sess, err := session.New(task, l.Root, procs.NewManager(l.Grace))
	if err != nil {
		return nil, err
	}
	if l.Guard != nil {
		l.Guard.Add(sess.Procs())
	}

	ctx, span := telemetry.GetTracer().StartSpan(ctx, "orchestrator.cycle")
	span.SetAttributes(
		attribute.Int("cycle", n),
		attribute.String("session.id", sess.ID),
	)
	l.logger.Info("cycle started", map[string]interface{}{
		"cycle":   n,
		"session": sess.ID,
	})

	defer func() {
		stopped := sess.Procs().Len()
		sess.Teardown()
		if l.Guard != nil {
			l.Guard.Remove(sess.Procs())
		}
		l.finish(sess, v, err)
		if l.OnTeardown != nil {
			l.OnTeardown(n, stopped)
		}
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	note, err := l.Builder.Build(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	v, err = l.Verifier.Verify(ctx, sess, note)
	if err == nil && v == nil {
		err = ErrNoVerdict
	}
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	span.SetAttributes(attribute.String("verdict", v.Result))
	return v, nil
}

// finish records the cycle outcome on the session and persists it.
func (l *Loop) finish(sess *session.Session, v *agents.Verdict, err error) {
	if err != nil {
		sess.Fail(err)
	} else {
		sess.Complete(v.Result)
	}
	if l.Store == nil {
		return
	}
	if serr := l.Store.Save(sess); serr != nil {
		l.logger.Warn("failed to save transcript", map[string]interface{}{
			"session": sess.ID,
			"error":   serr.Error(),
		})
	}
}
