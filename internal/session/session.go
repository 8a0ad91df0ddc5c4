// Package session holds the mutable state of one build attempt.
package session

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/devloop/internal/procs"
	"github.com/vinayprograms/devloop/internal/sandbox"
)

// Status constants for sessions.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event types for the session log.
const (
	EventStageStart = "stage_start" // build or verify stage began
	EventStageEnd   = "stage_end"   // stage returned

	EventToolCall   = "tool_call"   // tool invocation started
	EventToolResult = "tool_result" // tool completed

	EventApproval = "approval" // operator decision on a gated tool

	EventTeardown = "teardown" // background processes reaped
)

// Session is the state of one build/verify attempt. Root is where the attempt
// started; the working directory begins there and can only move deeper.
type Session struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Root      string    `json:"root"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Events    []Event   `json:"events"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	seqCounter uint64
	mu         sync.Mutex
	cwd        string
	plan       []PlanItem
	procs      *procs.Manager
}

// Event is a single entry in the session log.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Agent string `json:"agent,omitempty"` // stage that produced the event

	Content string                 `json:"content,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`

	Success    *bool  `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`

	Decision string `json:"decision,omitempty"` // approval outcome
}

// New creates a session rooted at root. The root is canonicalized and must be
// an existing directory; cwd starts there. A nil manager gets a default one.
func New(task, root string, pm *procs.Manager) (*Session, error) {
	canon, err := sandbox.Canonical(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", canon)
	}
	if pm == nil {
		pm = procs.NewManager(procs.DefaultGrace)
	}

	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Task:      task,
		Root:      canon,
		Status:    StatusRunning,
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
		cwd:       canon,
		procs:     pm,
	}, nil
}

// Cwd returns the current working directory. Always within Root.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// SetCwd moves the working directory. The caller is responsible for having
// resolved dir through the sandbox.
func (s *Session) SetCwd(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cwd = dir
}

// Plan returns a copy of the current plan.
func (s *Session) Plan() []PlanItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlanItem, len(s.plan))
	copy(out, s.plan)
	return out
}

// SetPlan replaces the plan wholesale.
func (s *Session) SetPlan(items []PlanItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = make([]PlanItem, len(items))
	copy(s.plan, items)
	s.UpdatedAt = time.Now()
}

// Procs returns the session's background process manager.
func (s *Session) Procs() *procs.Manager {
	return s.procs
}

// Resolve confines path to the current working directory, which acts as the
// sandbox root. Since cwd only ever moves inward, nothing outside Root is
// reachable.
func (s *Session) Resolve(path string) (string, error) {
	return sandbox.Resolve(s.Cwd(), path)
}

// AddEvent appends an event with the next sequence number.
func (s *Session) AddEvent(event Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SeqID = atomic.AddUint64(&s.seqCounter, 1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = time.Now()
	return event.SeqID
}

// EventsSnapshot returns a copy of the event log.
func (s *Session) EventsSnapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}

// Complete marks the session finished with the build result.
func (s *Session) Complete(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusComplete
	s.Result = result
	s.UpdatedAt = time.Now()
}

// Fail marks the session failed.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusFailed
	if err != nil {
		s.Error = err.Error()
	}
	s.UpdatedAt = time.Now()
}

// Teardown reaps the session's background processes and records it.
func (s *Session) Teardown() {
	n := s.procs.Len()
	s.procs.Teardown()
	s.AddEvent(Event{
		Type:    EventTeardown,
		Content: fmt.Sprintf("%d background process(es)", n),
	})
}
