package procs

import (
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
)

// DefaultGrace is how long Teardown waits after SIGTERM before SIGKILL.
const DefaultGrace = 5 * time.Second

// Manager is the set of background processes owned by one session.
type Manager struct {
	mu      sync.Mutex
	handles []Handle
	grace   time.Duration
	logger  *logging.Logger
}

// NewManager creates an empty manager with the given termination grace
// period. A non-positive grace uses DefaultGrace.
func NewManager(grace time.Duration) *Manager {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Manager{
		grace:  grace,
		logger: logging.New().WithComponent("procs"),
	}
}

// Register records h for teardown. Registering the same handle twice has no
// further effect.
func (m *Manager) Register(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.handles {
		if existing == h {
			return
		}
	}
	m.handles = append(m.handles, h)
}

// Len returns the number of registered handles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// Handles returns a snapshot of the registered handles.
func (m *Manager) Handles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Handle, len(m.handles))
	copy(out, m.handles)
	return out
}

// Teardown stops every registered process: SIGTERM, wait up to the grace
// period, then SIGKILL and wait for exit. A failure on one handle never
// prevents the others from being reaped. Safe to call more than once.
func (m *Manager) Teardown() {
	for _, h := range m.Handles() {
		m.stop(h)
	}
}

func (m *Manager) stop(h Handle) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("teardown panic", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	if !h.Running() {
		return
	}
	pid := h.Pid()
	if err := h.Terminate(); err != nil {
		m.logger.Debug("terminate failed", map[string]interface{}{
			"pid":   pid,
			"error": err.Error(),
		})
	}
	if h.Wait(m.grace) {
		m.logger.Info("process terminated", map[string]interface{}{"pid": pid})
		return
	}
	if err := h.Kill(); err != nil {
		m.logger.Debug("kill failed", map[string]interface{}{
			"pid":   pid,
			"error": err.Error(),
		})
	}
	h.Wait(-1)
	m.logger.Info("process killed", map[string]interface{}{"pid": pid})
}
