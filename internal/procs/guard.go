package procs

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Guard tracks live managers so that every background process can be reaped
// when the program exits abnormally.
type Guard struct {
	mu       sync.Mutex
	managers []*Manager
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Add registers m with the guard.
func (g *Guard) Add(m *Manager) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.managers = append(g.managers, m)
}

// Remove forgets m. Called once its owner has torn it down.
func (g *Guard) Remove(m *Manager) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.managers {
		if existing == m {
			g.managers = append(g.managers[:i], g.managers[i+1:]...)
			return
		}
	}
}

// TeardownAll tears down every registered manager.
func (g *Guard) TeardownAll() {
	g.mu.Lock()
	managers := make([]*Manager, len(g.managers))
	copy(managers, g.managers)
	g.mu.Unlock()

	for _, m := range managers {
		m.Teardown()
	}
}

// WatchSignals cancels the returned context on SIGINT or SIGTERM after
// tearing down every registered manager. Only the first signal is caught; a
// second one gets the default behaviour and ends the program. The stop
// function releases the signal handler.
func (g *Guard) WatchSignals(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			signal.Stop(sigCh)
			g.TeardownAll()
			cancel()
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}
}
