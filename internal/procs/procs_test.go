package procs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"
)

// fakeHandle records the signals it receives. It exits on terminate unless
// stubborn, and always exits on kill.
type fakeHandle struct {
	mu        sync.Mutex
	pid       int
	running   bool
	stubborn  bool
	panicky   bool
	terms     int
	kills     int
	termErr   error
	waitCalls []time.Duration
}

func (f *fakeHandle) Pid() int { return f.pid }

func (f *fakeHandle) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeHandle) Terminate() error {
	if f.panicky {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms++
	if !f.stubborn {
		f.running = false
	}
	return f.termErr
}

func (f *fakeHandle) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	f.running = false
	return nil
}

func (f *fakeHandle) Wait(timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls = append(f.waitCalls, timeout)
	return !f.running
}

func TestManager_RegisterIdempotent(t *testing.T) {
	m := NewManager(time.Millisecond)
	h := &fakeHandle{pid: 1, running: true}

	m.Register(h)
	m.Register(h)

	if m.Len() != 1 {
		t.Errorf("expected 1 handle, got %d", m.Len())
	}
}

func TestManager_TeardownGraceful(t *testing.T) {
	m := NewManager(time.Millisecond)
	h := &fakeHandle{pid: 1, running: true}
	m.Register(h)

	m.Teardown()

	if h.terms != 1 {
		t.Errorf("expected 1 terminate, got %d", h.terms)
	}
	if h.kills != 0 {
		t.Errorf("expected no kill for cooperative process, got %d", h.kills)
	}
	if h.Running() {
		t.Error("process should be stopped")
	}
}

func TestManager_TeardownEscalates(t *testing.T) {
	m := NewManager(time.Millisecond)
	h := &fakeHandle{pid: 1, running: true, stubborn: true}
	m.Register(h)

	m.Teardown()

	if h.terms != 1 || h.kills != 1 {
		t.Errorf("expected terminate then kill, got terms=%d kills=%d", h.terms, h.kills)
	}
	if len(h.waitCalls) != 2 || h.waitCalls[0] != time.Millisecond || h.waitCalls[1] >= 0 {
		t.Errorf("expected grace wait then unbounded wait, got %v", h.waitCalls)
	}
}

func TestManager_TeardownSkipsExited(t *testing.T) {
	m := NewManager(time.Millisecond)
	h := &fakeHandle{pid: 1, running: false}
	m.Register(h)

	m.Teardown()

	if h.terms != 0 || h.kills != 0 {
		t.Errorf("exited process should not be signalled, got terms=%d kills=%d", h.terms, h.kills)
	}
}

func TestManager_TeardownContinuesPastFailures(t *testing.T) {
	m := NewManager(time.Millisecond)
	bad := &fakeHandle{pid: 1, running: true, panicky: true}
	erring := &fakeHandle{pid: 2, running: true, stubborn: true, termErr: errors.New("eperm")}
	good := &fakeHandle{pid: 3, running: true}
	m.Register(bad)
	m.Register(erring)
	m.Register(good)

	m.Teardown()

	if erring.kills != 1 {
		t.Errorf("erroring handle should still be killed, got %d kills", erring.kills)
	}
	if good.Running() {
		t.Error("handle after a panicking one should still be torn down")
	}
}

func TestManager_TeardownTwice(t *testing.T) {
	m := NewManager(time.Millisecond)
	h := &fakeHandle{pid: 1, running: true}
	m.Register(h)

	m.Teardown()
	m.Teardown()

	if h.terms != 1 {
		t.Errorf("second teardown should be a no-op, got %d terminates", h.terms)
	}
}

func TestManager_TeardownEmpty(t *testing.T) {
	NewManager(0).Teardown()
}

func TestProcess_TeardownKillsGroup(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p, err := Start(exec.Command("sh", "-c", "sleep 30 & sleep 30"))
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	if !p.Running() {
		t.Fatal("process should be running")
	}

	m := NewManager(2 * time.Second)
	m.Register(p)
	m.Teardown()

	if p.Running() {
		t.Error("process should have exited after teardown")
	}
}

func TestProcess_ShellThatBackgroundsAndExits(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p, err := Start(exec.Command("sh", "-c", "sleep 30 &"))
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("shell should exit right after backgrounding")
	}
	if !p.Running() {
		t.Fatal("group with a surviving child should count as running")
	}
	if p.Wait(50 * time.Millisecond) {
		t.Error("wait should not report exit while the child lives")
	}

	m := NewManager(2 * time.Second)
	m.Register(p)
	m.Teardown()

	if groupAlive(p.Pid()) {
		t.Errorf("process group %d still alive after teardown", p.Pid())
	}
	if p.Running() {
		t.Error("process should not be running after teardown")
	}
}

func TestProcess_StubbornEscalatesToKill(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p, err := Start(exec.Command("sh", "-c", "trap '' TERM; while true; do sleep 0.1; done"))
	if err != nil {
		t.Fatalf("start error: %v", err)
	}
	// Give the shell time to install its trap.
	time.Sleep(200 * time.Millisecond)

	m := NewManager(300 * time.Millisecond)
	m.Register(p)
	start := time.Now()
	m.Teardown()

	if p.Running() {
		t.Error("stubborn process should be killed")
	}
	if time.Since(start) < 300*time.Millisecond {
		t.Error("teardown should wait out the grace period before killing")
	}
}

func TestGuard_TeardownAll(t *testing.T) {
	g := NewGuard()
	m1 := NewManager(time.Millisecond)
	m2 := NewManager(time.Millisecond)
	h1 := &fakeHandle{pid: 1, running: true}
	h2 := &fakeHandle{pid: 2, running: true}
	m1.Register(h1)
	m2.Register(h2)
	g.Add(m1)
	g.Add(m2)
	g.Remove(m1)

	g.TeardownAll()

	if !h1.Running() {
		t.Error("removed manager should not be torn down by guard")
	}
	if h2.Running() {
		t.Error("registered manager should be torn down")
	}
}

func TestGuard_WatchSignalsTearsDownAndCancels(t *testing.T) {
	g := NewGuard()
	m := NewManager(time.Millisecond)
	h := &fakeHandle{pid: 1, running: true}
	m.Register(h)
	g.Add(m)

	ctx, stop := g.WatchSignals(context.Background())
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("signal self: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context should be cancelled on SIGTERM")
	}
	if h.Running() {
		t.Error("managers should be torn down before cancellation")
	}
}
