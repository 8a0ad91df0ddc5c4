// Package procs tracks background processes started on behalf of a session
// and reaps them at teardown.
package procs

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Handle is a running process that can be signalled and awaited.
type Handle interface {
	Pid() int
	// Running reports whether the process, or anything it left behind in
	// its group, is still alive.
	Running() bool
	// Terminate asks the process to exit (SIGTERM).
	Terminate() error
	// Kill forces the process to exit (SIGKILL).
	Kill() error
	// Wait blocks until the process has exited or timeout elapses. A
	// negative timeout waits without bound. Reports whether it has exited.
	Wait(timeout time.Duration) bool
}

// Process is a Handle over an exec.Cmd started in its own process group.
// Signals go to the whole group so that children of a shell die with it, and
// the process counts as running while any member of the group is alive.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Start launches cmd in a new process group and reaps it in the background.
func Start(cmd *exec.Cmd) (*Process, error) {
	Isolate(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}
	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Isolate puts cmd in its own process group.
func Isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// orphanReapTimeout bounds how long an unbounded Wait polls for group members
// once the leader is gone. Killed orphans are reaped by init, not by us.
const orphanReapTimeout = 5 * time.Second

// groupPollInterval is how often Wait checks a leaderless group.
const groupPollInterval = 20 * time.Millisecond

// KillGroupOnCancel makes context cancellation SIGKILL the command's whole
// process group, and bounds how long Wait blocks on pipes inherited by
// grandchildren after the shell exits.
func KillGroupOnCancel(cmd *exec.Cmd, waitDelay time.Duration) {
	Isolate(cmd)
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
}

func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *Process) Running() bool {
	if !p.leaderExited() {
		return true
	}
	return groupAlive(p.Pid())
}

func (p *Process) Terminate() error {
	return signalGroup(p.Pid(), unix.SIGTERM)
}

func (p *Process) Kill() error {
	return signalGroup(p.Pid(), unix.SIGKILL)
}

func (p *Process) Wait(timeout time.Duration) bool {
	var deadline time.Time
	if timeout < 0 {
		<-p.done
		deadline = time.Now().Add(orphanReapTimeout)
	} else {
		deadline = time.Now().Add(timeout)
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-p.done:
		case <-t.C:
			return false
		}
	}

	for groupAlive(p.Pid()) {
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(groupPollInterval)
	}
	return true
}

func (p *Process) leaderExited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the Wait error once the process has exited.
func (p *Process) Err() error {
	if !p.leaderExited() {
		return nil
	}
	return p.err
}

// groupAlive reports whether any process remains in group pgid.
func groupAlive(pgid int) bool {
	err := unix.Kill(-pgid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// signalGroup signals every process in pid's group. A group that is already
// gone is not an error.
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
