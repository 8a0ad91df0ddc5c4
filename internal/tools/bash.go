package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/vinayprograms/devloop/internal/procs"
	"github.com/vinayprograms/devloop/internal/session"
)

// DefaultTimeout applies to foreground commands that don't set one.
const DefaultTimeout = 60 * time.Second

// pipeDrainDelay bounds how long a killed command may hold its output pipes
// open through surviving descendants.
const pipeDrainDelay = 2 * time.Second

// ExecResult is the outcome of a foreground command. A non-zero exit code is
// a normal result, not an error.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// BackgroundResult describes a command left running.
type BackgroundResult struct {
	PID     int    `json:"pid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusRunningInBackground is the status of a detached command.
const StatusRunningInBackground = "running_in_background"

// bashTool runs shell commands in the session's working directory.
type bashTool struct {
	shell          string
	defaultTimeout time.Duration
}

func newBashTool(shell string, defaultTimeout time.Duration) *bashTool {
	if shell == "" {
		shell = "bash"
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &bashTool{shell: shell, defaultTimeout: defaultTimeout}
}

func (t *bashTool) Name() string { return "bash" }

func (t *bashTool) Description() string {
	return "Run a bash command in the current working directory and return exit_code, stdout, stderr. " +
		"This tool requires user approval. " +
		"When running commands that might require interactivity (like npm init), pass arguments that prevent them " +
		"from hanging, for example npm init --yes. Use proper timeouts: if a command is expected to take a long time, " +
		"use a longer timeout. Set background to true for long-running services such as dev servers; the command " +
		"returns immediately with its PID and is stopped when the session ends."
}

func (t *bashTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"cmd": stringParam("The bash command to run."),
		"timeout": map[string]interface{}{
			"type":        "number",
			"description": fmt.Sprintf("Timeout in seconds for the command. Defaults to %d seconds.", int(t.defaultTimeout.Seconds())),
		},
		"background": map[string]interface{}{
			"type":        "boolean",
			"description": "If true, run the command in the background and return immediately.",
		},
	}, "cmd")
}

func (t *bashTool) Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (interface{}, error) {
	var in struct {
		Cmd        string   `json:"cmd"`
		Timeout    *float64 `json:"timeout"`
		Background bool     `json:"background"`
	}
	if err := decodeArgs(args, &in, "cmd"); err != nil {
		return nil, err
	}

	if in.Background {
		return t.runBackground(sess, in.Cmd)
	}

	timeout := t.defaultTimeout
	if in.Timeout != nil && *in.Timeout > 0 {
		timeout = time.Duration(*in.Timeout * float64(time.Second))
	}
	return t.runForeground(ctx, sess, in.Cmd, timeout)
}

func (t *bashTool) runForeground(ctx context.Context, sess *session.Session, command string, timeout time.Duration) (*ExecResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.shell, "-c", command)
	cmd.Dir = sess.Cwd()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	procs.KillGroupOnCancel(cmd, pipeDrainDelay)

	err := cmd.Run()
	if err == nil {
		return &ExecResult{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	// The caller going away is not the model's problem to fix.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, Retryable("Command timed out after %s seconds: %s", formatSeconds(timeout), command)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExecResult{ExitCode: exitErr.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
	return nil, Retryable("Failed to execute command '%s': %v", command, err)
}

func (t *bashTool) runBackground(sess *session.Session, command string) (*BackgroundResult, error) {
	cmd := exec.Command(t.shell, "-c", command)
	cmd.Dir = sess.Cwd()

	p, err := procs.Start(cmd)
	if err != nil {
		return nil, Retryable("Failed to execute command '%s': %v", command, err)
	}
	sess.Procs().Register(p)

	return &BackgroundResult{
		PID:     p.Pid(),
		Status:  StatusRunningInBackground,
		Message: fmt.Sprintf("Command started in background with PID %d", p.Pid()),
	}, nil
}

func formatSeconds(d time.Duration) string {
	s := d.Seconds()
	if s == float64(int64(s)) {
		return fmt.Sprintf("%d", int64(s))
	}
	return fmt.Sprintf("%g", s)
}
