package tools

import (
	"context"
	"errors"
	"os"

	"github.com/vinayprograms/devloop/internal/session"
)

// CwdResult is returned by change_working_directory.
type CwdResult struct {
	OldCwd string `json:"old_cwd"`
	NewCwd string `json:"new_cwd"`
	Action string `json:"action"`
}

// changeDirTool narrows the session's working directory.
type changeDirTool struct{}

func (t *changeDirTool) Name() string { return "change_working_directory" }

func (t *changeDirTool) Description() string {
	return "Change the current working directory to the specified path. " +
		"The path must be under the current working directory."
}

func (t *changeDirTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"path": stringParam("The path to change to, relative to the current working directory."),
	}, "path")
}

func (t *changeDirTool) Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (interface{}, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &in, "path"); err != nil {
		return nil, err
	}

	oldCwd := sess.Cwd()
	newCwd, err := sess.Resolve(in.Path)
	if err != nil {
		return nil, Retryable("Failed to change directory to '%s': %v", in.Path, err)
	}
	info, err := os.Stat(newCwd)
	if errors.Is(err, os.ErrNotExist) {
		return nil, Retryable("Directory does not exist: %s", in.Path)
	}
	if err != nil {
		return nil, Retryable("Failed to change directory to '%s': %v", in.Path, err)
	}
	if !info.IsDir() {
		return nil, Retryable("Path is not a directory: %s", in.Path)
	}

	sess.SetCwd(newCwd)
	return &CwdResult{OldCwd: oldCwd, NewCwd: newCwd, Action: "changed_directory"}, nil
}
