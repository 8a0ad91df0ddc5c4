package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/vinayprograms/devloop/internal/session"
)

// needlePreview bounds how much of a missing edit string is echoed back.
const needlePreview = 50

// WriteResult is returned by write_file.
type WriteResult struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytes_written"`
	Action       string `json:"action"`
}

// EditResult is returned by edit_file.
type EditResult struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
}

// readFileTool reads a UTF-8 text file.
type readFileTool struct{}

func (t *readFileTool) Name() string { return "read_file" }

func (t *readFileTool) Description() string {
	return "Read a UTF-8 text file under the current working directory and return its content."
}

func (t *readFileTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"path": stringParam("The path to the file to read."),
	}, "path")
}

func (t *readFileTool) Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (interface{}, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &in, "path"); err != nil {
		return nil, err
	}

	p, err := sess.Resolve(in.Path)
	if err != nil {
		return nil, Retryable("Failed to read file '%s': %v", in.Path, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, Retryable("Failed to read file '%s': %v", in.Path, err)
	}
	if !utf8.Valid(data) {
		return nil, Retryable("Failed to read file '%s': content is not valid UTF-8", in.Path)
	}
	return string(data), nil
}

// writeFileTool creates or overwrites a file.
type writeFileTool struct{}

func (t *writeFileTool) Name() string { return "write_file" }

func (t *writeFileTool) Description() string {
	return "Create or overwrite a UTF-8 text file under the current working directory with the given content. " +
		"This tool requires user approval. Returns a summary with bytes written."
}

func (t *writeFileTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"path":    stringParam("The path to the file to write."),
		"content": stringParam("The content to write to the file."),
	}, "path", "content")
}

func (t *writeFileTool) Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (interface{}, error) {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeArgs(args, &in, "path", "content"); err != nil {
		return nil, err
	}

	p, err := sess.Resolve(in.Path)
	if err != nil {
		return nil, Retryable("Failed to write file '%s': %v", in.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, Retryable("Failed to write file '%s': %v", in.Path, err)
	}
	data := []byte(in.Content)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return nil, Retryable("Failed to write file '%s': %v", in.Path, err)
	}
	return &WriteResult{Path: p, BytesWritten: len(data), Action: "wrote"}, nil
}

// editFileTool replaces the first exact occurrence of a string.
type editFileTool struct{}

func (t *editFileTool) Name() string { return "edit_file" }

func (t *editFileTool) Description() string {
	return "Edit a file by replacing the first exact occurrence of old_string with new_string. " +
		"The match must be exact including new lines and indentation. " +
		"This tool requires user approval. Returns a summary with replacements count."
}

func (t *editFileTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"path":       stringParam("The path to the file to edit."),
		"old_string": stringParam("The string to replace. Must be exact including new lines and indentation."),
		"new_string": stringParam("The string to replace with."),
	}, "path", "old_string", "new_string")
}

func (t *editFileTool) Execute(ctx context.Context, sess *session.Session, args map[string]interface{}) (interface{}, error) {
	var in struct {
		Path      string `json:"path"`
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	}
	if err := decodeArgs(args, &in, "path", "old_string", "new_string"); err != nil {
		return nil, err
	}

	p, err := sess.Resolve(in.Path)
	if err != nil {
		return nil, Retryable("Failed to edit file '%s': %v", in.Path, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, Retryable("Failed to edit file '%s': %v", in.Path, err)
	}
	content := string(data)
	if !strings.Contains(content, in.OldString) {
		return nil, Retryable("String not found in file '%s': %s...", in.Path, truncate(in.OldString, needlePreview))
	}

	updated := strings.Replace(content, in.OldString, in.NewString, 1)
	if err := os.WriteFile(p, []byte(updated), 0644); err != nil {
		return nil, Retryable("Failed to edit file '%s': %v", in.Path, err)
	}
	return &EditResult{Path: p, Replacements: 1}, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
