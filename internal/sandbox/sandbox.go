// Package sandbox confines file paths to a project root.
//
// Confinement is lexical after symlink canonicalization. It is not an
// operating-system sandbox: shell commands run by the agent can still reach
// anything the process user can.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside the root.
var ErrPathEscape = errors.New("path escapes project root")

// EscapeError describes a rejected path.
type EscapeError struct {
	Path string // path as given by the caller
	Root string // canonical root
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("access denied: path '%s' is outside the project directory %s", e.Path, e.Root)
}

// Is lets errors.Is match ErrPathEscape.
func (e *EscapeError) Is(target error) bool {
	return target == ErrPathEscape
}

// Resolve returns the canonical absolute form of path, interpreted relative to
// root unless already absolute. The target need not exist. Any result that is
// not root itself or a descendant of it is rejected with an *EscapeError.
func Resolve(root, path string) (string, error) {
	canonRoot, err := Canonical(root)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", root, err)
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(canonRoot, target)
	}
	canonTarget, err := Canonical(target)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}

	if !Within(canonRoot, canonTarget) {
		return "", &EscapeError{Path: path, Root: canonRoot}
	}
	return canonTarget, nil
}

// Within reports whether target is root or lies beneath it. Both arguments
// must already be canonical.
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Canonical makes path absolute, resolves symlinks in its longest existing
// prefix and lexically cleans the rest.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := abs
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Clean(filepath.Join(parts...)), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			// Nothing exists, not even the volume root.
			return filepath.Clean(abs), nil
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}
}
