package approval

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
)

// ErrNoOperator is returned when the operator's input stream ends while a
// decision is pending.
var ErrNoOperator = errors.New("approval input closed")

// Prompter talks to the human operator.
type Prompter interface {
	// Echo shows a tool call about to run.
	Echo(name string, args map[string]interface{})
	// Confirm renders the call and blocks until a recognized decision or
	// until ctx is done.
	Confirm(ctx context.Context, name string, args map[string]interface{}) (Decision, error)
	// Redirect asks for replacement instructions after a denial.
	Redirect(ctx context.Context) (string, error)
}

// Terminal is a line-oriented Prompter over a reader and writer, normally
// stdin and stdout. Input is read on a separate goroutine so a pending
// prompt can be abandoned when its context is cancelled.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer

	start sync.Once
	lines chan string
	err   error // set before lines is closed
}

// NewTerminal creates a Terminal.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Echo(name string, args map[string]interface{}) {
	fmt.Fprintf(t.out, "🔧 Tool Call: %s\n", toolStyle.Render(name))
	fmt.Fprintf(t.out, "📝 Args: %s\n", dimStyle.Render(formatArgs(args)))
}

func (t *Terminal) Confirm(ctx context.Context, name string, args map[string]interface{}) (Decision, error) {
	t.card(name, args)
	for {
		fmt.Fprint(t.out, "\n🤔 Approve execution? (Y)es/(n)o/(s)kip for this tool/(sa)skip all approvals: ")
		line, err := t.readLine(ctx)
		if err != nil {
			return Deny, err
		}
		if d, ok := ParseDecision(line); ok {
			return d, nil
		}
		fmt.Fprintln(t.out, "❓ Please enter 'y', 'n', 's' or 'sa'")
	}
}

func (t *Terminal) Redirect(ctx context.Context) (string, error) {
	fmt.Fprintln(t.out, "\n📋 "+warnStyle.Render("Please provide new instructions:"))
	fmt.Fprint(t.out, "💭 Instructions: ")
	line, err := t.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// card renders the approval details for a gated call.
func (t *Terminal) card(name string, args map[string]interface{}) {
	fmt.Fprintln(t.out, "\n⚠️  "+warnStyle.Render("Approval Required"))
	fmt.Fprintf(t.out, "🔧 Tool: %s\n", toolStyle.Render(name))

	switch name {
	case "write_file":
		content := argString(args, "content")
		fmt.Fprintf(t.out, "📁 Path: %s\n", pathStyle.Render(argString(args, "path")))
		fmt.Fprintf(t.out, "📝 Content (%d lines):\n", lineCount(content))
		t.block(Preview(content, ContentPreviewLines), dimStyle)
	case "edit_file":
		fmt.Fprintf(t.out, "📁 Path: %s\n", pathStyle.Render(argString(args, "path")))
		fmt.Fprintln(t.out, "🔍 Find:")
		t.block(Preview(argString(args, "old_string"), EditPreviewLines), removedStyle)
		fmt.Fprintln(t.out, "🔄 Replace with:")
		t.block(Preview(argString(args, "new_string"), EditPreviewLines), addedStyle)
	default:
		fmt.Fprintf(t.out, "📝 Args: %s\n", formatArgs(args))
	}
}

func (t *Terminal) block(text string, style lipgloss.Style) {
	fmt.Fprintln(t.out, fence)
	fmt.Fprintln(t.out, indent.String(renderLines(style, text), 2))
	fmt.Fprintln(t.out, fence)
}

// readLine returns the next input line, or ctx's error if it is done first.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	t.start.Do(func() {
		t.lines = make(chan string)
		go t.scan()
	})
	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", t.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// scan feeds input lines to readLine until the input fails.
func (t *Terminal) scan() {
	for {
		line, err := t.next()
		if err != nil {
			t.err = err
			close(t.lines)
			return
		}
		t.lines <- line
	}
}

// next returns one line without its terminator. A final unterminated line
// is returned; end of input with nothing read is ErrNoOperator.
func (t *Terminal) next() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoOperator
		}
		return "", fmt.Errorf("reading approval input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// formatArgs renders arguments in a stable key order.
func formatArgs(args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, argString(args, k)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
