package approval

import (
	"fmt"
	"strings"
)

// Preview line limits for approval cards.
const (
	ContentPreviewLines = 10
	EditPreviewLines    = 5
)

// Preview shortens content to at most maxLines lines by keeping the head and
// tail and eliding the middle.
func Preview(content string, maxLines int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content
	}

	head := maxLines / 2
	tail := maxLines - head
	out := make([]string, 0, maxLines+1)
	out = append(out, lines[:head]...)
	out = append(out, fmt.Sprintf("... (%d more lines) ...", len(lines)-maxLines))
	out = append(out, lines[len(lines)-tail:]...)
	return strings.Join(out, "\n")
}

// lineCount counts lines the way an editor would: a trailing newline does not
// start a new line.
func lineCount(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}
