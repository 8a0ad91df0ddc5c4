package replay

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/devloop/internal/session"
)

// writeTranscript records a small build and verify cycle and saves it.
func writeTranscript(t *testing.T, dir, result string) string {
	t.Helper()
	sess, err := session.New("build a todo app", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	ok, failed := true, false

	sess.AddEvent(session.Event{Type: session.EventStageStart, Agent: "build", Content: "build a todo app"})
	sess.AddEvent(session.Event{Type: session.EventApproval, Tool: "bash", Decision: "approve"})
	sess.AddEvent(session.Event{Type: session.EventToolCall, Agent: "build", Tool: "bash",
		Args: map[string]interface{}{"cmd": "PORT=3041 npm run dev", "background": true}})
	sess.AddEvent(session.Event{Type: session.EventToolResult, Agent: "build", Tool: "bash", Success: &ok, DurationMs: 12})
	sess.AddEvent(session.Event{Type: session.EventToolCall, Agent: "build", Tool: "read_file",
		Args: map[string]interface{}{"path": "missing.txt"}})
	sess.AddEvent(session.Event{Type: session.EventToolResult, Agent: "build", Tool: "read_file", Success: &failed,
		Error: "Failed to read file 'missing.txt'"})
	sess.AddEvent(session.Event{Type: session.EventStageEnd, Agent: "build", Content: "open localhost:3041", DurationMs: 900})
	sess.AddEvent(session.Event{Type: session.EventStageStart, Agent: "verify"})
	sess.AddEvent(session.Event{Type: session.EventStageEnd, Agent: "verify", Content: result, DurationMs: 400})
	sess.Teardown()
	sess.SetPlan([]session.PlanItem{{Title: "scaffold app", Status: session.PlanCompleted}})
	sess.Complete(result)

	store, err := session.NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	return store.Path(sess.ID)
}

func TestLoad(t *testing.T) {
	path := writeTranscript(t, t.TempDir(), "success")

	tr, err := Load(path, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tr.Task != "build a todo app" || tr.Status != session.StatusComplete || tr.Result != "success" {
		t.Errorf("unexpected transcript %+v", tr)
	}
	if len(tr.Events) != 10 {
		t.Errorf("expected 10 events, got %d", len(tr.Events))
	}
	if tr.Events[2].Args["cmd"] != "PORT=3041 npm run dev" {
		t.Errorf("args should survive the round trip, got %v", tr.Events[2].Args)
	}
	if tr.Events[5].Error == "" || *tr.Events[5].Success {
		t.Errorf("tool failure should be kept, got %+v", tr.Events[5])
	}
	if len(tr.Plan) != 1 || tr.Plan[0].Title != "scaffold app" {
		t.Errorf("final plan should be read from the footer, got %+v", tr.Plan)
	}
}

func TestLoad_TruncatesContent(t *testing.T) {
	path := writeTranscript(t, t.TempDir(), "success")

	tr, err := Load(path, 5)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasPrefix(tr.Events[0].Content, "build\n... [truncated") {
		t.Errorf("long content should be truncated, got %q", tr.Events[0].Content)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "nope.jsonl"), 0); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.jsonl")
	os.WriteFile(bad, []byte("{not json\n"), 0644)
	if _, err := Load(bad, 0); err == nil || !strings.Contains(err.Error(), "bad.jsonl:1") {
		t.Errorf("parse error should name the line, got %v", err)
	}

	headless := filepath.Join(dir, "headless.jsonl")
	os.WriteFile(headless, []byte(`{"_type":"event","seq":1,"type":"teardown"}`+"\n"), 0644)
	if _, err := Load(headless, 0); err == nil {
		t.Error("expected error for transcript without header")
	}
}

func TestLoadDir_OldestFirst(t *testing.T) {
	dir := t.TempDir()
	first := writeTranscript(t, dir, "fail")
	time.Sleep(10 * time.Millisecond)
	writeTranscript(t, dir, "success")

	trs, err := LoadDir(dir, 0)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(trs) != 2 || trs[0].Path != first {
		t.Errorf("transcripts should be ordered by creation, got %d", len(trs))
	}
}

func TestReplay(t *testing.T) {
	path := writeTranscript(t, t.TempDir(), "success")

	var buf bytes.Buffer
	if err := New(&buf, 0).ReplayFiles([]string{path}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"SESSION", "build a todo app",
		"BUILD START", "VERIFY END",
		"APPROVAL", "approve",
		"PORT=3041 npm run dev &",
		"missing.txt", "Failed to read file",
		"TEARDOWN", "COMPLETED:", "STATS",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("replay missing %q", want)
		}
	}
	if strings.Contains(out, "open localhost:3041") {
		t.Error("stage output should only show when verbose")
	}
	if strings.Contains(out, "CYCLE") {
		t.Error("single transcript should not be labelled as a cycle")
	}
}

func TestReplay_VerboseAndMultiCycle(t *testing.T) {
	dir := t.TempDir()
	a := writeTranscript(t, dir, "fail")
	time.Sleep(10 * time.Millisecond)
	b := writeTranscript(t, dir, "success")

	var buf bytes.Buffer
	if err := New(&buf, 1).ReplayFiles([]string{b, a}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "open localhost:3041") || !strings.Contains(out, "Final plan:") {
		t.Error("verbose replay should include stage output and the plan")
	}
	if !strings.Contains(out, "CYCLE 1/2") || !strings.Contains(out, "CYCLE 2/2") || !strings.Contains(out, "RUN") {
		t.Error("multiple transcripts should be shown as cycles of a run")
	}
	if strings.Index(out, "COMPLETED: fail") > strings.Index(out, "COMPLETED: success") {
		t.Error("older transcript should come first")
	}
}

func TestComputeStats(t *testing.T) {
	tr, err := Load(writeTranscript(t, t.TempDir(), "success"), 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := ComputeStats(tr)
	if s.TotalToolCalls() != 2 || s.ToolFailures["read_file"] != 1 {
		t.Errorf("unexpected tool stats %+v", s)
	}
	if s.StageDurations["build"] != 900 || s.StageDurations["verify"] != 400 {
		t.Errorf("unexpected stage durations %v", s.StageDurations)
	}
	if s.Approvals["approve"] != 1 || s.Teardowns != 1 {
		t.Errorf("unexpected approvals/teardowns %+v", s)
	}
}

func TestArgsHint(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]interface{}
		want string
	}{
		{"write_file", map[string]interface{}{"path": "app/page.tsx"}, "app/page.tsx"},
		{"bash", map[string]interface{}{"cmd": "ls -la"}, "ls -la"},
		{"mcp_playwright_browser_navigate", map[string]interface{}{"url": "http://localhost:3041"}, "http://localhost:3041"},
		{"todo_list", map[string]interface{}{"todos": []interface{}{}}, ""},
	}
	for _, tt := range tests {
		got := argsHint(tt.tool, tt.args)
		if tt.want == "" && got != "" || !strings.Contains(got, tt.want) {
			t.Errorf("argsHint(%s) = %q, want %q", tt.tool, got, tt.want)
		}
	}
}

func TestWrapContent(t *testing.T) {
	row := "    1 │ 12:00:00 │ " + strings.TrimSpace(strings.Repeat("word ", 20))
	wrapped := wrapContent(row, 50)

	lines := strings.Split(wrapped, "\n")
	if len(lines) < 2 {
		t.Fatalf("long row should wrap, got %q", wrapped)
	}
	prefix := lipgloss.Width("    1 │ 12:00:00 │ ")
	for _, l := range lines[1:] {
		if strings.TrimLeft(l, " ") == "" || len(l)-len(strings.TrimLeft(l, " ")) != prefix {
			t.Errorf("continuation should align with the content column: %q", l)
		}
	}

	if wrapContent("short", 50) != "short" {
		t.Error("short lines should pass through")
	}
}

func TestPagerModel_Search(t *testing.T) {
	var content []string
	for i := 0; i < 50; i++ {
		content = append(content, "line")
	}
	content[40] = "needle here"

	m := newPagerModel("t", strings.Join(content, "\n"))
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	if !m.ready {
		t.Fatal("model should be ready after a size message")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.searching {
		t.Fatal("slash should start a search")
	}
	m.searchInput.SetValue("NEEDLE")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.searching || len(m.matches) != 1 || m.matches[0] != 40 {
		t.Errorf("expected one case-insensitive match on line 40, got %v", m.matches)
	}
	if m.viewport.YOffset == 0 {
		t.Error("viewport should scroll to the match")
	}
	if !strings.Contains(m.View(), "[1/1]") {
		t.Error("footer should show the match position")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.query != "" || m.matches != nil {
		t.Error("esc should clear the search")
	}
}

func TestPagerModel_LiveReload(t *testing.T) {
	calls := 0
	m := newPagerModel("t", "old")
	m.live = true
	m.renderFunc = func() (string, error) {
		calls++
		if calls > 1 {
			return "", errors.New("half-written file")
		}
		return "new content", nil
	}
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})

	m.reload()
	if m.content != "new content" || m.lastUpdate.IsZero() {
		t.Errorf("reload should replace content, got %q", m.content)
	}
	m.reload()
	if m.content != "new content" {
		t.Error("failed render should keep the previous content")
	}
}
