package agents

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/devloop/internal/approval"
	"github.com/vinayprograms/devloop/internal/engine"
	"github.com/vinayprograms/devloop/internal/session"
	"github.com/vinayprograms/devloop/internal/tools"
)

type fakeRemote struct {
	calls []string
	reply func(server, tool string) (string, error)
}

func (f *fakeRemote) Tools() []RemoteTool {
	return []RemoteTool{{
		Server:      "playwright",
		Name:        "browser_navigate",
		Description: "Navigate to a URL",
		InputSchema: map[string]interface{}{"type": "object"},
	}}
}

func (f *fakeRemote) Call(ctx context.Context, server, tool string, args map[string]interface{}) (string, error) {
	f.calls = append(f.calls, server+"/"+tool)
	return f.reply(server, tool)
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.New("build a todo app", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

func lastContent(req llm.ChatRequest) string {
	return req.Messages[len(req.Messages)-1].Content
}

const passing = `{"result": "success", "breaking_bugs": [], "summary": "all flows work"}`

func TestVerificationInput(t *testing.T) {
	got := VerificationInput("build <app>", "runs on localhost:3041\nuse & enjoy")
	want := "<task>build &lt;app&gt;</task>\n" +
		"<engineering_implementation_note>runs on localhost:3041\nuse &amp; enjoy</engineering_implementation_note>"
	if got != want {
		t.Errorf("unexpected input:\n%s", got)
	}
}

func TestVerdictValidate(t *testing.T) {
	tests := []struct {
		name string
		v    Verdict
		ok   bool
	}{
		{"success", Verdict{Result: "success"}, true},
		{"fail with bug", Verdict{Result: "fail", BreakingBugs: []Bug{{Description: "login broken", Severity: "critical"}}}, true},
		{"bad result", Verdict{Result: "partial"}, false},
		{"bad severity", Verdict{Result: "fail", BreakingBugs: []Bug{{Description: "x", Severity: "blocker"}}}, false},
		{"missing description", Verdict{Result: "fail", BreakingBugs: []Bug{{Severity: "low"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestCoder_BuildUsesGatewayAndReturnsNote(t *testing.T) {
	sess := newSession(t)
	provider := llm.NewMockProvider()
	callCount := 0
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		callCount++
		if callCount == 1 {
			if req.Messages[1].Content != "build a todo app" {
				t.Errorf("task should be the prompt, got %q", req.Messages[1].Content)
			}
			if len(req.Tools) != 6 {
				t.Errorf("build stage should see six tools, got %d", len(req.Tools))
			}
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{
				ID: "1", Name: "write_file",
				Args: map[string]interface{}{"path": "index.html", "content": "<h1>todo</h1>"},
			}}}, nil
		}
		return &llm.ChatResponse{Content: "open localhost:3041"}, nil
	}

	out := &bytes.Buffer{}
	gw := approval.NewGateway(tools.NewCodingRegistry(tools.Options{}), approval.NewTerminal(strings.NewReader(""), out), []string{})

	note, err := NewCoder(provider, gw, 0).Build(context.Background(), sess)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if note != "open localhost:3041" {
		t.Errorf("unexpected note %q", note)
	}
	if _, err := os.Stat(filepath.Join(sess.Root, "index.html")); err != nil {
		t.Error("tool call should have written the file")
	}
	if !strings.Contains(out.String(), "write_file") {
		t.Error("gateway should echo the call")
	}

	events := sess.EventsSnapshot()
	if events[0].Type != session.EventStageStart || events[len(events)-1].Type != session.EventStageEnd {
		t.Errorf("stage should be bracketed by start and end events, got %v and %v", events[0].Type, events[len(events)-1].Type)
	}
}

func TestQA_VerifyWithRemoteTools(t *testing.T) {
	sess := newSession(t)
	remote := &fakeRemote{reply: func(string, string) (string, error) { return "page loaded", nil }}

	provider := llm.NewMockProvider()
	callCount := 0
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		callCount++
		switch callCount {
		case 1:
			if !strings.Contains(req.Messages[1].Content, "<engineering_implementation_note>open localhost:3041</engineering_implementation_note>") {
				t.Errorf("prompt should carry the note, got %q", req.Messages[1].Content)
			}
			var names []string
			for _, d := range req.Tools {
				names = append(names, d.Name)
			}
			if strings.Join(names, ",") != "todo_list,mcp_playwright_browser_navigate" {
				t.Errorf("unexpected tools %v", names)
			}
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{
				ID: "1", Name: "mcp_playwright_browser_navigate",
				Args: map[string]interface{}{"url": "http://localhost:3041"},
			}}}, nil
		default:
			if lastContent(req) != "page loaded" {
				t.Errorf("remote result should be returned to the model, got %q", lastContent(req))
			}
			return &llm.ChatResponse{Content: passing}, nil
		}
	}

	v, err := NewQA(provider, remote, 0).Verify(context.Background(), sess, "open localhost:3041")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if !v.Passed() || v.Summary != "all flows work" {
		t.Errorf("unexpected verdict %+v", v)
	}
	if len(remote.calls) != 1 || remote.calls[0] != "playwright/browser_navigate" {
		t.Errorf("expected one remote call, got %v", remote.calls)
	}
}

func TestQA_RemoteErrorIsFedBack(t *testing.T) {
	sess := newSession(t)
	remote := &fakeRemote{reply: func(string, string) (string, error) { return "", errors.New("browser crashed") }}

	provider := llm.NewMockProvider()
	callCount := 0
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		callCount++
		if callCount == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{ID: "1", Name: "mcp_playwright_browser_navigate"}}}, nil
		}
		if !strings.Contains(lastContent(req), "browser crashed") {
			t.Errorf("remote failure should reach the model, got %q", lastContent(req))
		}
		return &llm.ChatResponse{Content: `{"result": "fail", "breaking_bugs": [{"description": "site down", "reproduce_steps": "open /", "severity": "critical"}], "summary": "down"}`}, nil
	}

	v, err := NewQA(provider, remote, 0).Verify(context.Background(), sess, "note")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if v.Passed() || len(v.BreakingBugs) != 1 || v.BreakingBugs[0].Severity != SeverityCritical {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestQA_PlanIsPrivate(t *testing.T) {
	sess := newSession(t)
	sess.SetPlan([]session.PlanItem{{Title: "build", Status: session.PlanCompleted}})

	provider := llm.NewMockProvider()
	callCount := 0
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		callCount++
		if callCount == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{
				ID: "1", Name: "todo_list",
				Args: map[string]interface{}{"todos": []interface{}{
					map[string]interface{}{"title": "open home page", "status": "active"},
				}},
			}}}, nil
		}
		return &llm.ChatResponse{Content: passing}, nil
	}

	if _, err := NewQA(provider, nil, 0).Verify(context.Background(), sess, "note"); err != nil {
		t.Fatalf("verify error: %v", err)
	}
	plan := sess.Plan()
	if len(plan) != 1 || plan[0].Title != "build" {
		t.Errorf("verification must not replace the build plan, got %+v", plan)
	}
}

func TestQA_InvalidVerdictRetried(t *testing.T) {
	sess := newSession(t)
	provider := llm.NewMockProvider()
	callCount := 0
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		callCount++
		if callCount == 1 {
			return &llm.ChatResponse{Content: `{"result": "mostly", "breaking_bugs": [], "summary": ""}`}, nil
		}
		return &llm.ChatResponse{Content: passing}, nil
	}

	v, err := NewQA(provider, nil, 0).Verify(context.Background(), sess, "note")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if !v.Passed() || callCount != 2 {
		t.Errorf("invalid verdict should be retried once, got %+v after %d calls", v, callCount)
	}
}

func TestQA_RejectedVerdictDoesNotCarryOver(t *testing.T) {
	sess := newSession(t)
	replies := []string{
		`{"result": "broken", "breaking_bugs": [{"description": "login 500", "reproduce_steps": "submit form", "severity": "critical"}], "summary": "bad"}`,
		`{"result": "success", "summary": "all good"}`,
		`{"result": "success", "breaking_bugs": [], "summary": "all good"}`,
	}
	provider := llm.NewMockProvider()
	callCount := 0
	provider.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		callCount++
		return &llm.ChatResponse{Content: replies[callCount-1]}, nil
	}

	v, err := NewQA(provider, nil, 0).Verify(context.Background(), sess, "note")
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if callCount != 3 {
		t.Errorf("verdict without breaking_bugs should be rejected, got %d calls", callCount)
	}
	if !v.Passed() || len(v.BreakingBugs) != 0 || v.Summary != "all good" {
		t.Errorf("bugs from a rejected verdict leaked into %+v", v)
	}
}

func TestQA_RetriesExhausted(t *testing.T) {
	sess := newSession(t)
	provider := llm.NewMockProvider()
	provider.SetResponse("looks fine to me")

	_, err := NewQA(provider, nil, 1).Verify(context.Background(), sess, "note")
	if !errors.Is(err, engine.ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", err)
	}
}
