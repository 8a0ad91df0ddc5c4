package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/mcp"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/vinayprograms/devloop/internal/agents"
	"github.com/vinayprograms/devloop/internal/approval"
	"github.com/vinayprograms/devloop/internal/config"
	"github.com/vinayprograms/devloop/internal/orchestrator"
	"github.com/vinayprograms/devloop/internal/procs"
	"github.com/vinayprograms/devloop/internal/session"
	"github.com/vinayprograms/devloop/internal/tools"
)

// runtime wires the components for one run.
type runtime struct {
	cli   *CLI
	cfg   *config.Config
	creds *credentials.Credentials
	root  string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Components
	buildLLM   llm.Provider
	verifyLLM  llm.Provider
	telem      telemetry.Exporter
	mcpManager *mcp.Manager
	gateway    *approval.Gateway
	store      session.Store
	guard      *procs.Guard
	loop       *orchestrator.Loop

	// Cleanup
	closers []func()
}

// newRuntime loads configuration for a run rooted at root.
func newRuntime(cli *CLI, root string, creds *credentials.Credentials) (*runtime, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	return &runtime{
		cli:    cli,
		cfg:    cfg,
		creds:  creds,
		root:   root,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		guard:  procs.NewGuard(),
	}, nil
}

// setup initializes all runtime components. Returns error on failure.
func (rt *runtime) setup() error {
	if err := rt.createProviders(); err != nil {
		return err
	}
	if err := rt.setupTelemetry(); err != nil {
		return err
	}
	if err := rt.setupStore(); err != nil {
		return err
	}
	rt.setupMCP()
	rt.setupGateway()
	rt.createLoop()
	return nil
}

// createProviders creates the build and verify LLM providers unless already set.
func (rt *runtime) createProviders() error {
	var err error
	if rt.buildLLM == nil {
		if rt.buildLLM, err = rt.newProvider(rt.cfg.GetProfile("build")); err != nil {
			return fmt.Errorf("creating build LLM provider: %w", err)
		}
	}
	if rt.verifyLLM == nil {
		if rt.verifyLLM, err = rt.newProvider(rt.cfg.GetProfile("verify")); err != nil {
			return fmt.Errorf("creating verify LLM provider: %w", err)
		}
	}
	return nil
}

func (rt *runtime) newProvider(c config.LLMConfig) (llm.Provider, error) {
	provider := c.Provider
	if provider == "" {
		provider = llm.InferProviderFromModel(c.Model)
	}
	if provider == "" && c.Model == "" {
		return nil, fmt.Errorf("LLM model not configured")
	}

	return llm.NewProvider(llm.ProviderConfig{
		Provider:    provider,
		Model:       c.Model,
		APIKey:      rt.apiKey(provider, c),
		MaxTokens:   c.MaxTokens,
		BaseURL:     c.BaseURL,
		Thinking:    llm.ThinkingConfig{Level: llm.ThinkingLevel(c.Thinking)},
		RetryConfig: retryConfig(c),
	})
}

// apiKey prefers the credentials file and falls back to the environment.
func (rt *runtime) apiKey(provider string, c config.LLMConfig) string {
	if rt.creds != nil {
		if key := rt.creds.GetAPIKey(provider); key != "" {
			return key
		}
	}
	c.Provider = provider
	return c.GetAPIKey()
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// setupStore creates the transcript store when a directory is configured.
func (rt *runtime) setupStore() error {
	dir := expandHome(rt.cfg.Storage.TranscriptDir)
	if dir == "" {
		return nil
	}
	store, err := session.NewFileStore(dir)
	if err != nil {
		return fmt.Errorf("creating transcript store: %w", err)
	}
	rt.store = store
	return nil
}

// setupMCP connects the verification stage's tool servers.
func (rt *runtime) setupMCP() {
	if len(rt.cfg.MCP.Servers) == 0 {
		return
	}

	rt.mcpManager = mcp.NewManager()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for name, serverCfg := range rt.cfg.MCP.Servers {
		err := rt.mcpManager.Connect(ctx, name, mcp.ServerConfig{
			Command: serverCfg.Command,
			Args:    serverCfg.Args,
			Env:     serverCfg.Env,
		})
		if err != nil {
			fmt.Fprintf(rt.stderr, "warning: failed to connect MCP server %q: %v\n", name, err)
			continue
		}
		fmt.Fprintf(rt.stderr, "✓ Connected MCP server: %s\n", name)
		if len(serverCfg.DeniedTools) > 0 {
			rt.mcpManager.SetDeniedTools(name, serverCfg.DeniedTools)
			fmt.Fprintf(rt.stderr, "  └─ Denied %d tools\n", len(serverCfg.DeniedTools))
		}
	}
	rt.addCloser(func() { rt.mcpManager.Close() })
}

// setupGateway creates the approval gateway over the coding tools.
func (rt *runtime) setupGateway() {
	registry := tools.NewCodingRegistry(tools.Options{
		Shell:          rt.cfg.Tools.Shell,
		DefaultTimeout: time.Duration(rt.cfg.Tools.DefaultTimeout) * time.Second,
	})
	gated := rt.cfg.GatedTools()
	if rt.cli.Yes {
		gated = []string{}
	}
	rt.gateway = approval.NewGateway(registry, approval.NewTerminal(rt.stdin, rt.stdout), gated)
}

// createLoop assembles the build and verification stages.
func (rt *runtime) createLoop() {
	var remote agents.RemoteTools
	if rt.mcpManager != nil {
		remote = agents.NewMCPTools(rt.mcpManager)
	}

	coder := agents.NewCoder(rt.buildLLM, rt.gateway, rt.cfg.Agents.BuildRetries)
	qa := agents.NewQA(rt.verifyLLM, remote, rt.cfg.Agents.VerifyRetries)

	rt.loop = orchestrator.New(coder, qa, rt.root)
	rt.loop.MaxCycles = rt.cfg.Agents.MaxCycles
	rt.loop.Grace = time.Duration(rt.cfg.Tools.TeardownGrace) * time.Second
	rt.loop.Guard = rt.guard
	rt.loop.Store = rt.store
	rt.loop.OnCycle = func(cycle int, v *agents.Verdict) {
		fmt.Fprintln(rt.stderr, renderCycle(cycle, rt.loop.MaxCycles, v))
	}
	rt.loop.OnTeardown = func(cycle, stopped int) {
		if stopped > 0 {
			fmt.Fprintln(rt.stderr, dimStyle.Render(fmt.Sprintf("   stopped %d background process(es)", stopped)))
		}
	}
}

// execute runs the loop and prints the verdict. Returns the exit code.
func (rt *runtime) execute() int {
	fmt.Fprintln(rt.stdout, rt.root)

	ctx, stop := rt.guard.WatchSignals(context.Background())
	defer stop()

	verdict, err := rt.loop.Run(ctx, rt.cli.Task)
	if err != nil {
		fmt.Fprintf(rt.stderr, "error: %v\n", err)
		return exitError
	}

	fmt.Fprintln(rt.stdout, "\n=== Agent Output ===")
	fmt.Fprintln(rt.stdout)
	if err := writeVerdict(rt.stdout, verdict, rt.cli.Format); err != nil {
		fmt.Fprintf(rt.stderr, "error: %v\n", err)
		return exitError
	}

	if rt.cli.Strict && !verdict.Passed() {
		return exitFailed
	}
	return exitOK
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(f func()) {
	rt.closers = append(rt.closers, f)
}

// cleanup runs all registered cleanup functions in reverse order.
func (rt *runtime) cleanup() {
	rt.guard.TeardownAll()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
