// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "devloop.toml"

// DefaultModel is used when neither the file nor MODEL names a model.
const DefaultModel = "claude-sonnet-4-0"

// Config represents the devloop configuration.
type Config struct {
	LLM       LLMConfig          `toml:"llm"`      // Default LLM settings
	Profiles  map[string]Profile `toml:"profiles"` // Per-stage overrides: "build", "verify"
	Agents    AgentsConfig       `toml:"agents"`
	Approval  ApprovalConfig     `toml:"approval"`
	Tools     ToolsConfig        `toml:"tools"`
	MCP       MCPConfig          `toml:"mcp"` // MCP tool servers for verification
	Storage   StorageConfig      `toml:"storage"`
	Telemetry TelemetryConfig    `toml:"telemetry"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
	Thinking     string `toml:"thinking"`      // Thinking level: auto|off|low|medium|high
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts (default 5)
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "60s")
}

// Profile overrides the default LLM settings for one stage.
type Profile struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"`
	Thinking  string `toml:"thinking"`
}

// AgentsConfig contains retry budgets and the cycle limit.
type AgentsConfig struct {
	BuildRetries  int `toml:"build_retries"`  // Consecutive failures per tool in the build stage
	VerifyRetries int `toml:"verify_retries"` // Same for the verification stage
	MaxCycles     int `toml:"max_cycles"`     // Build and verify attempts
}

// ApprovalConfig selects the tools that need operator approval.
type ApprovalConfig struct {
	Require  []string `toml:"require"`  // Gated tools; empty uses the defaults
	Disabled bool     `toml:"disabled"` // Gate nothing
}

// ToolsConfig contains built-in tool settings.
type ToolsConfig struct {
	Shell          string `toml:"shell"`           // Interpreter for the bash tool
	DefaultTimeout int    `toml:"default_timeout"` // Foreground command timeout in seconds
	TeardownGrace  int    `toml:"teardown_grace"`  // Seconds between terminate and kill
}

// MCPConfig contains MCP tool server configuration.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `toml:"servers"`
}

// MCPServerConfig configures an MCP server connection.
type MCPServerConfig struct {
	Command     string            `toml:"command"`
	Args        []string          `toml:"args,omitempty"`
	Env         map[string]string `toml:"env,omitempty"`
	DeniedTools []string          `toml:"denied_tools,omitempty"` // Tools to exclude from LLM
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	TranscriptDir string `toml:"transcript_dir"` // Session transcripts; empty disables them
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc, http or noop
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:     DefaultModel,
			MaxTokens: 16384,
			Thinking:  "high",
		},
		Agents: AgentsConfig{
			BuildRetries:  30,
			VerifyRetries: 10,
			MaxCycles:     3,
		},
		Tools: ToolsConfig{
			Shell:          "bash",
			DefaultTimeout: 60,
			TeardownGrace:  5,
		},
		MCP: MCPConfig{
			Servers: map[string]MCPServerConfig{
				"playwright": {
					Command: "npx",
					Args:    []string{"@playwright/mcp@latest"},
				},
			},
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration with environment overrides applied.
func Default() *Config {
	cfg := New()
	cfg.applyEnv()
	return cfg
}

// LoadFile loads configuration from a TOML file. Servers declared in the file
// replace the default server set.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	var declared struct {
		MCP struct {
			Servers map[string]toml.Primitive `toml:"servers"`
		} `toml:"mcp"`
	}
	md, err := toml.DecodeFile(path, &declared)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if md.IsDefined("mcp", "servers") {
		cfg.MCP.Servers = nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Load reads path when set, otherwise devloop.toml from the working directory
// if present, otherwise the defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	candidate := filepath.Join(cwd, DefaultFile)
	if _, err := os.Stat(candidate); err != nil {
		return Default(), nil
	}
	return LoadFile(candidate)
}

// applyEnv applies environment overrides. MODEL replaces the model.
func (c *Config) applyEnv() {
	if model := os.Getenv("MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// GatedTools returns the tools needing approval. nil means the gateway
// defaults; an empty slice gates nothing.
func (c *Config) GatedTools() []string {
	if c.Approval.Disabled {
		return []string{}
	}
	if len(c.Approval.Require) == 0 {
		return nil
	}
	return c.Approval.Require
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (l LLMConfig) GetAPIKey() string {
	envVar := l.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(l.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// GetProfile returns the LLM config for a stage profile.
// Falls back to default LLM config if profile not found.
func (c *Config) GetProfile(name string) LLMConfig {
	profile, ok := c.Profiles[name]
	if name == "" || !ok {
		return c.LLM
	}
	result := c.LLM
	if profile.Model != "" {
		result.Model = profile.Model
		// A different model may imply a different provider.
		if profile.Provider == "" {
			result.Provider = ""
		}
	}
	if profile.Provider != "" {
		result.Provider = profile.Provider
	}
	if profile.APIKeyEnv != "" {
		result.APIKeyEnv = profile.APIKeyEnv
	}
	if profile.MaxTokens != 0 {
		result.MaxTokens = profile.MaxTokens
	}
	if profile.BaseURL != "" {
		result.BaseURL = profile.BaseURL
	}
	if profile.Thinking != "" {
		result.Thinking = profile.Thinking
	}
	return result
}
