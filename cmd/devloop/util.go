package main

import (
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/devloop/internal/config"
)

// retryConfig builds the provider retry policy for one stage profile. An
// unparseable retry_backoff leaves the provider's default backoff.
func retryConfig(c config.LLMConfig) llm.RetryConfig {
	cfg := llm.RetryConfig{
		MaxRetries: c.MaxRetries,
	}
	if c.RetryBackoff != "" {
		if d, err := time.ParseDuration(c.RetryBackoff); err == nil {
			cfg.MaxBackoff = d
		}
	}
	return cfg
}
