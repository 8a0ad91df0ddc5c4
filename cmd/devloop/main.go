// Package main is the entry point for the devloop CLI.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/vinayprograms/agentkit/credentials"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// globalCreds holds loaded credentials (file > env fallback happens in apiKey)
var globalCreds *credentials.Credentials

func init() {
	// Priority: credentials.toml > env vars
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		globalCreds = creds
	}

	// Load .env for MODEL and provider keys
	_ = godotenv.Load()
}

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitFailed = 2
)

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("devloop"),
		kong.Description("Build a web application from a task description, then verify it in a browser."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("devloop version %s (commit: %s, built: %s)", version, commit, buildTime)},
	)

	os.Exit(run(&cli))
}

// run executes one task in the current directory and returns the exit code.
func run(cli *CLI) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	rt, err := newRuntime(cli, cwd, globalCreds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	defer rt.cleanup()

	if err := rt.setup(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	return rt.execute()
}
