package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Task    string           `required:"" help:"Description of what to build"`
	Config  string           `help:"Config file path (default: ./devloop.toml if present)"`
	Format  string           `default:"text" enum:"text,json,yaml" help:"Verdict output format (text, json, yaml)"`
	Yes     bool             `short:"y" help:"Run every tool without asking for approval"`
	Strict  bool             `help:"Exit with status 2 when verification still fails after all cycles"`
	Version kong.VersionFlag `help:"Show version information"`
}
