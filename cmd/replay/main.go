// Package main is the entry point for the devloop-replay CLI.
// It renders the per-cycle transcripts a devloop run leaves behind.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/vinayprograms/devloop/internal/replay"
)

// Build-time variables
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// CLI is the devloop-replay command line.
type CLI struct {
	Paths   []string `arg:"" name:"path" help:"Transcript files or directories of transcripts (*.jsonl)."`
	Verbose int      `short:"v" type:"counter" help:"Show stage output and tool arguments (-vv adds tool results)."`
	NoPager bool     `name:"no-pager" help:"Disable interactive pager (for piping)."`
	Follow  bool     `short:"f" help:"Watch a transcript directory and reload as cycles finish."`
	MaxSize int      `name:"max-content" default:"51200" help:"Truncate event content beyond this many bytes (0 = unlimited)."`

	Version kong.VersionFlag `help:"Show version."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("devloop-replay"),
		kong.Description("Review the transcripts of devloop build/verify cycles."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("devloop-replay version %s (commit: %s, built: %s)", version, commit, buildTime)},
	)
	os.Exit(run(&cli, os.Stdout, os.Stderr))
}

func run(cli *CLI, stdout, stderr io.Writer) int {
	r := replay.New(stdout, cli.Verbose, replay.WithMaxContentSize(cli.MaxSize))

	if cli.Follow {
		if len(cli.Paths) != 1 {
			fmt.Fprintln(stderr, "error: --follow only works with a single directory")
			return 1
		}
		info, err := os.Stat(cli.Paths[0])
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		if !info.IsDir() {
			fmt.Fprintln(stderr, "error: --follow requires a directory, not a file")
			return 1
		}
		if err := r.ReplayDirLive(cli.Paths[0]); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	files, err := expandPaths(cli.Paths)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintln(stderr, "error: no transcripts found")
		return 1
	}

	if f, ok := stdout.(*os.File); ok && !cli.NoPager && isTerminal(f) {
		err = r.ReplayFilesInteractive(files)
	} else {
		err = r.ReplayFiles(files)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// expandPaths takes file paths and directories and returns all transcript files.
func expandPaths(paths []string) ([]string, error) {
	var files []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", p, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
				files = append(files, filepath.Join(p, entry.Name()))
			}
		}
	}

	return files, nil
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
