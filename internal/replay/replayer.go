package replay

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/vinayprograms/devloop/internal/session"
)

// Replayer formats transcripts as a timeline.
type Replayer struct {
	output         io.Writer
	verbosity      int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxContentSize int // Maximum size for Content fields (0 = unlimited)
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithMaxContentSize limits Content field size to avoid OOM on large transcripts.
func WithMaxContentSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a new Replayer.
func New(output io.Writer, verbosity int, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024, // Default: 50KB per content field
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFiles loads and replays transcripts, oldest first.
func (r *Replayer) ReplayFiles(paths []string) error {
	transcripts, err := LoadAll(paths, r.maxContentSize)
	if err != nil {
		return err
	}
	return r.ReplayAll(transcripts)
}

// ReplayAll writes every transcript as one cycle of a run.
func (r *Replayer) ReplayAll(transcripts []*Transcript) error {
	for i, t := range transcripts {
		if len(transcripts) > 1 {
			fmt.Fprintf(r.output, "\n%s\n", titleStyle.Render(fmt.Sprintf("CYCLE %d/%d", i+1, len(transcripts))))
		}
		r.Replay(t)
	}
	if len(transcripts) > 1 {
		r.printRunSummary(transcripts)
	}
	return nil
}

// Replay writes one transcript.
func (r *Replayer) Replay(t *Transcript) {
	r.printHeader(t)
	r.printTimeline(t)
	r.printSummary(t)
}

// ReplayFilesInteractive replays the transcripts in the pager.
func (r *Replayer) ReplayFilesInteractive(paths []string) error {
	content, err := r.render(func() ([]*Transcript, error) { return LoadAll(paths, r.maxContentSize) })
	if err != nil {
		return err
	}
	var title string
	if len(paths) == 1 {
		title = fmt.Sprintf("Transcript: %s", filepath.Base(paths[0]))
	} else {
		title = fmt.Sprintf("Transcripts: %d cycles", len(paths))
	}
	return NewPager(title).Run(content)
}

// ReplayDirLive shows every transcript in dir and refreshes as cycles of a
// running loop save theirs.
func (r *Replayer) ReplayDirLive(dir string) error {
	renderFunc := func() (string, error) {
		return r.render(func() ([]*Transcript, error) { return LoadDir(dir, r.maxContentSize) })
	}
	title := fmt.Sprintf("Transcripts: %s (LIVE)", dir)
	return NewPager(title).RunLive(dir, renderFunc)
}

// render replays into a string.
func (r *Replayer) render(load func() ([]*Transcript, error)) (string, error) {
	transcripts, err := load()
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	oldOutput := r.output
	r.output = &buf
	err = r.ReplayAll(transcripts)
	r.output = oldOutput
	return buf.String(), err
}

func (r *Replayer) printHeader(t *Transcript) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(t.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Task:    "), valueStyle.Render(truncateHint(t.Task, 100)))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Root:    "), valueStyle.Render(t.Root))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:  "), statusStyle(t.Status).Render(t.Status))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created: "), valueStyle.Render(t.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(t *Transcript) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(t.Events))))
	fmt.Fprintln(r.output, divider)

	for i := range t.Events {
		r.formatEvent(i+1, &t.Events[i])
	}
}

func (r *Replayer) printSummary(t *Transcript) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	switch t.Status {
	case session.StatusComplete:
		fmt.Fprintf(r.output, "%s %s\n", successStyle.Render("COMPLETED:"), resultStyle(t.Result).Render(t.Result))
	case session.StatusFailed:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(t.Error))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}

	if len(t.Plan) > 0 && r.verbosity >= 1 {
		fmt.Fprintf(r.output, "%s\n", labelStyle.Render("Final plan:"))
		for _, item := range t.Plan {
			fmt.Fprintf(r.output, "  %s %s\n", planMarker(string(item.Status)), valueStyle.Render(item.Title))
		}
	}

	PrintStats(r.output, ComputeStats(t))
}

// printRunSummary closes a multi-cycle replay with the per-cycle outcomes.
func (r *Replayer) printRunSummary(transcripts []*Transcript) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, titleStyle.Render("RUN"))
	fmt.Fprintln(r.output, divider)
	for i, t := range transcripts {
		outcome := t.Result
		if t.Status == session.StatusFailed {
			outcome = "error"
		}
		fmt.Fprintf(r.output, "  %s %s\n",
			labelStyle.Render(fmt.Sprintf("cycle %d:", i+1)),
			resultStyle(outcome).Render(outcome))
	}
}
