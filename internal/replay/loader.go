package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vinayprograms/devloop/internal/session"
)

// Transcript is a session as read back from its JSONL file.
type Transcript struct {
	Path string

	ID        string
	Task      string
	Root      string
	CreatedAt time.Time

	Events []session.Event

	Status    string
	Result    string
	Error     string
	Cwd       string
	Plan      []session.PlanItem
	UpdatedAt time.Time
}

// Load reads one transcript. Event content longer than maxContentSize is
// truncated; zero means unlimited.
func Load(path string, maxContentSize int) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	defer f.Close()

	t := &Transcript{Path: path}
	reader := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("error reading JSONL: %w", err)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if perr := t.parseLine(trimmed, maxContentSize); perr != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, perr)
			}
		}
		if err == io.EOF {
			break
		}
	}

	if t.ID == "" {
		return nil, fmt.Errorf("%s: missing transcript header", path)
	}
	return t, nil
}

// parseLine applies one JSONL record to the transcript.
func (t *Transcript) parseLine(line []byte, maxContentSize int) error {
	var record session.JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse JSONL line: %w", err)
	}

	switch record.RecordType {
	case session.RecordTypeHeader:
		t.ID = record.ID
		t.Task = record.Task
		t.Root = record.Root
		t.CreatedAt = record.CreatedAt

	case session.RecordTypeEvent:
		if record.Event != nil {
			evt := *record.Event
			if maxContentSize > 0 && len(evt.Content) > maxContentSize {
				evt.Content = evt.Content[:maxContentSize] +
					fmt.Sprintf("\n... [truncated, %d bytes total]", len(record.Event.Content))
			}
			t.Events = append(t.Events, evt)
		}

	case session.RecordTypeFooter:
		t.Status = record.Status
		t.Result = record.Result
		t.Error = record.Error
		t.Cwd = record.Cwd
		t.Plan = record.Plan
		t.UpdatedAt = record.UpdatedAt
	}
	return nil
}

// LoadDir reads every transcript in dir, oldest first.
func LoadDir(dir string, maxContentSize int) ([]*Transcript, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	return LoadAll(paths, maxContentSize)
}

// LoadAll reads the given transcripts, oldest first.
func LoadAll(paths []string, maxContentSize int) ([]*Transcript, error) {
	transcripts := make([]*Transcript, 0, len(paths))
	for _, p := range paths {
		t, err := Load(p, maxContentSize)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}
	sort.SliceStable(transcripts, func(i, j int) bool {
		return transcripts[i].CreatedAt.Before(transcripts[j].CreatedAt)
	})
	return transcripts, nil
}
