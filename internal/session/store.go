package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store records finished sessions.
type Store interface {
	Save(sess *Session) error
}

// JSONL record types.
const (
	RecordTypeHeader = "header" // session metadata (first line)
	RecordTypeEvent  = "event"  // one event
	RecordTypeFooter = "footer" // final state (last line)
)

// JSONLRecord is one line of a transcript file.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// Header fields
	ID        string    `json:"id,omitempty"`
	Task      string    `json:"task,omitempty"`
	Root      string    `json:"root,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	*Event `json:",omitempty"`

	// Footer fields
	Status    string     `json:"status,omitempty"`
	Result    string     `json:"result,omitempty"`
	Error     string     `json:"session_error,omitempty"` // distinct from Event.Error
	Cwd       string     `json:"cwd,omitempty"`
	Plan      []PlanItem `json:"plan,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// FileStore writes one JSONL transcript per session into a directory. Each
// cycle of a run gets its own file; the replay tool reads them back.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the transcript path for a session id.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Save writes the session's transcript, replacing any earlier one.
func (s *FileStore) Save(sess *Session) error {
	f, err := os.Create(s.Path(sess.ID))
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	header := JSONLRecord{
		RecordType: RecordTypeHeader,
		ID:         sess.ID,
		Task:       sess.Task,
		Root:       sess.Root,
		CreatedAt:  sess.CreatedAt,
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, evt := range sess.EventsSnapshot() {
		evt := evt
		if err := enc.Encode(JSONLRecord{RecordType: RecordTypeEvent, Event: &evt}); err != nil {
			return fmt.Errorf("failed to write event %d: %w", evt.SeqID, err)
		}
	}

	sess.mu.Lock()
	footer := JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     sess.Status,
		Result:     sess.Result,
		Error:      sess.Error,
		Cwd:        sess.cwd,
		Plan:       append([]PlanItem(nil), sess.plan...),
		UpdatedAt:  sess.UpdatedAt,
	}
	sess.mu.Unlock()
	if err := enc.Encode(footer); err != nil {
		return fmt.Errorf("failed to write footer: %w", err)
	}
	return nil
}
