package reporter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deepnoodle-ai/undertow"
)

var _ undertow.StatusReporter = &FileReporter{}

// FileReporter appends session updates to one JSON-lines file per session
// under a base directory.
type FileReporter struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewFileReporter creates a FileReporter rooted at the given directory.
func NewFileReporter(dir string) *FileReporter {
	return &FileReporter{dir: dir, now: time.Now}
}

func (r *FileReporter) path(sessionID string) string {
	return filepath.Join(r.dir, sessionID+".jsonl")
}

func (r *FileReporter) Append(ctx context.Context, sessionID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("error creating reporter directory: %w", err)
	}
	update := &undertow.StatusUpdate{
		SessionID: sessionID,
		Message:   message,
		Timestamp: r.now(),
	}
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("error serializing status update: %w", err)
	}
	f, err := os.OpenFile(r.path(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error opening session log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("error appending status update: %w", err)
	}
	return nil
}

func (r *FileReporter) read(sessionID string) ([]*undertow.StatusUpdate, error) {
	f, err := os.Open(r.path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error opening session log: %w", err)
	}
	defer f.Close()

	var updates []*undertow.StatusUpdate
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var update undertow.StatusUpdate
		if err := json.Unmarshal(line, &update); err != nil {
			return nil, fmt.Errorf("error parsing session log: %w", err)
		}
		updates = append(updates, &update)
	}
	return updates, scanner.Err()
}

func (r *FileReporter) Latest(ctx context.Context, sessionID string) (*undertow.StatusUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	updates, err := r.read(sessionID)
	if err != nil || len(updates) == 0 {
		return nil, err
	}
	return updates[len(updates)-1], nil
}

func (r *FileReporter) Since(ctx context.Context, sessionID string, t time.Time) ([]*undertow.StatusUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	updates, err := r.read(sessionID)
	if err != nil {
		return nil, err
	}
	var results []*undertow.StatusUpdate
	for _, update := range updates {
		if update.Timestamp.After(t) {
			results = append(results, update)
		}
	}
	return results, nil
}

func (r *FileReporter) Clear(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := os.Remove(r.path(sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
