// Package reporter provides StatusReporter implementations: an append-only
// progress log keyed by session id.
package reporter

import (
	"context"
	"sync"
	"time"

	"github.com/deepnoodle-ai/undertow"
)

var _ undertow.StatusReporter = &MemoryReporter{}

// MemoryReporter keeps session logs in memory.
type MemoryReporter struct {
	mu       sync.RWMutex
	sessions map[string][]*undertow.StatusUpdate
	now      func() time.Time
}

// NewMemoryReporter creates an empty MemoryReporter.
func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{
		sessions: map[string][]*undertow.StatusUpdate{},
		now:      time.Now,
	}
}

func (r *MemoryReporter) Append(ctx context.Context, sessionID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append(r.sessions[sessionID], &undertow.StatusUpdate{
		SessionID: sessionID,
		Message:   message,
		Timestamp: r.now(),
	})
	return nil
}

func (r *MemoryReporter) Latest(ctx context.Context, sessionID string) (*undertow.StatusUpdate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	updates := r.sessions[sessionID]
	if len(updates) == 0 {
		return nil, nil
	}
	update := *updates[len(updates)-1]
	return &update, nil
}

func (r *MemoryReporter) Since(ctx context.Context, sessionID string, t time.Time) ([]*undertow.StatusUpdate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var results []*undertow.StatusUpdate
	for _, update := range r.sessions[sessionID] {
		if update.Timestamp.After(t) {
			copied := *update
			results = append(results, &copied)
		}
	}
	return results, nil
}

func (r *MemoryReporter) Clear(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// Updates returns every update for the session, in order. Useful in tests.
func (r *MemoryReporter) Updates(sessionID string) []*undertow.StatusUpdate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	updates := make([]*undertow.StatusUpdate, 0, len(r.sessions[sessionID]))
	for _, update := range r.sessions[sessionID] {
		copied := *update
		updates = append(updates, &copied)
	}
	return updates
}
