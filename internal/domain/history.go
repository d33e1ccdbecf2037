package domain

import "sync"

// HistoryLog records submitted commands in submission order, independent of
// execution outcome. Append-only: entries are never reordered, deduplicated
// or edited in place. Grows until the caller clears it.
type HistoryLog struct {
	mu      sync.Mutex
	entries []CommandRequest
}

// NewHistoryLog builds an empty log.
func NewHistoryLog() *HistoryLog {
	return &HistoryLog{}
}

// Append records one submission.
func (l *HistoryLog) Append(req CommandRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, req)
}

// All returns a snapshot copy, not a live view.
func (l *HistoryLog) All() []CommandRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CommandRequest, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded submissions.
func (l *HistoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops all entries.
func (l *HistoryLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
