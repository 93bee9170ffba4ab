package guild

import (
	"sync"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// DefaultHistorySize is the number of recent tracks kept per guild.
const DefaultHistorySize = 5

// History is a bounded newest-first list of recently played tracks.
type History struct {
	mu      sync.RWMutex
	size    int
	entries []mtypes.HistoryEntry
}

// NewHistory creates a history holding at most size entries.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Push records e as the newest entry. Pushing the same play twice in a row
// is a no-op.
func (h *History) Push(e mtypes.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) > 0 {
		head := h.entries[0]
		if head.PlayedAt.Equal(e.PlayedAt) && head.Track.Title == e.Track.Title {
			return
		}
	}

	h.entries = append([]mtypes.HistoryEntry{e}, h.entries...)
	if len(h.entries) > h.size {
		h.entries = h.entries[:h.size]
	}
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (h *History) List(limit int) []mtypes.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]mtypes.HistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
