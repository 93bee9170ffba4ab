package queue

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/sahilm/fuzzy"
)

const (
	// DefaultMaxSize is the per-guild queue capacity.
	DefaultMaxSize = 500

	// DefaultPageSize is the number of entries per display page.
	DefaultPageSize = 10
)

// Queue is an ordered, bounded list of entries for one guild. All indices
// are 0-based.
type Queue struct {
	mu      sync.RWMutex
	entries []mtypes.QueueEntry
	maxSize int
	stats   Stats
}

// Stats tracks queue activity
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	Rejected      int64
	PeakSize      int
}

// New creates a queue bounded at maxSize entries. A non-positive size uses
// DefaultMaxSize.
func New(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Queue{maxSize: maxSize}
}

// MaxSize returns the queue capacity.
func (q *Queue) MaxSize() int {
	return q.maxSize
}

// Enqueue appends entry. It returns false without mutating the queue when
// the queue is full.
func (q *Queue) Enqueue(entry mtypes.QueueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.stats.Rejected++
		return false
	}

	q.entries = append(q.entries, entry)
	q.stats.TotalEnqueued++
	if len(q.entries) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.entries)
	}
	return true
}

// EnqueueBatch appends entries until the queue is full and returns how many
// were added.
func (q *Queue) EnqueueBatch(entries []mtypes.QueueEntry) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	room := q.maxSize - len(q.entries)
	if room > len(entries) {
		room = len(entries)
	}
	if room <= 0 {
		q.stats.Rejected += int64(len(entries))
		return 0
	}

	q.entries = append(q.entries, entries[:room]...)
	q.stats.TotalEnqueued += int64(room)
	q.stats.Rejected += int64(len(entries) - room)
	if len(q.entries) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.entries)
	}
	return room
}

// DequeueFront removes and returns the first entry.
func (q *Queue) DequeueFront() (mtypes.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return mtypes.QueueEntry{}, false
	}

	e := q.entries[0]
	q.entries[0] = mtypes.QueueEntry{}
	q.entries = q.entries[1:]
	q.stats.TotalDequeued++
	return e, true
}

// DropFront removes up to n entries from the front and returns how many
// were removed.
func (q *Queue) DropFront(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.entries) {
		n = len(q.entries)
	}
	if n <= 0 {
		return 0
	}
	q.entries = append([]mtypes.QueueEntry(nil), q.entries[n:]...)
	q.stats.TotalDequeued += int64(n)
	return n
}

// InsertAt places entry at index, shifting later entries back. It returns
// false when the queue is full or index is outside 0..Len.
func (q *Queue) InsertAt(index int, entry mtypes.QueueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize || index < 0 || index > len(q.entries) {
		return false
	}
	q.entries = append(q.entries, mtypes.QueueEntry{})
	copy(q.entries[index+1:], q.entries[index:])
	q.entries[index] = entry
	return true
}

// At returns the entry at index.
func (q *Queue) At(index int) (mtypes.QueueEntry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if index < 0 || index >= len(q.entries) {
		return mtypes.QueueEntry{}, false
	}
	return q.entries[index], true
}

// RemoveAt removes the entry at index. It returns false without mutating
// when index is out of bounds.
func (q *Queue) RemoveAt(index int) (mtypes.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.entries) {
		return mtypes.QueueEntry{}, false
	}

	e := q.entries[index]
	q.entries = append(q.entries[:index], q.entries[index+1:]...)
	return e, true
}

// MoveTo extracts the entry at from and reinserts it at to, shifting the
// entries in between. It returns false when either index is out of bounds.
func (q *Queue) MoveTo(from, to int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}

	e := q.entries[from]
	if from < to {
		copy(q.entries[from:to], q.entries[from+1:to+1])
	} else {
		copy(q.entries[to+1:from+1], q.entries[to:from])
	}
	q.entries[to] = e
	return true
}

// UpdateEntry replaces the entry at index with a resolved track, keeping
// its requester.
func (q *Queue) UpdateEntry(index int, track mtypes.Track) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.entries) {
		return false
	}
	q.entries[index].Track = &track
	q.entries[index].Placeholder = nil
	return true
}

// Shuffle permutes the queue uniformly at random.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	rand.Shuffle(len(q.entries), func(i, j int) {
		q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	})
}

// Clear removes all entries and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	q.entries = nil
	return n
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// IsEmpty reports whether the queue has no entries.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// TotalDuration sums the known durations of all entries.
func (q *Queue) TotalDuration() time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var total time.Duration
	for _, e := range q.entries {
		total += e.Duration()
	}
	return total
}

// Snapshot returns a copy of the entries in order.
func (q *Queue) Snapshot() []mtypes.QueueEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]mtypes.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Find fuzzy-matches text against entry titles and returns matching indices,
// best match first.
func (q *Queue) Find(text string) []int {
	snap := q.Snapshot()
	titles := make([]string, len(snap))
	for i, e := range snap {
		titles[i] = e.Title()
	}

	matches := fuzzy.Find(text, titles)
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Index
	}
	return out
}

// GetStats returns queue statistics.
func (q *Queue) GetStats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stats
}
