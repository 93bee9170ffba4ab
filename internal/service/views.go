package service

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/tunebox/internal/render"
)

// Queue renders a 1-based page of the queue.
func (s *Service) Queue(req Request, page int) Result {
	const action = "queue"
	g, _ := s.begin(action, req)

	if g.Processing() {
		return stillProcessing(action)
	}
	if g.Queue.IsEmpty() {
		return success(action, "The queue is empty!", false)
	}
	p := g.Queue.Page(page, s.pageSize)
	return success(action, render.QueuePage(p, g.Queue.TotalDuration()), false)
}

// Clear empties the queue without touching the current track.
func (s *Service) Clear(req Request) Result {
	const action = "clear"
	g, logger := s.begin(action, req)

	if g.Processing() {
		return stillProcessing(action)
	}

	g.Ops.Lock()
	n := g.Queue.Clear()
	g.Ops.Unlock()

	if n == 0 {
		return failure(action, "The queue is already empty!", nil)
	}
	s.observer.QueueLength(g.ID, 0)
	logger.Info("Queue cleared", "removed", n)
	return success(action, fmt.Sprintf("Cleared %d songs from the queue", n), true)
}

// Remove deletes the entry at a 1-based position.
func (s *Service) Remove(req Request, position int) Result {
	const action = "remove"
	g, _ := s.begin(action, req)

	if g.Processing() {
		return stillProcessing(action)
	}

	g.Ops.Lock()
	entry, ok := g.Queue.RemoveAt(position - 1)
	n := g.Queue.Len()
	g.Ops.Unlock()

	if !ok {
		return invalidPosition(action, n)
	}
	s.observer.QueueLength(g.ID, n)
	return success(action, fmt.Sprintf("Removed %s from position %d", entry.Title(), position), true)
}

// Move moves the entry at 1-based from to 1-based to.
func (s *Service) Move(req Request, from, to int) Result {
	const action = "move"
	g, _ := s.begin(action, req)

	if g.Processing() {
		return stillProcessing(action)
	}

	g.Ops.Lock()
	entry, _ := g.Queue.At(from - 1)
	ok := g.Queue.MoveTo(from-1, to-1)
	n := g.Queue.Len()
	g.Ops.Unlock()

	if !ok {
		r := invalidPosition(action, n)
		if n > 0 {
			r.Detail = fmt.Sprintf("Invalid positions. Please use numbers between 1 and %d", n)
		}
		return r
	}
	return success(action, fmt.Sprintf("Moved %s from position %d to %d", entry.Title(), from, to), from != to)
}

// Shuffle randomizes the queue order.
func (s *Service) Shuffle(req Request) Result {
	const action = "shuffle"
	g, _ := s.begin(action, req)

	if g.Processing() {
		return stillProcessing(action)
	}

	g.Ops.Lock()
	n := g.Queue.Len()
	if n > 0 {
		g.Queue.Shuffle()
	}
	g.Ops.Unlock()

	if n == 0 {
		return failure(action, "The queue is empty!", nil)
	}
	return success(action, fmt.Sprintf("Shuffled %d songs", n), n > 1)
}

// Find lists queue entries whose titles fuzzy-match text.
func (s *Service) Find(req Request, text string) Result {
	const action = "find"
	g, _ := s.begin(action, req)

	matches := g.Queue.Find(text)
	if len(matches) == 0 {
		return failure(action, fmt.Sprintf("No songs in the queue match %q", text), nil)
	}

	var b strings.Builder
	for i, idx := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		entry, ok := g.Queue.At(idx)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "`%d.` %s", idx+1, render.Fit(entry.Title(), render.TitleWidth))
	}
	return success(action, b.String(), false)
}

// NowPlaying renders the current track and its progress.
func (s *Service) NowPlaying(req Request) Result {
	const action = "np"
	g, _ := s.begin(action, req)

	if g.Processing() {
		return stillProcessing(action)
	}
	sess, ok := g.Player.Current()
	if !ok {
		return failure(action, "No song is currently playing.", nil)
	}
	p, ok := g.Player.Progress()
	if !ok {
		return failure(action, "No song is currently playing.", nil)
	}
	return success(action, render.NowPlaying(sess, p), false)
}

// History renders up to limit recently played tracks. A non-positive
// limit uses DefaultHistoryLimit.
func (s *Service) History(req Request, limit int) Result {
	const action = "history"
	g, _ := s.begin(action, req)

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return success(action, render.History(g.History.List(limit), s.clock.Now()), false)
}

// CacheStats renders statistics for every cache.
func (s *Service) CacheStats() Result {
	const action = "stats"
	if s.caches == nil {
		return failure(action, "Cache statistics are unavailable.", nil)
	}
	return success(action, render.CacheStats(s.caches.Stats(), s.clock.Now()), false)
}
