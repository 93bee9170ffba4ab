// Package mtypes contains shared types and interfaces for the playback core.
// This package is used to break import cycles between queue, player, voice
// and service packages.
package mtypes

import (
	"fmt"
	"strings"
	"time"
)

// Track is resolved media metadata. It is immutable once produced by an
// Extractor; reconnection re-fetches a new Track instead of mutating one.
type Track struct {
	Title        string
	CanonicalURL string
	PlayableURL  string
	Duration     time.Duration
	ThumbnailURL string
	Uploader     string
	ExtractedAt  time.Time
}

// NewTrack builds a validated Track.
func NewTrack(title, canonicalURL, playableURL string, duration time.Duration) (Track, error) {
	t := Track{
		Title:        title,
		CanonicalURL: canonicalURL,
		PlayableURL:  playableURL,
		Duration:     duration,
		Uploader:     "Unknown",
		ExtractedAt:  time.Now(),
	}
	if err := t.Validate(); err != nil {
		return Track{}, err
	}
	return t, nil
}

// Validate checks the required fields of a track.
func (t Track) Validate() error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("%w: missing title", ErrInvalidTrack)
	case t.PlayableURL == "":
		return fmt.Errorf("%w: missing playable url for %q", ErrInvalidTrack, t.Title)
	case t.Duration < 0:
		return fmt.Errorf("%w: negative duration for %q", ErrInvalidTrack, t.Title)
	}
	return nil
}

// ResumeQuery returns the query used to re-resolve this track.
func (t Track) ResumeQuery() string {
	if t.CanonicalURL != "" {
		return t.CanonicalURL
	}
	return t.Title
}

// Placeholder is a catalog entry that has not been resolved to a Track yet.
type Placeholder struct {
	Title     string
	Query     string
	Duration  time.Duration
	SourceURL string
}

// QueueEntry is one slot in a guild queue. Exactly one of Track or
// Placeholder is set.
type QueueEntry struct {
	Track       *Track
	Placeholder *Placeholder
	Requester   string
	EnqueuedAt  time.Time
}

// NewTrackEntry creates a queue entry holding a resolved track.
func NewTrackEntry(t Track, requester string) (QueueEntry, error) {
	if err := t.Validate(); err != nil {
		return QueueEntry{}, err
	}
	return QueueEntry{Track: &t, Requester: requester, EnqueuedAt: time.Now()}, nil
}

// NewPlaceholderEntry creates a queue entry for a deferred search query.
func NewPlaceholderEntry(p Placeholder, requester string) (QueueEntry, error) {
	if strings.TrimSpace(p.Query) == "" {
		return QueueEntry{}, fmt.Errorf("%w: placeholder without query", ErrInvalidTrack)
	}
	return QueueEntry{Placeholder: &p, Requester: requester, EnqueuedAt: time.Now()}, nil
}

// Resolved reports whether the entry holds a playable track.
func (e QueueEntry) Resolved() bool {
	return e.Track != nil
}

// Title returns the display title of the entry.
func (e QueueEntry) Title() string {
	if e.Track != nil {
		return e.Track.Title
	}
	if e.Placeholder != nil {
		return e.Placeholder.Title
	}
	return ""
}

// Duration returns the known duration of the entry.
func (e QueueEntry) Duration() time.Duration {
	if e.Track != nil {
		return e.Track.Duration
	}
	if e.Placeholder != nil {
		return e.Placeholder.Duration
	}
	return 0
}

// CatalogItem is one element of a resolved catalog collection.
type CatalogItem struct {
	Title     string
	Query     string
	Duration  time.Duration
	SourceURL string
}

// Placeholder converts the item into a deferred queue placeholder.
func (c CatalogItem) Placeholder() Placeholder {
	return Placeholder{
		Title:     c.Title,
		Query:     c.Query,
		Duration:  c.Duration,
		SourceURL: c.SourceURL,
	}
}

// HistoryEntry records a finished or interrupted track.
type HistoryEntry struct {
	Track     Track
	Requester string
	PlayedAt  time.Time
}
