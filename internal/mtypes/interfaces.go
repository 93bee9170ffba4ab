package mtypes

import (
	"context"
	"time"
)

// Extractor resolves a query or URL into playable media metadata.
type Extractor interface {
	Extract(ctx context.Context, query string) (Track, error)
}

// Catalog resolves third-party catalog URLs into ordered items.
type Catalog interface {
	ResolveCollection(ctx context.Context, url string) ([]CatalogItem, error)
}

// Transport opens audio links to a channel.
type Transport interface {
	Connect(ctx context.Context, channel string) (Handle, error)
}

// Handle is a live audio link to a guild channel.
//
// Play invokes onFinish exactly once when the source ends, possibly from a
// foreign goroutine. A nil error means the source ended normally.
type Handle interface {
	Channel() string
	IsConnected() bool
	IsPlaying() bool
	IsPaused() bool
	Play(source string, onFinish func(error)) error
	Pause() error
	Resume() error
	Stop() error
	Disconnect(ctx context.Context) error
	// HumanMembers returns the number of non-automated occupants.
	HumanMembers() int
}

// Notifier delivers messages to a guild's text channel. Implementations
// are fire-and-forget from the caller's point of view.
type Notifier interface {
	Send(ctx context.Context, channel, message string) error
}

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d unless ctx is cancelled first.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
