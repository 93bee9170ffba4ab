package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// ErrConnectFailed is returned by a scripted connect failure.
var ErrConnectFailed = errors.New("simulated connect failure")

// Transport hands out simulated handles.
type Transport struct {
	mu        sync.Mutex
	members   int
	failNext  int
	connects  int
	handles   []*Handle
	durations map[string]time.Duration
	onConnect func(*Handle)
}

// NewTransport creates a transport whose channels contain members human
// occupants.
func NewTransport(members int) *Transport {
	return &Transport{members: members, durations: make(map[string]time.Duration)}
}

// FailNext makes the next n connects fail.
func (t *Transport) FailNext(n int) {
	t.mu.Lock()
	t.failNext = n
	t.mu.Unlock()
}

// OnConnect registers a hook run for every new handle.
func (t *Transport) OnConnect(fn func(*Handle)) {
	t.mu.Lock()
	t.onConnect = fn
	t.mu.Unlock()
}

// Register sets how long source plays before finishing on its own.
func (t *Transport) Register(source string, d time.Duration) {
	t.mu.Lock()
	t.durations[source] = d
	t.mu.Unlock()
}

// Connect opens a simulated link to channel.
func (t *Transport) Connect(ctx context.Context, channel string) (mtypes.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.connects++
	if t.failNext > 0 {
		t.failNext--
		t.mu.Unlock()
		return nil, ErrConnectFailed
	}
	h := newHandle(channel, t.members)
	t.handles = append(t.handles, h)
	hook := t.onConnect
	t.mu.Unlock()

	if hook != nil {
		hook(h)
	}
	return &timedHandle{Handle: h, t: t}, nil
}

// Connects returns how many connects were attempted.
func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Last returns the most recent handle, or nil.
func (t *Transport) Last() *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.handles) == 0 {
		return nil
	}
	return t.handles[len(t.handles)-1]
}

func (t *Transport) duration(source string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durations[source]
}

// timedHandle applies registered durations to Play.
type timedHandle struct {
	*Handle
	t *Transport
}

func (h *timedHandle) Play(source string, onFinish func(error)) error {
	return h.Handle.play(source, h.t.duration(source), onFinish)
}
