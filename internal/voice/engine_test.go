package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
	"github.com/dgnsrekt/tunebox/internal/sim"
)

const videoPrefix = "https://video.example/"

// fakeExtractor returns a track titled after the query. Canonical URLs map
// back to the same title so a resume resolves the same song.
type fakeExtractor struct {
	mu      sync.Mutex
	queries []string
	fail    map[string]bool
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, query string) (mtypes.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.queries = append(f.queries, query)
	title := strings.TrimPrefix(query, videoPrefix)
	if f.fail[title] {
		return mtypes.Track{}, errors.New("video unavailable")
	}
	return mtypes.NewTrack(title, videoPrefix+title, fmt.Sprintf("https://cdn.example/%s?n=%d", title, f.calls), 3*time.Minute)
}

func (f *fakeExtractor) setFailing(titles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = make(map[string]bool)
	for _, t := range titles {
		f.fail[t] = true
	}
}

func (f *fakeExtractor) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

// recordingSleeper returns immediately and records requested waits.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.waits))
	copy(out, s.waits)
	return out
}

// blockingSleeper blocks until the context is cancelled.
type blockingSleeper struct {
	entered chan struct{}
}

func (s *blockingSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

type harness struct {
	engine    *Engine
	transport *sim.Transport
	notifier  *sim.Notifier
	extractor *fakeExtractor
	sleeper   *recordingSleeper
}

func newHarness(t *testing.T, sleeper mtypes.Sleeper, mutate func(*Config)) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.PacingInterval = 0
	cfg.InactivityInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		transport: sim.NewTransport(1),
		notifier:  sim.NewNotifier(nil),
		extractor: &fakeExtractor{},
		sleeper:   &recordingSleeper{},
	}
	if sleeper == nil {
		sleeper = h.sleeper
	}

	e, err := New(cfg, Deps{
		Registry:  guild.NewRegistry(guild.DefaultConfig(), nil),
		Transport: h.transport,
		Resolver:  player.NewResolver(nil, h.extractor, nil),
		Notifier:  h.notifier,
		Sleeper:   sleeper,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	})

	h.engine = e
	return h
}

// connect joins a guild to its voice channel.
func (h *harness) connect(t *testing.T, id string) *guild.Guild {
	t.Helper()
	g := h.engine.Registry().GetOrCreate(id)
	if _, err := h.engine.EnsureConnected(context.Background(), g, "voice-"+id, "text-"+id); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	return g
}

func (h *harness) play(t *testing.T, g *guild.Guild, title string) PlayOutcome {
	t.Helper()
	track, err := h.engine.resolver.Resolve(context.Background(), title)
	if err != nil {
		t.Fatalf("Resolve %q failed: %v", title, err)
	}
	out, err := h.engine.StartOrEnqueue(context.Background(), g, track, "alice")
	if err != nil {
		t.Fatalf("StartOrEnqueue %q failed: %v", title, err)
	}
	return out
}

func (h *harness) sawMessage(substr string) bool {
	for _, m := range h.notifier.Messages() {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	if done == nil {
		t.Fatal("Expected a reconnection driver to start")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for reconnection driver")
	}
}

func currentTitle(g *guild.Guild) string {
	sess, ok := g.Player.Current()
	if !ok {
		return ""
	}
	return sess.Track.Title
}

func queueTitles(g *guild.Guild) []string {
	var out []string
	for _, e := range g.Queue.Snapshot() {
		out = append(out, e.Title())
	}
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(DefaultConfig(), Deps{}); err == nil {
		t.Error("Expected error for missing collaborators")
	}

	cfg := DefaultConfig()
	cfg.MaxReconnectAttempts = 0
	deps := Deps{
		Registry:  guild.NewRegistry(guild.DefaultConfig(), nil),
		Transport: sim.NewTransport(1),
		Resolver:  player.NewResolver(nil, &fakeExtractor{}, nil),
	}
	if _, err := New(cfg, deps); err == nil {
		t.Error("Expected error for zero reconnect attempts")
	}
}

func TestEngine_Backoff(t *testing.T) {
	h := newHarness(t, nil, nil)
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	for i, w := range want {
		if got := h.engine.Backoff(i); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestEngine_StartOrEnqueue(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")

	first := h.play(t, g, "A")
	if first.Branch != player.BranchPlay {
		t.Errorf("Expected first track to play, got %v", first.Branch)
	}
	if currentTitle(g) != "A" {
		t.Errorf("Expected session for A, got %q", currentTitle(g))
	}
	if g.Queue.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", g.Queue.Len())
	}

	second := h.play(t, g, "B")
	if second.Branch != player.BranchEnqueue {
		t.Errorf("Expected second track to enqueue, got %v", second.Branch)
	}
	if second.Position != 1 {
		t.Errorf("Expected position 1, got %d", second.Position)
	}
	if currentTitle(g) != "A" {
		t.Errorf("Expected A to keep playing, got %q", currentTitle(g))
	}
}

func TestEngine_StartOrEnqueueNotConnected(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.engine.Registry().GetOrCreate("g1")

	track, _ := mtypes.NewTrack("A", "", "https://cdn.example/A", time.Minute)
	_, err := h.engine.StartOrEnqueue(context.Background(), g, track, "alice")
	if !errors.Is(err, mtypes.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestEngine_EnsureConnectedReusesHandle(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")

	if _, err := h.engine.EnsureConnected(context.Background(), g, "voice-g1", "text-g1"); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if h.transport.Connects() != 1 {
		t.Errorf("Expected a single connect, got %d", h.transport.Connects())
	}
	if g.ConnState() != guild.StateConnected {
		t.Errorf("Expected Connected, got %v", g.ConnState())
	}

	other := h.engine.Registry().GetOrCreate("g2")
	if _, err := h.engine.EnsureConnected(context.Background(), other, "", "text"); !errors.Is(err, mtypes.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected without a channel, got %v", err)
	}
}

func TestEngine_AdvancesOnFinish(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")
	h.play(t, g, "B")

	h.transport.Last().Finish(nil)

	waitFor(t, "B to start", func() bool { return currentTitle(g) == "B" })
	if g.Queue.Len() != 0 {
		t.Errorf("Expected empty queue, got %v", queueTitles(g))
	}
	hist := g.History.List(0)
	if len(hist) == 0 || hist[0].Track.Title != "A" {
		t.Errorf("Expected A at the head of history, got %+v", hist)
	}
	waitFor(t, "now playing notice", func() bool { return h.sawMessage("Now playing: **B**") })
}

func TestEngine_AdvanceSkipsUnplayableEntries(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")
	h.play(t, g, "B")
	h.play(t, g, "C")

	h.transport.Last().FailNextPlay(errors.New("codec error"))
	h.transport.Last().Finish(nil)

	waitFor(t, "C to start", func() bool { return currentTitle(g) == "C" })
	if g.Queue.Len() != 0 {
		t.Errorf("Expected failed entry to be consumed, got %v", queueTitles(g))
	}
	waitFor(t, "skip notice", func() bool { return h.sawMessage("Error playing B, skipping.") })
}

func TestEngine_AdvanceAfterPlaybackError(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")
	h.play(t, g, "B")

	h.transport.Last().Finish(errors.New("stream reset"))

	waitFor(t, "B to start", func() bool { return currentTitle(g) == "B" })
	waitFor(t, "error notice", func() bool { return h.sawMessage("An error occurred during playback") })
}

func TestEngine_FinishWithEmptyQueueGoesIdle(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")

	h.transport.Last().Finish(nil)

	waitFor(t, "session to clear", func() bool { return currentTitle(g) == "" })
	if g.Player.Handle() == nil || !g.Player.Handle().IsConnected() {
		t.Error("Expected to stay connected after the queue ran out")
	}
	if g.History.Len() != 1 {
		t.Errorf("Expected one history entry, got %d", g.History.Len())
	}
}

func TestEngine_PauseResume(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")

	if err := h.engine.Pause(g); !errors.Is(err, mtypes.ErrNothingPlaying) {
		t.Errorf("Expected ErrNothingPlaying, got %v", err)
	}

	h.play(t, g, "A")

	if err := h.engine.Resume(g); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Expected ErrNotPaused, got %v", err)
	}
	if err := h.engine.Pause(g); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if !h.transport.Last().IsPaused() {
		t.Error("Expected handle to be paused")
	}
	if sess, _ := g.Player.Current(); sess.PauseStart == nil {
		t.Error("Expected pause start to be recorded")
	}
	if err := h.engine.Pause(g); !errors.Is(err, ErrAlreadyPaused) {
		t.Errorf("Expected ErrAlreadyPaused, got %v", err)
	}

	if err := h.engine.Resume(g); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if sess, _ := g.Player.Current(); sess.PauseStart != nil {
		t.Error("Expected pause start to be cleared")
	}
	if !h.transport.Last().IsPlaying() {
		t.Error("Expected handle to be playing")
	}
}

func TestEngine_CommandsRequireConnection(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.engine.Registry().GetOrCreate("g1")

	tests := []struct {
		name string
		run  func() error
	}{
		{"pause", func() error { return h.engine.Pause(g) }},
		{"resume", func() error { return h.engine.Resume(g) }},
		{"skip", func() error { _, err := h.engine.Skip(g, 0); return err }},
		{"stop", func() error { _, err := h.engine.Stop(g); return err }},
		{"leave", func() error { return h.engine.Leave(context.Background(), g) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, mtypes.ErrNotConnected) {
				t.Errorf("Expected ErrNotConnected, got %v", err)
			}
		})
	}
}

func TestEngine_SkipToPosition(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	for _, title := range []string{"A", "B", "C", "D"} {
		h.play(t, g, title)
	}

	if _, err := h.engine.Skip(g, 9); !errors.Is(err, mtypes.ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition, got %v", err)
	}

	out, err := h.engine.Skip(g, 3)
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if out.Skipped.Title != "A" || out.Dropped != 2 {
		t.Errorf("Unexpected outcome: skipped %q dropped %d", out.Skipped.Title, out.Dropped)
	}
	if out.Target == nil || out.Target.Title() != "D" {
		t.Errorf("Expected D as target, got %+v", out.Target)
	}

	waitFor(t, "D to start", func() bool { return currentTitle(g) == "D" })
}

func TestEngine_Skip(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")
	h.play(t, g, "B")

	out, err := h.engine.Skip(g, 0)
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if out.Target == nil || out.Target.Title() != "B" {
		t.Errorf("Expected B as target, got %+v", out.Target)
	}
	waitFor(t, "B to start", func() bool { return currentTitle(g) == "B" })
}

func TestEngine_Stop(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")

	out, err := h.engine.Stop(g)
	if err != nil {
		t.Fatalf("Stop on idle guild failed: %v", err)
	}
	if out.WasPlaying {
		t.Error("Expected WasPlaying=false for idle guild")
	}

	h.play(t, g, "A")
	h.play(t, g, "B")

	out, err = h.engine.Stop(g)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !out.WasPlaying || out.Cleared != 1 {
		t.Errorf("Unexpected outcome: %+v", out)
	}

	// The stop-induced end-of-track event must not start anything.
	time.Sleep(50 * time.Millisecond)
	if title := currentTitle(g); title != "" {
		t.Errorf("Expected no session after stop, got %q", title)
	}
	if g.Player.Handle() == nil || !g.Player.Handle().IsConnected() {
		t.Error("Expected to stay connected after stop")
	}
}

func TestEngine_ReconnectResumesTrack(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "X")
	dropped := h.transport.Last()

	h.transport.FailNext(1)
	dropped.Drop()
	done := h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{Before: "voice-g1"})
	waitClosed(t, done)

	waits := h.sleeper.Waits()
	if len(waits) != 2 || waits[0] != 5*time.Second || waits[1] != 10*time.Second {
		t.Errorf("Expected waits [5s 10s], got %v", waits)
	}
	if h.transport.Connects() != 3 {
		t.Errorf("Expected 3 connects, got %d", h.transport.Connects())
	}

	if currentTitle(g) != "X" {
		t.Fatalf("Expected X to resume, got %q", currentTitle(g))
	}
	prog, ok := g.Player.Progress()
	if !ok || prog.Elapsed > time.Second {
		t.Errorf("Expected resume from the start, got %+v", prog)
	}
	if h.transport.Last() == dropped || !h.transport.Last().IsPlaying() {
		t.Error("Expected playback on a fresh handle")
	}

	queries := h.extractor.Queries()
	if last := queries[len(queries)-1]; last != videoPrefix+"X" {
		t.Errorf("Expected re-extraction by canonical URL, got %q", last)
	}
	hist := g.History.List(0)
	if len(hist) == 0 || hist[0].Track.Title != "X" {
		t.Errorf("Expected X at the head of history, got %+v", hist)
	}
	if g.ConnState() != guild.StateConnected || g.Reconnect().Attempts != 0 {
		t.Errorf("Expected connected with reset attempts, got %v/%d", g.ConnState(), g.Reconnect().Attempts)
	}
	if !h.sawMessage("Resumed playing **X** after reconnection.") {
		t.Errorf("Expected resume notice, got %+v", h.notifier.Messages())
	}
}

func TestEngine_ReconnectExhausted(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "X")

	h.transport.FailNext(3)
	h.transport.Last().Drop()
	done := h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{Before: "voice-g1"})
	waitClosed(t, done)

	waits := h.sleeper.Waits()
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("Expected waits %v, got %v", want, waits)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("Wait %d = %v, want %v", i, waits[i], want[i])
		}
	}

	if currentTitle(g) != "" {
		t.Error("Expected session to be cleared")
	}
	if g.Player.Handle() != nil {
		t.Error("Expected handle to be dropped")
	}
	if g.ConnState() != guild.StateDisconnected {
		t.Errorf("Expected Disconnected, got %v", g.ConnState())
	}
	if !h.sawMessage("Could not reconnect after 3 attempts. Use /play to restart.") {
		t.Errorf("Expected failure notice, got %+v", h.notifier.Messages())
	}
}

func TestEngine_VoluntaryLeaveDoesNotReconnect(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")
	h.play(t, g, "B")

	if err := h.engine.Leave(context.Background(), g); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if done := h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{Before: "voice-g1"}); done != nil {
		t.Error("Expected no reconnection after a voluntary leave")
	}

	if g.Queue.Len() != 0 || currentTitle(g) != "" || g.Player.Handle() != nil {
		t.Error("Expected queue, session and handle to be cleared")
	}
	if h.transport.Connects() != 1 {
		t.Errorf("Expected no extra connects, got %d", h.transport.Connects())
	}
}

func TestEngine_IdleDisconnectDropsState(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")

	h.transport.Last().Drop()
	if done := h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{Before: "voice-g1"}); done != nil {
		t.Error("Expected no reconnection when idle")
	}
	if g.Player.Handle() != nil || g.ConnState() != guild.StateDisconnected {
		t.Error("Expected idle disconnect to drop the handle")
	}
}

func TestEngine_LeaveCancelsReconnect(t *testing.T) {
	sleeper := &blockingSleeper{entered: make(chan struct{}, 1)}
	h := newHarness(t, sleeper, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "X")

	h.transport.Last().Drop()
	done := h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{Before: "voice-g1"})

	select {
	case <-sleeper.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Reconnection driver never waited")
	}
	if g.ConnState() != guild.StateReconnecting {
		t.Errorf("Expected Reconnecting while the driver waits, got %v", g.ConnState())
	}

	_ = h.engine.Leave(context.Background(), g)
	waitClosed(t, done)

	if h.transport.Connects() != 1 {
		t.Errorf("Expected cancelled driver not to dial, got %d connects", h.transport.Connects())
	}
	if g.Player.Handle() != nil {
		t.Error("Expected no handle after leave")
	}
}

func TestEngine_NewReconnectPreemptsOld(t *testing.T) {
	sleeper := &blockingSleeper{entered: make(chan struct{}, 1)}
	h := newHarness(t, sleeper, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "X")

	first := h.engine.TriggerReconnect(g)
	<-sleeper.entered
	second := h.engine.TriggerReconnect(g)

	waitClosed(t, first)
	select {
	case <-second:
		t.Error("Expected the newer driver to still be running")
	default:
	}
}

func TestEngine_ChannelMove(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")

	replacement, err := h.transport.Connect(context.Background(), "voice-b")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{
		Before: "voice-g1",
		After:  "voice-b",
		Handle: replacement,
	})

	if got := g.Reconnect().LastChannel; got != "voice-b" {
		t.Errorf("Expected last channel voice-b, got %q", got)
	}
	if g.Player.Handle() != replacement {
		t.Error("Expected the moved handle to be installed")
	}
}

func TestEngine_InactivityDisconnects(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) { c.InactivityInterval = 10 * time.Millisecond })
	g := h.connect(t, "g1")
	h.transport.Last().SetMembers(0)

	waitFor(t, "inactivity disconnect", func() bool { return g.Player.Handle() == nil })
	waitFor(t, "inactivity notice", func() bool { return h.sawMessage("Left the voice channel due to inactivity.") })

	if done := h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{Before: "voice-g1"}); done != nil {
		t.Error("Expected inactivity leave to count as voluntary")
	}
}

func TestEngine_InactivityKeepsBusyGuild(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) { c.InactivityInterval = 10 * time.Millisecond })
	g := h.connect(t, "g1")
	h.transport.Last().SetMembers(0)
	h.play(t, g, "A")

	time.Sleep(60 * time.Millisecond)
	if g.Player.Handle() == nil {
		t.Error("Expected to stay connected while playing")
	}
}

func TestEngine_Ingest(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	items := []mtypes.CatalogItem{
		{Title: "A", Query: "A"},
		{Title: "B", Query: "B"},
		{Title: "C", Query: "C"},
	}

	res, err := h.engine.Ingest(context.Background(), g, items, "alice")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.First.Branch != player.BranchPlay || res.Pending != 2 {
		t.Errorf("Unexpected result: %+v", res)
	}
	waitClosed(t, res.Done)

	if got := queueTitles(g); len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("Expected queue [B C], got %v", got)
	}
	if g.Processing() {
		t.Error("Expected processing flag to clear")
	}
	waits := h.sleeper.Waits()
	if len(waits) != 1 || waits[0] != 2*time.Second {
		t.Errorf("Expected one 2s batch pause, got %v", waits)
	}
}

func TestEngine_IngestSkipsFailures(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.extractor.setFailing("B")

	res, err := h.engine.Ingest(context.Background(), g, []mtypes.CatalogItem{
		{Title: "A", Query: "A"},
		{Title: "B", Query: "B"},
		{Title: "C", Query: "C"},
	}, "alice")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	waitClosed(t, res.Done)

	if got := queueTitles(g); len(got) != 1 || got[0] != "C" {
		t.Errorf("Expected queue [C], got %v", got)
	}
}

func TestEngine_IngestDeferred(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) { c.DeferCatalogResolution = true })
	g := h.connect(t, "g1")

	res, err := h.engine.Ingest(context.Background(), g, []mtypes.CatalogItem{
		{Title: "A", Query: "A"},
		{Title: "B", Query: "B"},
	}, "alice")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	waitClosed(t, res.Done)

	snap := g.Queue.Snapshot()
	if len(snap) != 1 || snap[0].Resolved() {
		t.Fatalf("Expected one placeholder, got %+v", snap)
	}

	h.transport.Last().Finish(nil)
	waitFor(t, "placeholder to resolve and play", func() bool { return currentTitle(g) == "B" })
}

func TestEngine_IngestEmpty(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")

	if _, err := h.engine.Ingest(context.Background(), g, nil, "alice"); !errors.Is(err, mtypes.ErrCatalogFailed) {
		t.Errorf("Expected ErrCatalogFailed, got %v", err)
	}
	if g.Processing() {
		t.Error("Expected processing flag to stay clear")
	}
}

func TestEngine_StopCancelsIngest(t *testing.T) {
	sleeper := &blockingSleeper{entered: make(chan struct{}, 1)}
	h := newHarness(t, sleeper, nil)
	g := h.connect(t, "g1")

	res, err := h.engine.Ingest(context.Background(), g, []mtypes.CatalogItem{
		{Title: "A", Query: "A"},
		{Title: "B", Query: "B"},
		{Title: "C", Query: "C"},
	}, "alice")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	<-sleeper.entered

	if _, err := h.engine.Stop(g); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	waitClosed(t, res.Done)

	if g.Queue.Len() != 0 {
		t.Errorf("Expected empty queue after stop, got %v", queueTitles(g))
	}
	if g.Processing() {
		t.Error("Expected processing flag to clear")
	}
}

func TestEngine_GuildIsolation(t *testing.T) {
	h := newHarness(t, nil, nil)
	g1 := h.connect(t, "g1")
	h.play(t, g1, "X")
	first := h.transport.Last()

	g2 := h.connect(t, "g2")
	h.play(t, g2, "Y")

	h.transport.FailNext(3)
	first.Drop()
	waitClosed(t, h.engine.HandleVoiceState(context.Background(), "g1", VoiceStateChange{Before: "voice-g1"}))

	if currentTitle(g1) != "" {
		t.Error("Expected g1 session to be cleared")
	}
	if currentTitle(g2) != "Y" || g2.ConnState() != guild.StateConnected {
		t.Error("Expected g2 to be unaffected")
	}
}

func TestPacer(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.Wait(ctx, ActionJoinVoice); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := p.Wait(ctx, ActionJoinVoice); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected second call to be paced, took %v", elapsed)
	}

	start = time.Now()
	if err := p.Wait(ctx, ActionExtractInfo); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Expected independent action to run immediately, took %v", elapsed)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := p.Wait(cancelled, ActionJoinVoice); !errors.Is(err, mtypes.ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestEngine_StaleAdvanceKeepsNewerTrack(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")
	stale := g.Generation()
	handle := h.transport.Last()

	b, err := h.engine.resolver.Resolve(context.Background(), "B")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	g.Ops.Lock()
	handle.Finish(nil)
	err = h.engine.startLocked(g, handle, b, "bob")
	g.Ops.Unlock()
	if err != nil {
		t.Fatalf("startLocked failed: %v", err)
	}

	// The end of A is handled only after B has started.
	h.engine.advance(context.Background(), g, stale, nil)

	if currentTitle(g) != "B" {
		t.Errorf("Expected B to remain current, got %q", currentTitle(g))
	}
	if !handle.IsPlaying() {
		t.Error("Expected B to keep playing")
	}
	for _, e := range g.History.List(0) {
		if e.Track.Title == "B" {
			t.Errorf("Expected B not to be in history, got %+v", g.History.List(0))
		}
	}
}

func TestEngine_PlayRacingFinishKeepsHistory(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.connect(t, "g1")
	h.play(t, g, "A")

	b, err := h.engine.resolver.Resolve(context.Background(), "B")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	g.Ops.Lock()
	h.transport.Last().Finish(nil)
	started := make(chan error, 1)
	go func() {
		_, err := h.engine.StartOrEnqueue(context.Background(), g, b, "bob")
		started <- err
	}()
	time.Sleep(20 * time.Millisecond)
	g.Ops.Unlock()

	if err := <-started; err != nil {
		t.Fatalf("StartOrEnqueue failed: %v", err)
	}
	waitFor(t, "A in history", func() bool { return g.History.Len() == 1 })
	time.Sleep(20 * time.Millisecond)

	if currentTitle(g) != "B" {
		t.Errorf("Expected B to be current, got %q", currentTitle(g))
	}
	if !h.transport.Last().IsPlaying() {
		t.Error("Expected B to be playing")
	}
	hist := g.History.List(0)
	if len(hist) != 1 || hist[0].Track.Title != "A" {
		t.Errorf("Expected history [A], got %+v", hist)
	}
}

func TestEngine_ReconnectRequiresConnectedGuild(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.engine.Registry().GetOrCreate("g1")

	waitClosed(t, h.engine.TriggerReconnect(g))

	if h.transport.Connects() != 0 {
		t.Errorf("Expected no dial for a guild that was never connected, got %d", h.transport.Connects())
	}
	if waits := h.sleeper.Waits(); len(waits) != 0 {
		t.Errorf("Expected no backoff waits, got %v", waits)
	}
	if g.ConnState() != guild.StateDisconnected {
		t.Errorf("Expected Disconnected, got %v", g.ConnState())
	}
}
