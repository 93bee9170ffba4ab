package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/cache"
	"github.com/dgnsrekt/tunebox/internal/catalog"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
	"github.com/dgnsrekt/tunebox/internal/queue"
	"github.com/dgnsrekt/tunebox/internal/voice"
	"github.com/google/uuid"
)

// DefaultHistoryLimit is the number of history entries shown by default.
const DefaultHistoryLimit = 10

// Request identifies who issued a command and where.
type Request struct {
	Guild string
	User  string
	// VoiceChannel is the caller's current voice channel, if any.
	VoiceChannel string
	// TextChannel receives asynchronous notifications.
	TextChannel string
}

// StatsSource reports cache statistics.
type StatsSource interface {
	Stats() []cache.Stats
}

// QueueObserver receives queue length changes.
type QueueObserver interface {
	QueueLength(guild string, n int)
}

type nopObserver struct{}

func (nopObserver) QueueLength(string, int) {}

// Config tunes the service.
type Config struct {
	PageSize int
}

// Deps are the collaborators of a Service.
type Deps struct {
	Engine   *voice.Engine
	Resolver voice.TrackResolver
	// Catalog is optional. Without it catalog links are searched as text.
	Catalog  mtypes.Catalog
	Caches   StatsSource
	Clock    mtypes.Clock
	Observer QueueObserver
}

// Service runs user commands against the playback core.
type Service struct {
	engine   *voice.Engine
	registry *guild.Registry
	resolver voice.TrackResolver
	catalog  mtypes.Catalog
	caches   StatsSource
	clock    mtypes.Clock
	observer QueueObserver
	pageSize int
}

// New creates a service.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Engine == nil || deps.Resolver == nil {
		return nil, errors.New("service requires an engine and a resolver")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = queue.DefaultPageSize
	}
	if deps.Clock == nil {
		deps.Clock = mtypes.SystemClock{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Service{
		engine:   deps.Engine,
		registry: deps.Engine.Registry(),
		resolver: deps.Resolver,
		catalog:  deps.Catalog,
		caches:   deps.Caches,
		clock:    deps.Clock,
		observer: deps.Observer,
		pageSize: cfg.PageSize,
	}, nil
}

// begin looks up the guild and returns a logger tagged with a fresh
// request id.
func (s *Service) begin(cmd string, req Request) (*guild.Guild, *log.Logger) {
	logger := log.With("request", uuid.NewString(), "cmd", cmd, "guild", req.Guild)
	logger.Debug("Handling command", "user", req.User)
	return s.registry.GetOrCreate(req.Guild), logger
}

func stillProcessing(action string) Result {
	return failure(action, msgStillProcessing, mtypes.ErrStillProcessing)
}

// PlayOrEnqueue resolves query and plays it, or queues it behind the
// current track. Catalog links add every song of the collection.
func (s *Service) PlayOrEnqueue(ctx context.Context, req Request, query string) Result {
	const action = "play"
	g, logger := s.begin(action, req)

	query = strings.TrimSpace(query)
	if query == "" {
		return failure(action, "Please provide a song name or link.", mtypes.ErrInvalidTrack)
	}
	if g.Processing() {
		return stillProcessing(action)
	}

	if _, err := s.engine.EnsureConnected(ctx, g, req.VoiceChannel, req.TextChannel); err != nil {
		logger.Warn("Could not connect", "channel", req.VoiceChannel, "error", err)
		if req.VoiceChannel == "" {
			return failure(action, "You need to be in a voice channel!", err)
		}
		return fromError(action, err)
	}

	if s.catalog != nil && catalog.IsCatalogURL(query) {
		return s.playCollection(ctx, g, req, query, logger)
	}

	track, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		logger.Warn("Could not resolve track", "query", query, "error", err)
		return fromError(action, err)
	}

	out, err := s.engine.StartOrEnqueue(ctx, g, track, req.User)
	if err != nil {
		logger.Warn("Could not play track", "title", track.Title, "error", err)
		return fromError(action, err)
	}
	s.observer.QueueLength(g.ID, g.Queue.Len())
	return success(action, describePlay(out), true)
}

func (s *Service) playCollection(ctx context.Context, g *guild.Guild, req Request, link string, logger *log.Logger) Result {
	const action = "catalog"

	items, err := s.catalog.ResolveCollection(ctx, link)
	if err != nil {
		if _, ok := mtypes.CodeOf(err); !ok {
			err = mtypes.NewError(mtypes.ErrorCodeCatalog, "could not resolve "+link, err)
		}
		logger.Warn("Could not resolve catalog link", "link", link, "error", err)
		return fromError(action, err)
	}
	if len(items) == 0 {
		return failure(action, "No songs found in that link.", mtypes.NewError(mtypes.ErrorCodeCatalog, "empty collection", nil))
	}

	res, err := s.engine.Ingest(ctx, g, items, req.User)
	if err != nil {
		logger.Warn("Could not start catalog playback", "link", link, "error", err)
		return fromError(action, err)
	}
	logger.Info("Catalog link accepted", "songs", len(items), "pending", res.Pending)

	detail := describePlay(res.First)
	if res.Pending > 0 {
		detail += fmt.Sprintf("\nAdding %d more songs to the queue...", res.Pending)
	}
	r := success(action, detail, true)
	r.Done = res.Done
	return r
}

func describePlay(out voice.PlayOutcome) string {
	if out.Branch == player.BranchEnqueue {
		return fmt.Sprintf("Added to queue (#%d): %s", out.Position, out.Track.Title)
	}
	return "Now playing: " + out.Track.Title
}

// Pause pauses the current track.
func (s *Service) Pause(req Request) Result {
	const action = "pause"
	g, logger := s.begin(action, req)

	if err := s.engine.Pause(g); err != nil {
		logger.Debug("Pause declined", "error", err)
		return fromError(action, err)
	}
	return success(action, "Paused "+currentTitle(g), true)
}

// Resume resumes a paused track.
func (s *Service) Resume(req Request) Result {
	const action = "resume"
	g, logger := s.begin(action, req)

	if err := s.engine.Resume(g); err != nil {
		logger.Debug("Resume declined", "error", err)
		return fromError(action, err)
	}
	return success(action, "Resumed "+currentTitle(g), true)
}

// Skip skips the current track. A positive 1-based position skips ahead
// to that queue entry.
func (s *Service) Skip(req Request, position int) Result {
	const action = "skip"
	g, logger := s.begin(action, req)

	if g.Processing() {
		return stillProcessing(action)
	}
	if position < 0 {
		return invalidPosition(action, g.Queue.Len())
	}

	out, err := s.engine.Skip(g, position)
	if err != nil {
		logger.Debug("Skip declined", "position", position, "error", err)
		if errors.Is(err, mtypes.ErrInvalidPosition) {
			return invalidPosition(action, g.Queue.Len())
		}
		return fromError(action, err)
	}
	s.observer.QueueLength(g.ID, g.Queue.Len())

	if position > 0 && out.Target != nil {
		return success(action, "Skipped to "+out.Target.Title(), true)
	}
	if out.Skipped.Title != "" {
		return success(action, "Skipped "+out.Skipped.Title, true)
	}
	return success(action, "Skipped the current song", true)
}

// Stop stops playback and clears the queue, staying connected.
func (s *Service) Stop(req Request) Result {
	const action = "stop"
	g, logger := s.begin(action, req)

	out, err := s.engine.Stop(g)
	if err != nil {
		logger.Debug("Stop declined", "error", err)
		return fromError(action, err)
	}
	s.observer.QueueLength(g.ID, 0)
	if out.WasPlaying {
		return success(action, "Stopped playback and cleared queue", true)
	}
	return success(action, "Cleared queue", out.Cleared > 0)
}

// Leave stops everything and disconnects.
func (s *Service) Leave(ctx context.Context, req Request) Result {
	const action = "leave"
	g, logger := s.begin(action, req)

	if err := s.engine.Leave(ctx, g); err != nil {
		if errors.Is(err, mtypes.ErrNotConnected) {
			return failure(action, "I'm not in a voice channel.", err)
		}
		logger.Warn("Leave failed", "error", err)
		return fromError(action, err)
	}
	s.observer.QueueLength(g.ID, 0)
	return success(action, "Stopped playback and left the voice channel", true)
}

func currentTitle(g *guild.Guild) string {
	if sess, ok := g.Player.Current(); ok {
		return sess.Track.Title
	}
	return "the current song"
}
