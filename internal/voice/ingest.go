package voice

import (
	"context"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
)

// IngestResult reports the synchronous part of a collection add.
type IngestResult struct {
	First   PlayOutcome
	Pending int
	// Done closes when background ingestion exits. It is already closed
	// when nothing was left to ingest.
	Done <-chan struct{}
}

// Ingest plays or enqueues the first item right away and adds the rest in
// the background. While the background task runs the guild's processing
// flag is set.
func (e *Engine) Ingest(ctx context.Context, g *guild.Guild, items []mtypes.CatalogItem, requester string) (IngestResult, error) {
	if len(items) == 0 {
		return IngestResult{}, mtypes.NewError(mtypes.ErrorCodeCatalog, "no songs found", nil)
	}

	g.SetProcessing(true)

	track, err := e.resolver.Resolve(ctx, items[0].Query)
	if err != nil {
		g.SetProcessing(false)
		return IngestResult{}, err
	}
	first, err := e.StartOrEnqueue(ctx, g, track, requester)
	if err != nil {
		g.SetProcessing(false)
		return IngestResult{}, err
	}

	done := make(chan struct{})
	rest := items[1:]
	if len(rest) == 0 {
		g.SetProcessing(false)
		close(done)
		return IngestResult{First: first, Done: done}, nil
	}

	ictx, cancel := context.WithCancel(e.ctx)
	g.StartTask(guild.TaskIngest, cancel)
	e.goTask(func() {
		defer close(done)
		defer cancel()
		defer g.SetProcessing(false)
		e.ingestRest(ictx, g, rest, requester)
	})

	return IngestResult{First: first, Pending: len(rest), Done: done}, nil
}

func (e *Engine) ingestRest(ctx context.Context, g *guild.Guild, items []mtypes.CatalogItem, requester string) {
	added := 0
	for i := 0; i < len(items); i += e.cfg.BatchSize {
		end := i + e.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}

		for _, item := range items[i:end] {
			runtime.Gosched()
			if ctx.Err() != nil {
				log.Info("Batch ingestion cancelled", "guild", g.ID, "added", added)
				return
			}

			entry, err := e.catalogEntry(ctx, item, requester)
			if err != nil {
				log.Error("Error adding song to queue", "guild", g.ID, "title", item.Title, "error", err)
				continue
			}
			if !g.Queue.Enqueue(entry) {
				log.Warn("Queue full, stopping batch ingestion", "guild", g.ID, "added", added)
				return
			}
			added++
			e.observer.QueueLength(g.ID, g.Queue.Len())
			e.kick(ctx, g)
		}

		if end < len(items) {
			if err := e.sleeper.Sleep(ctx, e.cfg.BatchPause); err != nil {
				log.Info("Batch ingestion cancelled", "guild", g.ID, "added", added)
				return
			}
		}
	}
	log.Info("Finished processing catalog songs", "guild", g.ID, "added", added, "total", len(items))
}

func (e *Engine) catalogEntry(ctx context.Context, item mtypes.CatalogItem, requester string) (mtypes.QueueEntry, error) {
	if e.cfg.DeferCatalogResolution {
		return mtypes.NewPlaceholderEntry(item.Placeholder(), requester)
	}
	track, err := e.resolver.Resolve(ctx, item.Query)
	if err != nil {
		return mtypes.QueueEntry{}, err
	}
	return mtypes.NewTrackEntry(track, requester)
}

// kick starts the queue when the guild went idle while items were still
// being added.
func (e *Engine) kick(ctx context.Context, g *guild.Guild) {
	if _, playing := g.Player.Current(); playing {
		return
	}
	if g.Player.Decide() == player.BranchPlay {
		e.playNext(ctx, g)
	}
}
