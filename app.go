package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/cache"
	"github.com/dgnsrekt/tunebox/internal/catalog"
	"github.com/dgnsrekt/tunebox/internal/config"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/lifecycle"
	"github.com/dgnsrekt/tunebox/internal/media"
	"github.com/dgnsrekt/tunebox/internal/metrics"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
	"github.com/dgnsrekt/tunebox/internal/service"
	"github.com/dgnsrekt/tunebox/internal/sim"
	"github.com/dgnsrekt/tunebox/internal/voice"
	"github.com/prometheus/client_golang/prometheus"
)

// demoPlaylist is served by the offline catalog.
const demoPlaylist = "spotify:playlist:tunebox-demo"

// appOptions select the collaborators of an app.
type appOptions struct {
	// Offline uses the simulated extractor and catalog even when yt-dlp
	// and catalog credentials are available.
	Offline bool
	// Notify receives asynchronous notifications.
	Notify io.Writer
}

// app is the fully wired playback core.
type app struct {
	cfg       config.Config
	caches    *cache.Set
	pool      *player.Pool
	engine    *voice.Engine
	service   *service.Service
	thumbs    *media.Thumbnails
	transport *sim.Transport
	registry  *prometheus.Registry
	server    *metrics.Server
	lifecycle *lifecycle.Manager
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	a := &app{
		cfg:       cfg,
		registry:  prometheus.NewRegistry(),
		lifecycle: lifecycle.New(lifecycle.DefaultTimeout),
	}
	m := metrics.New(a.registry)

	caches, err := cache.NewSet(cfg.CacheSet(), cache.WithObserver(m))
	if err != nil {
		return nil, fmt.Errorf("unable to create caches: %w", err)
	}
	a.caches = caches

	a.pool = player.NewPool(cfg.Player.Workers)
	pacer := voice.NewPacer(cfg.Voice.PacingInterval)
	resolver := player.NewResolver(caches.Media, newExtractor(cfg, opts.Offline), a.pool,
		player.WithPacer(pacer),
		player.WithExtractTimeout(cfg.Player.ExtractTimeout),
		player.WithExtractionObserver(m),
	)

	a.transport = sim.NewTransport(1)
	engine, err := voice.New(cfg.Engine(), voice.Deps{
		Registry:  guild.NewRegistry(cfg.Guilds(), nil),
		Transport: a.transport,
		Resolver:  resolver,
		Notifier:  sim.NewNotifier(opts.Notify),
		Pacer:     pacer,
		Observer:  m,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create voice engine: %w", err)
	}
	a.engine = engine

	svc, err := service.New(service.Config{PageSize: cfg.Queue.PageSize}, service.Deps{
		Engine:   engine,
		Resolver: resolver,
		Catalog:  catalog.NewCached(caches.Catalog, newCatalog(cfg, opts.Offline)),
		Caches:   caches,
		Observer: m,
	})
	if err != nil {
		return nil, err
	}
	a.service = svc

	thumbs, err := media.NewThumbnails(caches.Image, media.ThumbnailConfig{})
	if err != nil {
		return nil, err
	}
	a.thumbs = thumbs

	if cfg.Metrics.Enabled {
		a.server = metrics.NewServer(cfg.Metrics.Listen, a.registry)
	}

	// Shutdown runs in reverse: the engine stops first.
	if a.server != nil {
		a.lifecycle.Register(a.server)
	}
	a.lifecycle.Register(lifecycle.NewFunc("thumbnails", func(context.Context) error {
		thumbs.Close()
		return nil
	}))
	a.lifecycle.Register(caches)
	a.lifecycle.Register(a.pool)
	a.lifecycle.Register(engine)
	return a, nil
}

// start launches the engine, the signal monitor and the metrics server.
func (a *app) start() error {
	a.engine.Start()
	a.lifecycle.Start()
	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return err
		}
	}
	return nil
}

// shutdown stops every component.
func (a *app) shutdown() error {
	return a.lifecycle.Shutdown()
}

func newExtractor(cfg config.Config, offline bool) mtypes.Extractor {
	if !offline {
		y := media.NewYTDLP(media.YTDLPConfig{
			Binary:  cfg.Extractor.Binary,
			Format:  cfg.Extractor.Format,
			Timeout: cfg.Player.ExtractTimeout,
		})
		err := y.Available()
		if err == nil {
			return y
		}
		log.Warn("yt-dlp not available, using the simulated extractor", "error", err)
	}
	return sim.NewExtractor(0)
}

func newCatalog(cfg config.Config, offline bool) mtypes.Catalog {
	if !offline {
		s, err := catalog.NewSpotify(catalog.SpotifyConfig{
			ClientID:     cfg.Catalog.ClientID,
			ClientSecret: cfg.Catalog.ClientSecret,
			Market:       cfg.Catalog.Market,
		})
		if err == nil {
			return s
		}
		log.Debug("Catalog client not configured, using the offline catalog", "error", err)
	}

	c := sim.NewCatalog()
	c.Add(demoPlaylist,
		catalog.FormatItem("Clair de Lune", []string{"Claude Debussy"}, 302000, demoPlaylist),
		catalog.FormatItem("Gymnopédie No. 1", []string{"Erik Satie"}, 185000, demoPlaylist),
		catalog.FormatItem("Spiegel im Spiegel", []string{"Arvo Pärt"}, 545000, demoPlaylist),
	)
	return c
}
