// Package config defines the tunebox configuration, its defaults and the
// loaders that fill it from the config file and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/tunebox/internal/cache"
	"github.com/dgnsrekt/tunebox/internal/guild"
	"github.com/dgnsrekt/tunebox/internal/player"
	"github.com/dgnsrekt/tunebox/internal/queue"
	"github.com/dgnsrekt/tunebox/internal/voice"
)

// Config contains all tunebox configuration options.
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Queue     QueueConfig     `yaml:"queue"`
	Player    PlayerConfig    `yaml:"player"`
	Voice     VoiceConfig     `yaml:"voice"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// CacheConfig sizes the media, catalog and image caches.
type CacheConfig struct {
	MediaMaxEntries   int           `yaml:"media_max_entries" env:"TUNEBOX_CACHE_MEDIA_MAX_ENTRIES"`
	MediaTTL          time.Duration `yaml:"media_ttl" env:"TUNEBOX_CACHE_MEDIA_TTL"`
	CatalogMaxEntries int           `yaml:"catalog_max_entries" env:"TUNEBOX_CACHE_CATALOG_MAX_ENTRIES"`
	CatalogTTL        time.Duration `yaml:"catalog_ttl" env:"TUNEBOX_CACHE_CATALOG_TTL"`
	ImageMaxEntries   int           `yaml:"image_max_entries" env:"TUNEBOX_CACHE_IMAGE_MAX_ENTRIES"`
	ImageTTL          time.Duration `yaml:"image_ttl" env:"TUNEBOX_CACHE_IMAGE_TTL"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" env:"TUNEBOX_CACHE_CLEANUP_INTERVAL"`
}

// QueueConfig bounds guild queues.
type QueueConfig struct {
	MaxSize  int `yaml:"max_size" env:"TUNEBOX_QUEUE_MAX_SIZE"`
	PageSize int `yaml:"page_size" env:"TUNEBOX_QUEUE_PAGE_SIZE"`
}

// PlayerConfig tunes track resolution.
type PlayerConfig struct {
	Workers        int           `yaml:"workers" env:"TUNEBOX_PLAYER_WORKERS"`
	ExtractTimeout time.Duration `yaml:"extract_timeout" env:"TUNEBOX_PLAYER_EXTRACT_TIMEOUT"`
}

// VoiceConfig tunes connection resilience and ingestion.
type VoiceConfig struct {
	InactivityInterval   time.Duration `yaml:"inactivity_interval" env:"TUNEBOX_VOICE_INACTIVITY_INTERVAL"`
	BackoffBase          time.Duration `yaml:"backoff_base" env:"TUNEBOX_VOICE_BACKOFF_BASE"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" env:"TUNEBOX_VOICE_MAX_RECONNECT_ATTEMPTS"`
	PacingInterval       time.Duration `yaml:"pacing_interval" env:"TUNEBOX_VOICE_PACING_INTERVAL"`
	HistorySize          int           `yaml:"history_size" env:"TUNEBOX_VOICE_HISTORY_SIZE"`
	BatchSize            int           `yaml:"batch_size" env:"TUNEBOX_VOICE_BATCH_SIZE"`
	BatchPause           time.Duration `yaml:"batch_pause" env:"TUNEBOX_VOICE_BATCH_PAUSE"`
	DeferCatalog         bool          `yaml:"defer_catalog" env:"TUNEBOX_VOICE_DEFER_CATALOG"`
}

// ExtractorConfig configures yt-dlp.
type ExtractorConfig struct {
	Binary string `yaml:"binary" env:"TUNEBOX_EXTRACTOR_BINARY"`
	Format string `yaml:"format" env:"TUNEBOX_EXTRACTOR_FORMAT"`
}

// CatalogConfig holds catalog API credentials.
type CatalogConfig struct {
	ClientID     string `yaml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	Market       string `yaml:"market" env:"TUNEBOX_CATALOG_MARKET"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"TUNEBOX_METRICS_ENABLED"`
	Listen  string `yaml:"listen" env:"TUNEBOX_METRICS_LISTEN"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" env:"TUNEBOX_LOG_LEVEL"`
	File  string `yaml:"file" env:"TUNEBOX_LOG_FILE"`
}

// DefaultConfig returns a Config with the reference values.
func DefaultConfig() Config {
	media, catalog, image := cache.MediaConfig(), cache.CatalogConfig(), cache.ImageConfig()
	v := voice.DefaultConfig()

	return Config{
		Cache: CacheConfig{
			MediaMaxEntries:   media.MaxEntries,
			MediaTTL:          media.TTL,
			CatalogMaxEntries: catalog.MaxEntries,
			CatalogTTL:        catalog.TTL,
			ImageMaxEntries:   image.MaxEntries,
			ImageTTL:          image.TTL,
			CleanupInterval:   cache.DefaultCleanupInterval,
		},
		Queue: QueueConfig{
			MaxSize:  queue.DefaultMaxSize,
			PageSize: queue.DefaultPageSize,
		},
		Player: PlayerConfig{
			Workers:        player.DefaultWorkers,
			ExtractTimeout: player.DefaultExtractTimeout,
		},
		Voice: VoiceConfig{
			InactivityInterval:   v.InactivityInterval,
			BackoffBase:          v.BackoffBase,
			MaxReconnectAttempts: v.MaxReconnectAttempts,
			PacingInterval:       v.PacingInterval,
			HistorySize:          guild.DefaultHistorySize,
			BatchSize:            v.BatchSize,
			BatchPause:           v.BatchPause,
		},
		Extractor: ExtractorConfig{
			Binary: "yt-dlp",
			Format: "bestaudio/best",
		},
		Catalog: CatalogConfig{
			Market: "US",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var validLevels = []string{"debug", "info", "warn", "error"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	caches := []struct {
		name    string
		entries int
		ttl     time.Duration
	}{
		{"media", c.Cache.MediaMaxEntries, c.Cache.MediaTTL},
		{"catalog", c.Cache.CatalogMaxEntries, c.Cache.CatalogTTL},
		{"image", c.Cache.ImageMaxEntries, c.Cache.ImageTTL},
	}
	for _, cc := range caches {
		if cc.entries < 1 || cc.entries > 100000 {
			return fmt.Errorf("%s cache max_entries must be between 1 and 100000, got %d", cc.name, cc.entries)
		}
		if cc.ttl <= 0 {
			return fmt.Errorf("%s cache ttl must be positive, got %v", cc.name, cc.ttl)
		}
	}
	if c.Cache.CleanupInterval < time.Second {
		return fmt.Errorf("cache cleanup_interval must be at least 1s, got %v", c.Cache.CleanupInterval)
	}

	if c.Queue.MaxSize < 1 || c.Queue.MaxSize > 10000 {
		return fmt.Errorf("queue max_size must be between 1 and 10000, got %d", c.Queue.MaxSize)
	}
	if c.Queue.PageSize < 1 || c.Queue.PageSize > 50 {
		return fmt.Errorf("queue page_size must be between 1 and 50, got %d", c.Queue.PageSize)
	}

	if c.Player.Workers < 1 || c.Player.Workers > 32 {
		return fmt.Errorf("player workers must be between 1 and 32, got %d", c.Player.Workers)
	}
	if c.Player.ExtractTimeout <= 0 {
		return fmt.Errorf("player extract_timeout must be positive, got %v", c.Player.ExtractTimeout)
	}

	if c.Voice.InactivityInterval < 0 {
		return fmt.Errorf("voice inactivity_interval cannot be negative, got %v", c.Voice.InactivityInterval)
	}
	if c.Voice.BackoffBase <= 0 {
		return fmt.Errorf("voice backoff_base must be positive, got %v", c.Voice.BackoffBase)
	}
	if c.Voice.MaxReconnectAttempts < 1 || c.Voice.MaxReconnectAttempts > 10 {
		return fmt.Errorf("voice max_reconnect_attempts must be between 1 and 10, got %d", c.Voice.MaxReconnectAttempts)
	}
	if c.Voice.PacingInterval < 0 {
		return fmt.Errorf("voice pacing_interval cannot be negative, got %v", c.Voice.PacingInterval)
	}
	if c.Voice.HistorySize < 1 || c.Voice.HistorySize > 100 {
		return fmt.Errorf("voice history_size must be between 1 and 100, got %d", c.Voice.HistorySize)
	}
	if c.Voice.BatchSize < 1 {
		return fmt.Errorf("voice batch_size must be positive, got %d", c.Voice.BatchSize)
	}
	if c.Voice.BatchPause < 0 {
		return fmt.Errorf("voice batch_pause cannot be negative, got %v", c.Voice.BatchPause)
	}

	if strings.TrimSpace(c.Extractor.Binary) == "" {
		return fmt.Errorf("extractor binary cannot be empty")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	levelValid := false
	for _, l := range validLevels {
		if strings.EqualFold(c.Log.Level, l) {
			levelValid = true
			c.Log.Level = l
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid log level '%s': must be one of %v", c.Log.Level, validLevels)
	}

	return nil
}

// CacheSet returns the cache set configuration.
func (c Config) CacheSet() cache.SetConfig {
	return cache.SetConfig{
		Media:           cache.Config{Name: "media", MaxEntries: c.Cache.MediaMaxEntries, TTL: c.Cache.MediaTTL},
		Catalog:         cache.Config{Name: "catalog", MaxEntries: c.Cache.CatalogMaxEntries, TTL: c.Cache.CatalogTTL},
		Image:           cache.Config{Name: "image", MaxEntries: c.Cache.ImageMaxEntries, TTL: c.Cache.ImageTTL},
		CleanupInterval: c.Cache.CleanupInterval,
	}
}

// Guilds returns the guild registry configuration.
func (c Config) Guilds() guild.Config {
	return guild.Config{QueueSize: c.Queue.MaxSize, HistorySize: c.Voice.HistorySize}
}

// Engine returns the voice engine configuration.
func (c Config) Engine() voice.Config {
	cfg := voice.DefaultConfig()
	cfg.InactivityInterval = c.Voice.InactivityInterval
	cfg.BackoffBase = c.Voice.BackoffBase
	cfg.MaxReconnectAttempts = c.Voice.MaxReconnectAttempts
	cfg.PacingInterval = c.Voice.PacingInterval
	cfg.BatchSize = c.Voice.BatchSize
	cfg.BatchPause = c.Voice.BatchPause
	cfg.DeferCatalogResolution = c.Voice.DeferCatalog
	return cfg
}
