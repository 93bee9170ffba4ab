package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// DefaultYAML is written to a fresh config file.
const DefaultYAML = `# tunebox configuration.
# Environment variables (TUNEBOX_*, SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET)
# take precedence over the values below.

cache:
  media_max_entries: 100
  media_ttl: 1h
  catalog_max_entries: 50
  catalog_ttl: 2h
  image_max_entries: 200
  image_ttl: 24h
  cleanup_interval: 30m

queue:
  max_size: 500
  page_size: 10

player:
  workers: 2
  extract_timeout: 30s

voice:
  # disconnect after this long without listeners or playback (0 disables)
  inactivity_interval: 5m
  backoff_base: 5s
  max_reconnect_attempts: 3
  pacing_interval: 500ms
  history_size: 5
  batch_size: 1
  batch_pause: 2s
  defer_catalog: false

extractor:
  binary: yt-dlp
  format: bestaudio/best

catalog:
  client_id: ""
  client_secret: ""
  market: US

metrics:
  enabled: false
  listen: 127.0.0.1:9464

log:
  # debug, info, warn, error
  level: info
  # empty logs to the user cache directory
  file: ""
`

// Load builds a Config from defaults, the values known to v and the
// environment, in increasing order of precedence.
func Load(v *viper.Viper) (Config, error) {
	cfg := LoadFromViper(v)
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromViper overlays every key set in v onto DefaultConfig. It does
// not validate the result.
func LoadFromViper(v *viper.Viper) Config {
	cfg := DefaultConfig()
	if v == nil {
		return cfg
	}

	// Cache settings
	setInt(v, "cache.media_max_entries", &cfg.Cache.MediaMaxEntries)
	setDuration(v, "cache.media_ttl", &cfg.Cache.MediaTTL)
	setInt(v, "cache.catalog_max_entries", &cfg.Cache.CatalogMaxEntries)
	setDuration(v, "cache.catalog_ttl", &cfg.Cache.CatalogTTL)
	setInt(v, "cache.image_max_entries", &cfg.Cache.ImageMaxEntries)
	setDuration(v, "cache.image_ttl", &cfg.Cache.ImageTTL)
	setDuration(v, "cache.cleanup_interval", &cfg.Cache.CleanupInterval)

	// Queue settings
	setInt(v, "queue.max_size", &cfg.Queue.MaxSize)
	setInt(v, "queue.page_size", &cfg.Queue.PageSize)

	// Player settings
	setInt(v, "player.workers", &cfg.Player.Workers)
	setDuration(v, "player.extract_timeout", &cfg.Player.ExtractTimeout)

	// Voice settings
	setDuration(v, "voice.inactivity_interval", &cfg.Voice.InactivityInterval)
	setDuration(v, "voice.backoff_base", &cfg.Voice.BackoffBase)
	setInt(v, "voice.max_reconnect_attempts", &cfg.Voice.MaxReconnectAttempts)
	setDuration(v, "voice.pacing_interval", &cfg.Voice.PacingInterval)
	setInt(v, "voice.history_size", &cfg.Voice.HistorySize)
	setInt(v, "voice.batch_size", &cfg.Voice.BatchSize)
	setDuration(v, "voice.batch_pause", &cfg.Voice.BatchPause)
	if v.IsSet("voice.defer_catalog") {
		cfg.Voice.DeferCatalog = v.GetBool("voice.defer_catalog")
	}

	// Extractor settings
	setString(v, "extractor.binary", &cfg.Extractor.Binary)
	setString(v, "extractor.format", &cfg.Extractor.Format)

	// Catalog settings
	setString(v, "catalog.client_id", &cfg.Catalog.ClientID)
	setString(v, "catalog.client_secret", &cfg.Catalog.ClientSecret)
	setString(v, "catalog.market", &cfg.Catalog.Market)

	// Metrics settings
	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
	setString(v, "metrics.listen", &cfg.Metrics.Listen)

	// Log settings
	setString(v, "log.level", &cfg.Log.Level)
	setString(v, "log.file", &cfg.Log.File)

	return cfg
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}
