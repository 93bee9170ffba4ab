package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxImageBytes caps a downloaded thumbnail.
const DefaultMaxImageBytes = 2 << 20

// ImageCache memoizes compressed images.
type ImageCache interface {
	GetOrCompute(ctx context.Context, fn string, compute func(context.Context) ([]byte, error), args ...any) ([]byte, error)
}

// ThumbnailConfig configures a Thumbnails fetcher.
type ThumbnailConfig struct {
	// Level is the zstd level (1-22, defaults to 3).
	Level int

	// MaxBytes caps a download (defaults to DefaultMaxImageBytes).
	MaxBytes int64

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// Thumbnails fetches artwork and keeps it zstd-compressed in the image
// cache.
type Thumbnails struct {
	cache    ImageCache
	http     *http.Client
	maxBytes int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewThumbnails creates a fetcher backed by cache.
func NewThumbnails(cache ImageCache, cfg ThumbnailConfig) (*Thumbnails, error) {
	if cfg.Level <= 0 {
		cfg.Level = 3
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxImageBytes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.Level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Thumbnails{
		cache:    cache,
		http:     cfg.HTTPClient,
		maxBytes: cfg.MaxBytes,
		encoder:  enc,
		decoder:  dec,
	}, nil
}

// Fetch returns the image at url, downloading it on a cache miss.
func (t *Thumbnails) Fetch(ctx context.Context, url string) ([]byte, error) {
	packed, err := t.cache.GetOrCompute(ctx, "thumbnail", func(ctx context.Context) ([]byte, error) {
		raw, err := t.download(ctx, url)
		if err != nil {
			return nil, err
		}
		packed := t.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))
		log.Debug("Cached thumbnail", "url", url, "raw", len(raw), "compressed", len(packed))
		return packed, nil
	}, url)
	if err != nil {
		return nil, err
	}

	raw, err := t.decoder.DecodeAll(packed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress thumbnail: %w", err)
	}
	return raw, nil
}

func (t *Thumbnails) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build thumbnail request: %w", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch thumbnail: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if int64(len(data)) > t.maxBytes {
		return nil, fmt.Errorf("thumbnail exceeds %d bytes", t.maxBytes)
	}
	return data, nil
}

// Close releases the codec resources.
func (t *Thumbnails) Close() {
	t.encoder.Close()
	t.decoder.Close()
}
