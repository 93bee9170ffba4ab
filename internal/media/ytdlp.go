package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// ErrNoResults is returned when a search matched nothing.
var ErrNoResults = errors.New("no results found")

// YTDLPConfig holds configuration for the yt-dlp extractor.
type YTDLPConfig struct {
	// Binary is the executable name or path (defaults to "yt-dlp").
	Binary string

	// Format selects the stream (defaults to "bestaudio/best").
	Format string

	// Timeout bounds a single invocation (defaults to 30s).
	Timeout time.Duration

	// ExtraArgs are appended before the query.
	ExtraArgs []string
}

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// YTDLP extracts track metadata by running yt-dlp without downloading.
type YTDLP struct {
	binary  string
	format  string
	timeout time.Duration
	extra   []string
	run     runFunc
}

// NewYTDLP creates an extractor.
func NewYTDLP(cfg YTDLPConfig) *YTDLP {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.Format == "" {
		cfg.Format = "bestaudio/best"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &YTDLP{
		binary:  cfg.Binary,
		format:  cfg.Format,
		timeout: cfg.Timeout,
		extra:   cfg.ExtraArgs,
		run:     runCommand,
	}
}

// Available checks that the binary can be found.
func (y *YTDLP) Available() error {
	if _, err := exec.LookPath(y.binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", y.binary, err)
	}
	return nil
}

// Extract resolves query (a URL or free-text search) into a track.
func (y *YTDLP) Extract(ctx context.Context, query string) (mtypes.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	args := []string{
		"--dump-single-json",
		"--quiet",
		"--no-warnings",
		"--no-check-certificate",
		"--default-search", "ytsearch",
		"-f", y.format,
	}
	args = append(args, y.extra...)
	args = append(args, "--", query)

	out, err := y.run(ctx, y.binary, args...)
	if err != nil {
		return mtypes.Track{}, fmt.Errorf("yt-dlp failed: %w", err)
	}

	track, err := ParseInfo(out, query)
	if err != nil {
		return mtypes.Track{}, err
	}
	log.Debug("Extracted track", "title", track.Title, "duration", track.Duration)
	return track, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command timed out: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

type thumbnail struct {
	URL   string `json:"url"`
	Width int    `json:"width"`
}

type info struct {
	Title      string      `json:"title"`
	URL        string      `json:"url"`
	Duration   float64     `json:"duration"`
	Thumbnail  string      `json:"thumbnail"`
	Thumbnails []thumbnail `json:"thumbnails"`
	WebpageURL string      `json:"webpage_url"`
	Uploader   string      `json:"uploader"`
	Entries    []info      `json:"entries"`
}

// ParseInfo converts yt-dlp JSON output into a track. Playlist and search
// results use their first entry. query is the fallback canonical URL.
func ParseInfo(data []byte, query string) (mtypes.Track, error) {
	var in info
	if err := json.Unmarshal(data, &in); err != nil {
		return mtypes.Track{}, fmt.Errorf("decode yt-dlp output: %w", err)
	}

	if in.Entries != nil {
		if len(in.Entries) == 0 {
			return mtypes.Track{}, fmt.Errorf("%w for %q", ErrNoResults, query)
		}
		in = in.Entries[0]
	}

	canonical := in.WebpageURL
	if canonical == "" {
		canonical = query
	}
	track, err := mtypes.NewTrack(in.Title, canonical, in.URL, time.Duration(math.Round(in.Duration*1000))*time.Millisecond)
	if err != nil {
		return mtypes.Track{}, err
	}

	track.ThumbnailURL = bestThumbnail(in)
	track.Uploader = in.Uploader
	if track.Uploader == "" {
		track.Uploader = "Unknown"
	}
	return track, nil
}

// bestThumbnail returns the widest thumbnail, falling back to the default.
func bestThumbnail(in info) string {
	sized := make([]thumbnail, 0, len(in.Thumbnails))
	for _, t := range in.Thumbnails {
		if t.Width > 0 && t.URL != "" {
			sized = append(sized, t)
		}
	}
	if len(sized) == 0 {
		return in.Thumbnail
	}
	sort.SliceStable(sized, func(i, j int) bool { return sized[i].Width > sized[j].Width })
	return sized[0].URL
}
