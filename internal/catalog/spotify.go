package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNoCredentials is returned when the catalog client is not configured.
var ErrNoCredentials = errors.New("catalog credentials not configured")

const (
	defaultAPIBase  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultMarket   = "US"
	pageLimit       = 50
)

// SpotifyConfig holds the client-credentials settings for the Web API.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string

	// APIBase and TokenURL default to the public endpoints.
	APIBase  string
	TokenURL string

	// Market is used for artist top tracks (defaults to "US").
	Market string

	// Timeout bounds each HTTP request (defaults to 15s).
	Timeout time.Duration

	// HTTPClient is the transport used for token and API calls.
	HTTPClient *http.Client
}

// Spotify resolves catalog links through the Spotify Web API.
type Spotify struct {
	http    *http.Client
	apiBase string
	market  string
}

// NewSpotify creates a client. The token is fetched lazily on the first
// request and refreshed when it expires.
func NewSpotify(cfg SpotifyConfig) (*Spotify, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNoCredentials
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Market == "" {
		cfg.Market = defaultMarket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout

	log.Info("Initialized catalog client", "api", cfg.APIBase)
	return &Spotify{
		http:    client,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		market:  cfg.Market,
	}, nil
}

type apiArtist struct {
	Name string `json:"name"`
}

type apiTrack struct {
	Name         string      `json:"name"`
	DurationMs   int         `json:"duration_ms"`
	Artists      []apiArtist `json:"artists"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type trackPage struct {
	Items []apiTrack `json:"items"`
	Next  *string    `json:"next"`
}

type playlistPage struct {
	Items []struct {
		Track *apiTrack `json:"track"`
	} `json:"items"`
	Next *string `json:"next"`
}

type topTracks struct {
	Tracks []apiTrack `json:"tracks"`
}

// ResolveCollection returns the items behind a catalog link in catalog
// order.
func (s *Spotify) ResolveCollection(ctx context.Context, link string) ([]mtypes.CatalogItem, error) {
	ref, err := Parse(link)
	if err != nil {
		return nil, err
	}

	var items []mtypes.CatalogItem
	switch ref.Kind {
	case KindTrack:
		var t apiTrack
		if err := s.get(ctx, s.apiBase+"/tracks/"+ref.ID, &t); err != nil {
			return nil, err
		}
		items = append(items, toItem(t))

	case KindAlbum:
		next := fmt.Sprintf("%s/albums/%s/tracks?limit=%d", s.apiBase, ref.ID, pageLimit)
		for next != "" {
			var page trackPage
			if err := s.get(ctx, next, &page); err != nil {
				return nil, err
			}
			for _, t := range page.Items {
				items = append(items, toItem(t))
			}
			next = deref(page.Next)
		}

	case KindPlaylist:
		next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", s.apiBase, ref.ID, pageLimit)
		for next != "" {
			var page playlistPage
			if err := s.get(ctx, next, &page); err != nil {
				return nil, err
			}
			for _, it := range page.Items {
				// Removed or local tracks come back as null.
				if it.Track != nil {
					items = append(items, toItem(*it.Track))
				}
			}
			next = deref(page.Next)
		}

	case KindArtist:
		var top topTracks
		url := fmt.Sprintf("%s/artists/%s/top-tracks?market=%s", s.apiBase, ref.ID, s.market)
		if err := s.get(ctx, url, &top); err != nil {
			return nil, err
		}
		for _, t := range top.Tracks {
			items = append(items, toItem(t))
		}
	}

	log.Debug("Resolved catalog collection", "kind", ref.Kind, "id", ref.ID, "items", len(items))
	return items, nil
}

func (s *Spotify) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog request %s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}

func toItem(t apiTrack) mtypes.CatalogItem {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return FormatItem(t.Name, names, t.DurationMs, t.ExternalURLs.Spotify)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
