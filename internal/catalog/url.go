package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrNotCatalogURL is returned for links that are not catalog links.
var ErrNotCatalogURL = errors.New("not a catalog url")

// Kind is the type of a catalog link.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindArtist   Kind = "artist"
)

// kinds is ordered so classification is deterministic.
var kinds = []Kind{KindTrack, KindAlbum, KindPlaylist, KindArtist}

var patterns = map[Kind]*regexp.Regexp{
	KindTrack:    regexp.MustCompile(`spotify:track:|https?://[a-z]+\.spotify\.com/track/`),
	KindAlbum:    regexp.MustCompile(`spotify:album:|https?://[a-z]+\.spotify\.com/album/`),
	KindPlaylist: regexp.MustCompile(`spotify:playlist:|https?://[a-z]+\.spotify\.com/playlist/`),
	KindArtist:   regexp.MustCompile(`spotify:artist:|https?://[a-z]+\.spotify\.com/artist/`),
}

// Ref identifies one catalog object.
type Ref struct {
	Kind Kind
	ID   string
}

// IsCatalogURL reports whether s is a catalog link.
func IsCatalogURL(s string) bool {
	_, ok := Classify(s)
	return ok
}

// Classify returns the kind of catalog link s is.
func Classify(s string) (Kind, bool) {
	for _, k := range kinds {
		if patterns[k].MatchString(s) {
			return k, true
		}
	}
	return "", false
}

// Parse extracts the kind and object ID from a catalog link. Both the web
// form (https://open.spotify.com/album/ID?si=...) and the URI form
// (spotify:album:ID) are accepted.
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	kind, ok := Classify(s)
	if !ok {
		return Ref{}, fmt.Errorf("%w: %s", ErrNotCatalogURL, s)
	}

	var id string
	if strings.HasPrefix(s, "spotify:") {
		parts := strings.Split(s, ":")
		id = parts[len(parts)-1]
	} else {
		u, err := url.Parse(s)
		if err != nil {
			return Ref{}, fmt.Errorf("parse catalog url: %w", err)
		}
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		id = segs[len(segs)-1]
	}

	if id == "" || id == string(kind) {
		return Ref{}, fmt.Errorf("%w: missing id in %s", ErrNotCatalogURL, s)
	}
	return Ref{Kind: kind, ID: id}, nil
}
