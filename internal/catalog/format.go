package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
)

// FormatItem builds the queue item for a catalog track. The title is
// "<name> - <artists>" and the search query asks for the official audio.
func FormatItem(name string, artists []string, durationMs int, sourceURL string) mtypes.CatalogItem {
	joined := strings.Join(artists, ", ")
	return mtypes.CatalogItem{
		Title:     fmt.Sprintf("%s - %s", name, joined),
		Query:     fmt.Sprintf("%s %s official audio", name, joined),
		Duration:  (time.Duration(durationMs) * time.Millisecond).Round(time.Second),
		SourceURL: sourceURL,
	}
}
