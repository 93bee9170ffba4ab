package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/tunebox/internal/cache"
	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/queue"
	"github.com/dustin/go-humanize"
)

// QueuePage renders one page of a queue. total is the summed duration of
// the whole queue.
func QueuePage(page queue.Page, total time.Duration) string {
	if page.Total == 0 {
		return dimStyle.Render("Queue is empty")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Current Queue"))
	b.WriteString("\n\n")

	items := make([]string, 0, len(page.Entries))
	for i, e := range page.Entries {
		line := fmt.Sprintf("`%d.` %s | `%s`", page.Offset+i+1, Fit(e.Title(), TitleWidth), Length(e.Duration()))
		if !e.Resolved() {
			line += dimStyle.Render(" (pending)")
		}
		if e.Requester != "" {
			line += "\n┗ Requested by: " + e.Requester
		}
		items = append(items, line)
	}
	b.WriteString(strings.Join(items, "\n\n"))

	fmt.Fprintf(&b, "\n\nSongs: %d | Duration: %s", page.Total, Length(total))
	if page.TotalPages > 1 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Page %d/%d", page.Number, page.TotalPages)))
	}
	return b.String()
}

// History renders recently played tracks, newest first.
func History(entries []mtypes.HistoryEntry, now time.Time) string {
	if len(entries) == 0 {
		return dimStyle.Render("No songs have been played yet")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Recently Played"))
	for i, e := range entries {
		fmt.Fprintf(&b, "\n`%d.` %s | `%s`", i+1, Fit(e.Track.Title, TitleWidth), Length(e.Track.Duration))
		meta := humanize.RelTime(e.PlayedAt, now, "ago", "from now")
		if e.Requester != "" {
			meta = e.Requester + ", " + meta
		}
		b.WriteString(dimStyle.Render(" (" + meta + ")"))
	}
	return b.String()
}

// CacheStats renders one block per cache.
func CacheStats(stats []cache.Stats, now time.Time) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Cache Statistics"))
	for _, s := range stats {
		cleanup := "never"
		if !s.LastCleanup.IsZero() {
			cleanup = humanize.RelTime(s.LastCleanup, now, "ago", "from now")
		}
		fmt.Fprintf(&b, "\n\n%s\n", titleStyle.Render(s.Name))
		fmt.Fprintf(&b, "Entries: %s / %s (%s expired)\n",
			humanize.Comma(int64(s.ActiveEntries)), humanize.Comma(int64(s.MaxEntries)), humanize.Comma(int64(s.ExpiredEntries)))
		fmt.Fprintf(&b, "Hit rate: %.1f%% | Hits: %s | Misses: %s\n",
			s.HitRatio*100, humanize.Comma(s.Hits), humanize.Comma(s.Misses))
		fmt.Fprintf(&b, "TTL: %s | Last cleanup: %s", s.TTL, cleanup)
	}
	return b.String()
}
