package render

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/tunebox/internal/mtypes"
	"github.com/dgnsrekt/tunebox/internal/player"
)

// BarLength is the number of cells in the progress bar.
const BarLength = 15

// ProgressBar draws the play state, a bar and elapsed/total times.
func ProgressBar(p player.Progress) string {
	fraction := p.Fraction
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(BarLength * fraction)

	status := "▶️"
	if p.Paused {
		status = "⏸️"
	}

	bar := strings.Repeat("▬", filled) + "🔘" + dimStyle.Render(strings.Repeat("▬", BarLength-filled))
	return fmt.Sprintf("%s %s `%s / %s`", status, bar, Clock(p.Elapsed), Clock(p.Total))
}

// NowPlaying renders the current session with its progress.
func NowPlaying(sess player.Session, p player.Progress) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Now Playing"))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(Fit(sess.Track.Title, TitleWidth)))
	b.WriteString("\n")
	if sess.Track.CanonicalURL != "" {
		b.WriteString(dimStyle.Render(sess.Track.CanonicalURL))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Uploader: %s | Duration: %s\n", uploader(sess.Track), Length(sess.Track.Duration))
	b.WriteString(ProgressBar(p))
	if sess.Requester != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Requested by " + sess.Requester))
	}
	return b.String()
}

// Added renders a track that was put on the queue at 1-based position.
func Added(entry mtypes.QueueEntry, position int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Added to Queue"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "#%d - %s | `%s`", position, titleStyle.Render(Fit(entry.Title(), TitleWidth)), Length(entry.Duration()))
	return b.String()
}

func uploader(t mtypes.Track) string {
	if t.Uploader == "" {
		return "Unknown"
	}
	return t.Uploader
}
