package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

// TitleWidth is the widest a track title is drawn before truncation.
const TitleWidth = 60

// Clock formats d as mm:ss, or h:mm:ss from one hour up.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	if h := secs / 3600; h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, secs%3600/60, secs%60)
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Length formats d as m:ss, or h:mm:ss from one hour up.
func Length(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	if h := secs / 3600; h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, secs%3600/60, secs%60)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Fit truncates s to width terminal cells.
func Fit(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "…") //nolint:gosec
}

// Action renders the outcome of a command.
func Action(action, detail string, ok bool) string {
	emoji, found := actionEmoji[strings.ToLower(action)]
	if !found {
		emoji = actionEmoji["play"]
	}
	style := okStyle
	if !ok {
		emoji = actionEmoji["error"]
		style = errStyle
	}
	return strings.TrimRight(emoji+" "+style.Render(detail), " ")
}
