// Package render formats playback state, queues, history and cache
// statistics as user-facing text.
package render

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"})

	headerStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#8E6900", Dark: "#F1C40F"})

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"})

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#04B575"})

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF5F87"})
)

// actionEmoji maps command names to their status icon.
var actionEmoji = map[string]string{
	"play":    "🎵",
	"pause":   "⏸️",
	"resume":  "▶️",
	"skip":    "⏭️",
	"stop":    "⏹️",
	"leave":   "👋",
	"clear":   "🗑️",
	"remove":  "🗑️",
	"move":    "↔️",
	"shuffle": "🔀",
	"wait":    "⏳",
	"catalog": "🎵",
	"connect": "🔌",
	"error":   "❌",
}
