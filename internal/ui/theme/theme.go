package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/levelup/internal/achievements"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
	Energy    = lipgloss.Color("#FACC15") // Amber
)

// Rarity colors, lowest to highest.
var (
	Common    = lipgloss.Color("#94A3B8")
	Rare      = lipgloss.Color("#3B82F6")
	Epic      = lipgloss.Color("#A855F7")
	Legendary = lipgloss.Color("#F59E0B")
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(14)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 2)
)

// States
var (
	Earned = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Locked = lipgloss.NewStyle().
		Foreground(TextDim)

	Warning = lipgloss.NewStyle().
		Foreground(Accent)

	Failure = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	EnergyValue = lipgloss.NewStyle().
			Foreground(Energy).
			Bold(true)
)

// RarityColor returns the display color for r.
func RarityColor(r achievements.Rarity) color.Color {
	switch r {
	case achievements.RarityRare:
		return Rare
	case achievements.RarityEpic:
		return Epic
	case achievements.RarityLegendary:
		return Legendary
	default:
		return Common
	}
}

// RarityStyle renders a rarity label in its color.
func RarityStyle(r achievements.Rarity) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(RarityColor(r)).Bold(r.Rank() >= 2)
}
