package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Adaptive colours keep the output readable on the light
// backgrounds common on till and kiosk consoles.
var (
	PrimaryColor = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#7D56F4"}
	SuccessColor = lipgloss.AdaptiveColor{Light: "#1E7A3C", Dark: "#43BF6D"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#B36B00", Dark: "#FFA500"}
	MutedColor   = lipgloss.AdaptiveColor{Light: "#6E6E6E", Dark: "#8A8A8A"}
	TextColor    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F2F2F2"}
)

// Layout bounds
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func badge(bg lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#000000"}).
		Background(bg).
		Bold(true).
		Padding(0, 1)
}

// Header
var (
	HeaderTitleStyle      = fg(TextColor).Bold(true).PaddingLeft(2)
	HeaderCommandStyle    = fg(MutedColor).PaddingLeft(2)
	HeaderParamKeyStyle   = fg(MutedColor).PaddingLeft(2)
	HeaderParamValueStyle = fg(TextColor)
)

// Steps and results
var (
	StepCompleteStyle = fg(SuccessColor)
	StepRunningStyle  = fg(WarningColor)
	StepPendingStyle  = fg(MutedColor)
	StepNoteStyle     = fg(MutedColor).Italic(true)

	SuccessTitleStyle        = fg(SuccessColor).Bold(true)
	ErrorTitleStyle          = fg(ErrorColor).Bold(true)
	ErrorMessageStyle        = fg(ErrorColor)
	ResultKeyStyle           = fg(MutedColor).Width(18)
	ResultValueStyle         = fg(TextColor)
	TroubleshootingItemStyle = fg(MutedColor)
)

// Dashboard
var (
	EncryptedBadgeStyle = badge(SuccessColor)
	PlainBadgeStyle     = badge(WarningColor)
	EventTimeStyle      = fg(MutedColor)
	HelpStyle           = fg(MutedColor).PaddingLeft(2)
)

// Markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	RunningMarker = "●"
	PendingMarker = "·"
)

// GetTerminalWidth returns the stdout width clamped to the supported range.
// Without a terminal it honours $COLUMNS, then falls back to the minimum.
func GetTerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return clampWidth(w)
	}
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil {
		return clampWidth(w)
	}
	return MinTerminalWidth
}

func clampWidth(width int) int {
	return max(MinTerminalWidth, min(width, MaxContentWidth))
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func boxStyle(border lipgloss.Border, color lipgloss.TerminalColor, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 1)
}

func divider(width int) string {
	return fg(PrimaryColor).Render(strings.Repeat("─", max(width, 10)))
}
