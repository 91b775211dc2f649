package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box and asks the user to type word to proceed.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, word string) bool {
	width := GetTerminalWidth()

	lines := []string{"", lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render(fmt.Sprintf(" ⚠  WARNING  ─  %s", title)), ""}
	for _, w := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render(" • "+w))
	}
	lines = append(lines, "")

	fmt.Fprintln(out, boxStyle(lipgloss.DoubleBorder(), WarningColor, width).Render(strings.Join(lines, "\n")))
	fmt.Fprint(out, lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render(fmt.Sprintf("To proceed, type %q and press Enter: ", word)))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(out)
		return false
	}
	if strings.TrimSpace(input) == word {
		return true
	}
	fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// ConfirmReset asks before restarting a device.
func ConfirmReset(in io.Reader, out io.Writer, device string) bool {
	return Confirm(in, out, "DEVICE RESET", []string{
		"The device " + device + " will restart and forget its encryption key",
		"Notes in escrow may be returned",
		"Wait for the device to come back before sending commands",
	}, "RESET")
}
