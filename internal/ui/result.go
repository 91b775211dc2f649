package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labelled value in a header or result box.
type Field struct {
	Key   string
	Value string
}

// F is shorthand for a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: fmt.Sprint(value)}
}

// RenderHeader renders a command banner with its parameters.
func RenderHeader(title, command string, params []Field, width int) string {
	width = clampWidth(width)

	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(title)),
		HeaderCommandStyle.Render(command))

	content := top
	if len(params) > 0 {
		lines := make([]string, 0, len(params))
		for _, p := range params {
			lines = append(lines, HeaderParamKeyStyle.Render(p.Key+":")+" "+HeaderParamValueStyle.Render(p.Value))
		}
		content = lipgloss.JoinVertical(lipgloss.Left, top, divider(width-6), strings.Join(lines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(content)
}

// RenderSuccessBox renders a success result box.
func RenderSuccessBox(title string, details []Field, width int) string {
	lines := []string{"", SuccessTitleStyle.Render(" " + SuccessMarker + "  " + title), ""}
	for _, d := range details {
		lines = append(lines, ResultKeyStyle.Render(" "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(details) > 0 {
		lines = append(lines, "")
	}
	return boxStyle(lipgloss.DoubleBorder(), SuccessColor, clampWidth(width)).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders a failure box. hint is multi-line troubleshooting
// text and may be empty.
func RenderErrorBox(title string, err error, hint string, width int) string {
	width = clampWidth(width)
	lines := []string{"", ErrorTitleStyle.Render(" " + FailureMarker + "  " + title), ""}
	if err != nil {
		lines = append(lines,
			lipgloss.NewStyle().Width(width-8).Inherit(ErrorMessageStyle).Render(" Error: "+err.Error()),
			"")
	}
	if hint != "" {
		for _, l := range strings.Split(hint, "\n") {
			lines = append(lines, TroubleshootingItemStyle.Render(" "+l))
		}
		lines = append(lines, "")
	}
	return boxStyle(lipgloss.DoubleBorder(), ErrorColor, width).Render(strings.Join(lines, "\n"))
}

// Printer writes rendered components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params []Field) {
	p.Println(RenderHeader(title, command, params, p.width))
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details []Field) {
	p.Println(RenderSuccessBox(title, details, p.width))
}

// PrintError prints an error result box
func (p *Printer) PrintError(title string, err error, hint string) {
	p.Println(RenderErrorBox(title, err, hint, p.width))
}

// PrintSteps prints a step list
func (p *Printer) PrintSteps(s *Steps) {
	p.Println(s.Render())
}
