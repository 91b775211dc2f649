package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
)

// Step is one stage of a multi-step command such as the key exchange.
type Step struct {
	Name    string
	Status  StepStatus
	Message string // e.g. "attempt 2"
}

// Steps tracks a fixed list of stages with a progress bar.
type Steps struct {
	Label string
	Steps []Step
	bar   progress.Model
}

// NewSteps creates a step list with every step pending.
func NewSteps(label string, names ...string) *Steps {
	steps := make([]Step, len(names))
	for i, n := range names {
		steps[i] = Step{Name: n}
	}
	return &Steps{
		Label: label,
		Steps: steps,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Set updates the step at index i. Out of range indexes are ignored.
func (s *Steps) Set(i int, status StepStatus, message string) {
	if i < 0 || i >= len(s.Steps) {
		return
	}
	s.Steps[i].Status = status
	s.Steps[i].Message = message
}

// Percent is the fraction of completed steps.
func (s *Steps) Percent() float64 {
	if len(s.Steps) == 0 {
		return 0
	}
	done := 0
	for _, st := range s.Steps {
		if st.Status == StepComplete {
			done++
		}
	}
	return float64(done) / float64(len(s.Steps))
}

// Render returns the label, bar and step list.
func (s *Steps) Render() string {
	var b strings.Builder
	if s.Label != "" {
		b.WriteString(HeaderTitleStyle.Render(s.Label))
		b.WriteString("\n\n")
	}
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(
		fmt.Sprintf("%s  %3.0f%%", s.bar.ViewAs(s.Percent()), s.Percent()*100)))
	b.WriteString("\n\n")

	for i, st := range s.Steps {
		marker, style := PendingMarker, StepPendingStyle
		switch st.Status {
		case StepComplete:
			marker, style = SuccessMarker, StepCompleteStyle
		case StepRunning:
			marker, style = RunningMarker, StepRunningStyle
		case StepFailed:
			marker, style = FailureMarker, ErrorTitleStyle
		}

		line := fmt.Sprintf("  [%d/%d] %s %s", i+1, len(s.Steps), style.Render(marker), style.Render(st.Name))
		if st.Message != "" {
			line += "  " + StepNoteStyle.Render("("+st.Message+")")
		}
		b.WriteString(line)
		if i < len(s.Steps)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// String implements fmt.Stringer
func (s *Steps) String() string { return s.Render() }
