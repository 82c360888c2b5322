package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxErrors bounds the error section.
const maxErrors = 5

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderOperations(&b, m)
	if len(m.Errors) > 0 {
		renderErrors(&b, m)
	}
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("converge %s: %s", m.Command, m.StackName)))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done:
		status += readyStyle.Render("Complete")
	case m.Phase != "":
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + warningStyle.Render(m.Phase)
	default:
		status += dimStyle.Render("starting")
	}
	b.WriteString(status)
	b.WriteString("\n\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := calculateProgress(m)
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = m.Width - 30
		if barWidth < 10 {
			barWidth = 10
		}
	}
	filled := int(float64(barWidth) * progress)
	if filled > barWidth {
		filled = barWidth
	}

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	pct := int(progress * 100)
	detail := ""
	if m.Total > 0 {
		detail = fmt.Sprintf(" (%d/%d)", m.Completed, m.Total)
	}
	if m.EstimatedRemaining > 0 {
		detail += fmt.Sprintf(" ETA %s", formatDuration(m.EstimatedRemaining))
	}
	if m.Retries > 0 {
		detail += fmt.Sprintf("  retries %d", m.Retries)
	}

	fmt.Fprintf(b, "  %s %d%%%s\n", bar, pct, detail)
}

func renderOperations(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Operations"))
	b.WriteString("\n")

	if len(m.Operations) == 0 {
		b.WriteString(dimStyle.Render("    waiting for the first operation"))
		b.WriteString("\n")
		return
	}

	ops := m.Operations
	if limit := visibleRows(m); len(ops) > limit {
		hidden := len(ops) - limit
		ops = ops[hidden:]
		fmt.Fprintf(b, "    %s\n", dimStyle.Render(fmt.Sprintf("... %d earlier", hidden)))
	}

	for _, op := range ops {
		icon, style := operationIcon(op.Status, m.SpinnerFrame)
		elapsed := op.Duration
		if op.Status == StatusRunning && !op.Started.IsZero() {
			elapsed = time.Since(op.Started)
		}
		line := fmt.Sprintf("%-7s %s", op.Verb, op.Address)
		if elapsed > 0 {
			line += dimStyle.Render("  " + formatDuration(elapsed))
		}
		if op.Message != "" && op.Status != StatusDone {
			line += dimStyle.Render("  " + op.Message)
		}
		fmt.Fprintf(b, "    %s %s\n", style(icon), line)
	}
}

func renderErrors(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Errors"))
	b.WriteString("\n")

	errs := m.Errors
	if len(errs) > maxErrors {
		errs = errs[len(errs)-maxErrors:]
	}
	for _, e := range errs {
		fmt.Fprintf(b, "    %s %s\n", failedStyle.Render(crossMark), e)
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	parts := []string{fmt.Sprintf("elapsed: %s", elapsed)}
	running := 0
	for _, op := range m.Operations {
		if op.Status == StatusRunning {
			running++
		}
	}
	if running > 0 {
		parts = append(parts, fmt.Sprintf("in flight: %d", running))
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("  %s  |  q: stop after in-flight operations", strings.Join(parts, "  |  "))))
	b.WriteString("\n")
}

// Helper functions

func operationIcon(s Status, frame int) (string, styleFunc) {
	switch s {
	case StatusDone:
		return checkMark, sf(readyStyle)
	case StatusFailed:
		return crossMark, sf(failedStyle)
	case StatusSkipped:
		return skipMark, sf(dimStyle)
	default:
		return currentSpinner(frame), sf(warningStyle)
	}
}

// visibleRows keeps the operation list inside the terminal height.
func visibleRows(m Model) int {
	if m.Height <= 0 {
		return 30
	}
	rows := m.Height - 12
	if rows < 5 {
		rows = 5
	}
	return rows
}

func calculateProgress(m Model) float64 {
	if m.Done {
		return 1.0
	}
	if m.Total <= 0 {
		return 0
	}
	progress := float64(m.Completed) / float64(m.Total)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func currentSpinner(frame int) string {
	if len(spinnerFrames) == 0 {
		return spinner
	}
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}
