package formatter

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
)

var (
	styles  = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")
	running = NewBold("#7D56F4")
)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title renders a section heading.
func Title(s string) string {
	return styles.title.Render(s)
}

// Help renders dimmed secondary text.
func Help(s string) string {
	return styles.help.Render(s)
}

// RenderStatus colors a job status for terminal output.
//
// Completed renders green, failed red, cancelled orange, everything
// in-flight purple.
func RenderStatus(s models.JobStatus) string {
	switch s {
	case models.StatusCompleted:
		return styles.ok.Render(string(s))
	case models.StatusFailed:
		return styles.err.Render(string(s))
	case models.StatusCancelled:
		return styles.warn.Render(string(s))
	default:
		return running.Render(string(s))
	}
}
