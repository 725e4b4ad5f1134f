// Package ui renders download states for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/veranemoloko/clipfetch/internal/domain"
)

const defaultWidth = 40

var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("211"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

// StatusLine turns a DownloadState into a single line of text.
type StatusLine struct {
	bar progress.Model
}

// NewStatusLine creates a StatusLine whose progress bar is width cells wide.
func NewStatusLine(width int) *StatusLine {
	if width <= 0 {
		width = defaultWidth
	}
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = width
	return &StatusLine{bar: bar}
}

// Render returns the text for s.
func (l *StatusLine) Render(s domain.DownloadState) string {
	switch st := s.(type) {
	case domain.Idle:
		return mutedStyle.Render("idle")
	case domain.Preparing:
		return labelStyle.Render("preparing") + " " + mutedStyle.Render("submitting job...")
	case domain.Downloading:
		return labelStyle.Render("downloading") + " " + l.bar.ViewAs(st.Progress)
	case domain.Completed:
		var b strings.Builder
		b.WriteString(successStyle.Render("completed"))
		b.WriteString(" " + st.FileURL)
		if st.LocalPath != "" {
			b.WriteString(mutedStyle.Render(" -> " + st.LocalPath))
		}
		if st.Warning != "" {
			b.WriteString(" " + warningStyle.Render("warning: "+st.Warning))
		}
		return b.String()
	case domain.Failed:
		return errorStyle.Render("failed") + " " + st.Message
	default:
		return fmt.Sprintf("unknown state %T", s)
	}
}

// Printer writes state changes to a terminal. In-progress states overwrite
// the current line; terminal states end it.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	line *StatusLine
	// open is true while the cursor sits on an unfinished status line.
	open bool
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, width int) *Printer {
	return &Printer{w: w, line: NewStatusLine(width)}
}

// Print renders s.
func (p *Printer) Print(s domain.DownloadState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := p.line.Render(s)
	if s.Phase().IsTerminal() || s.Phase() == domain.PhaseIdle {
		if p.open {
			fmt.Fprint(p.w, "\r\033[K")
		}
		fmt.Fprintln(p.w, text)
		p.open = false
		return
	}

	fmt.Fprint(p.w, "\r\033[K"+text)
	p.open = true
}

// PrintLabeled writes one finished line prefixed with label. It is used when
// several jobs report at once and lines cannot be overwritten.
func (p *Printer) PrintLabeled(label string, s domain.DownloadState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
	fmt.Fprintf(p.w, "%s %s\n", mutedStyle.Render(label), p.line.Render(s))
}
