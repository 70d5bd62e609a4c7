// Package terminal prints espboot's human-readable notices.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Options controls a Writer.
type Options struct {
	// NoColor forces plain output even on a TTY.
	NoColor bool
	// Quiet suppresses Info, Success and Dim. Warnings and errors still print.
	Quiet bool
}

// Writer provides styled, line-oriented terminal output.
type Writer struct {
	out   io.Writer
	quiet bool
	mu    sync.Mutex

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	infoStyle    lipgloss.Style
	dimStyle     lipgloss.Style
	bannerStyle  lipgloss.Style
}

// NewWithOutput creates a Writer for out. Colour is only emitted when out
// is a terminal and colour was not disabled.
func NewWithOutput(out io.Writer, opts Options) *Writer {
	renderer := lipgloss.NewRenderer(out)
	if opts.NoColor || !isTerminal(out) {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &Writer{
		out:   out,
		quiet: opts.Quiet,

		errorStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),
		warnStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		successStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		infoStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		dimStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		bannerStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"}).
			Bold(true),
	}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Println writes text with a newline.
func (w *Writer) Println(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Error prints an error message in red.
func (w *Writer) Error(format string, args ...any) {
	w.line(w.errorStyle, "error: ", format, args...)
}

// Warn prints a warning message in yellow.
func (w *Writer) Warn(format string, args ...any) {
	w.line(w.warnStyle, "warning: ", format, args...)
}

// Success prints a success message in green.
func (w *Writer) Success(format string, args ...any) {
	if w.quiet {
		return
	}
	w.line(w.successStyle, "✓ ", format, args...)
}

// Info prints an info message in blue.
func (w *Writer) Info(format string, args ...any) {
	if w.quiet {
		return
	}
	w.line(w.infoStyle, "", format, args...)
}

// Dim prints dimmed/secondary text.
func (w *Writer) Dim(format string, args ...any) {
	if w.quiet {
		return
	}
	w.line(w.dimStyle, "", format, args...)
}

// Banner prints a bold headline such as the fixed board name.
func (w *Writer) Banner(title string) {
	if w.quiet {
		return
	}
	w.line(w.bannerStyle, "", "%s", title)
}

// List prints a bulleted list.
func (w *Writer) List(items []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, item := range items {
		fmt.Fprintln(w.out, "  • "+item)
	}
}

func (w *Writer) line(style lipgloss.Style, prefix, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, style.Render(prefix+msg))
}
