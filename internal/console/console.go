// Package console is the in-memory log sink shown to the user.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Kind classifies a diagnostics line for coloring.
type Kind int

const (
	KindPlain Kind = iota
	KindSuccess
	KindFailure
	KindWarning
	KindSummary
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Console collects diagnostics lines. Clear(n) with n > 0 drops the trailing
// n lines, which is how a progress line like "Interpreting..." is replaced
// by its result.
//
// Thread-safety: All methods are safe for concurrent use.
type Console struct {
	mu    sync.Mutex
	lines []string
}

// New creates an empty console.
func New() *Console {
	return &Console{}
}

// Log appends a line.
func (c *Console) Log(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

// Clear drops every line when n is 0, otherwise the trailing n lines.
func (c *Console) Clear(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n >= len(c.lines) {
		c.lines = nil
		return
	}
	c.lines = c.lines[:len(c.lines)-n]
}

// Lines returns a copy of the current lines.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Render writes the current lines to w, colored by Classify.
// Colors follow color.NoColor (disabled when w is not a terminal or
// NO_COLOR is set).
func (c *Console) Render(w io.Writer) error {
	return RenderLines(w, c.Lines())
}

// RenderLines writes lines to w, colored by Classify.
func RenderLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		var err error
		switch Classify(line) {
		case KindSuccess:
			_, err = green.Fprintln(w, line)
		case KindFailure:
			_, err = red.Fprintln(w, line)
		case KindWarning:
			_, err = yellow.Fprintln(w, line)
		case KindSummary:
			_, err = cyan.Fprintln(w, line)
		default:
			_, err = fmt.Fprintln(w, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Classify decides how a diagnostics line is colored.
func Classify(line string) Kind {
	switch {
	case strings.HasSuffix(line, "(Too large to render)"):
		return KindWarning
	case strings.HasPrefix(line, "Interpretation failed"),
		strings.HasPrefix(line, "  "),
		strings.HasSuffix(line, " = false"):
		return KindFailure
	case strings.Contains(line, "successfully after"),
		strings.HasPrefix(line, "Evaluated operations after"),
		strings.HasSuffix(line, " = true"):
		return KindSuccess
	case strings.HasPrefix(line, "Total Operations:"):
		return KindSummary
	default:
		return KindPlain
	}
}
