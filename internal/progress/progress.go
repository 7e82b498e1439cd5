// Package progress reports how far through its input a run is.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

type Sink interface {
	// Update reports percent of the input consumed, 0 to 100.
	Update(percent int)
	// Done erases whatever the sink drew.
	Done()
}

type Nop struct{}

func (Nop) Update(int) {}
func (Nop) Done()      {}

const (
	barCells       = 50
	defaultWidth   = 80
	redrawInterval = 250 * time.Millisecond
)

// Bar draws a single-line bar that is redrawn in place.
type Bar struct {
	w     io.Writer
	width int

	last     int
	lastDraw time.Time
	now      func() time.Time
}

// ForFile returns a Bar drawing on f when f is a terminal, Nop otherwise.
func ForFile(f *os.File) Sink {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return Nop{}
	}

	width, _, err := term.GetSize(fd)
	if err != nil {
		width = defaultWidth
	}
	return NewBar(f, width)
}

func NewBar(w io.Writer, width int) *Bar {
	return &Bar{w: w, width: width, last: -1, now: time.Now}
}

func (b *Bar) Update(percent int) {
	percent = max(0, min(100, percent))
	if percent == b.last {
		return
	}

	now := b.now()
	if percent < 100 && now.Sub(b.lastDraw) < redrawInterval {
		return
	}

	b.last = percent
	b.lastDraw = now

	filled := percent / 2
	line := "<" + strings.Repeat("=", filled) + strings.Repeat(" ", barCells-filled) + ">"
	fmt.Fprintf(b.w, "\r%s %3d %%", line, percent)
}

func (b *Bar) Done() {
	fmt.Fprintf(b.w, "\r%s\r", strings.Repeat(" ", b.width))
	b.last = -1
}
