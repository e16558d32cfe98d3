package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const defaultWidth = 80

// ConsoleSink draws a single self-overwriting line on a terminal and falls
// back to one plain line per event otherwise.
type ConsoleSink struct {
	mu       sync.Mutex
	w        io.Writer
	terminal bool
	width    int
}

// NewConsoleSink inspects f to decide between the two renderings.
func NewConsoleSink(f *os.File) *ConsoleSink {
	fd := int(f.Fd())
	s := &ConsoleSink{w: f, terminal: term.IsTerminal(fd), width: defaultWidth}
	if s.terminal {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			s.width = w
		}
	}
	return s
}

func newWriterSink(w io.Writer, terminal bool, width int) *ConsoleSink {
	return &ConsoleSink{w: w, terminal: terminal, width: width}
}

func percent(done, total uint64) int {
	if total == 0 {
		return 100
	}
	return int(done * 100 / total)
}

func (s *ConsoleSink) Report(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := fmt.Sprintf("%s %d/%d written %d skipped %d",
		ev.Phase, ev.Done, ev.Total, ev.Stats.BlocksWritten, ev.Stats.BlocksSkipped)

	if !s.terminal {
		fmt.Fprintln(s.w, text)
		return
	}

	barWidth := s.width - len(text) - 9
	line := text
	if barWidth >= 10 {
		filled := barWidth * percent(ev.Done, ev.Total) / 100
		line = fmt.Sprintf("[%s%s] %3d%% %s",
			strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled),
			percent(ev.Done, ev.Total), text)
	}
	if len(line) > s.width {
		line = line[:s.width]
	}

	fmt.Fprintf(s.w, "\r%-*s", s.width, line)
	if ev.Phase == PhaseDone || ev.Done == ev.Total {
		fmt.Fprintln(s.w)
	}
}
