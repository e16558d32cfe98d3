// Package progress defines the counters a session reports and the sinks
// that render them. The driver only emits events; rendering lives here.
package progress

import (
	"context"

	"github.com/foxhunt72/bscp/internal/logging"
)

// Stats are monotonically increasing per-session counters.
type Stats struct {
	BytesIn       uint64
	BytesOut      uint64
	BlocksWritten uint64
	BlocksSkipped uint64
}

// Processed is the number of blocks decided so far.
func (s Stats) Processed() uint64 {
	return s.BlocksWritten + s.BlocksSkipped
}

// Speedup is size / (bytesIn + bytesOut), or 0 when nothing crossed the pipe.
func (s Stats) Speedup(size uint64) float64 {
	moved := s.BytesIn + s.BytesOut
	if moved == 0 {
		return 0
	}
	return float64(size) / float64(moved)
}

type Phase string

const (
	PhaseManifest Phase = "manifest"
	PhaseTransfer Phase = "transfer"
	PhaseDone     Phase = "done"
)

// Event is one progress report. Done and Total count blocks.
type Event struct {
	Phase Phase
	Done  uint64
	Total uint64
	Stats Stats
}

type Sink interface {
	Report(ctx context.Context, ev Event)
}

type NopSink struct{}

func (NopSink) Report(context.Context, Event) {}

// LogSink renders events as structured log records.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(ctx context.Context, ev Event) {
	s.logger.Info(ctx, "progress",
		"phase", ev.Phase,
		"done", ev.Done,
		"total", ev.Total,
		"written", ev.Stats.BlocksWritten,
		"skipped", ev.Stats.BlocksSkipped,
		"bytes_in", ev.Stats.BytesIn,
		"bytes_out", ev.Stats.BytesOut,
	)
}
