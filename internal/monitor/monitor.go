// Package monitor publishes run progress to log, websocket and MQTT sinks.
package monitor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/0x5844/stencil2d/internal/grid"
)

// Event is one progress report of a run.
type Event struct {
	RunID   string    `json:"run_id"`
	Step    int       `json:"step"`
	Total   int       `json:"total"`
	Elapsed float64   `json:"elapsed_s"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Mean    float64   `json:"mean"`
	Time    time.Time `json:"time"`
}

// NewEvent summarizes f after step of total sub-steps.
func NewEvent(runID string, step, total int, elapsed time.Duration, f *grid.Field) Event {
	lo, hi, mean := f.Stats()
	return Event{
		RunID:   runID,
		Step:    step,
		Total:   total,
		Elapsed: elapsed.Seconds(),
		Min:     lo,
		Max:     hi,
		Mean:    mean,
		Time:    time.Now().UTC(),
	}
}

// JSON encodes the event for the wire.
func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Sink receives progress events.
type Sink interface {
	Publish(Event) error
	Close() error
}

// LogSink writes events as structured log records.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(e Event) error {
	s.Logger.Info("progress",
		"step", e.Step,
		"total", e.Total,
		"elapsed_s", e.Elapsed,
		"min", e.Min,
		"max", e.Max,
		"mean", e.Mean,
	)
	return nil
}

func (LogSink) Close() error { return nil }

// Multi fans events out to every sink. A failing sink does not stop the others.
type Multi []Sink

func (m Multi) Publish(e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
