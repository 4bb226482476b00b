package gridio

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/0x5844/stencil2d/internal/grid"
)

// Snapshot is a msgpack checkpoint of a run.
type Snapshot struct {
	RunID   string    `msgpack:"run_id"`
	Step    int       `msgpack:"step"`
	Width   int       `msgpack:"width"`
	Height  int       `msgpack:"height"`
	Taken   time.Time `msgpack:"taken"`
	Current []float32 `msgpack:"current"`
	Conduct []float32 `msgpack:"conduct"`
}

// NewSnapshot captures the current buffer of s after step sub-steps.
// The slices alias s; encode before the next sub-step runs.
func NewSnapshot(id uuid.UUID, step int, s *grid.State) *Snapshot {
	return &Snapshot{
		RunID:   id.String(),
		Step:    step,
		Width:   s.Width,
		Height:  s.Height,
		Taken:   time.Now().UTC(),
		Current: s.Current().Data,
		Conduct: s.Conduct().Data,
	}
}

// Grid converts the snapshot back into fields.
func (s *Snapshot) Grid() (*Grid, error) {
	temp, err := grid.Wrap(s.Width, s.Height, s.Current)
	if err != nil {
		return nil, fmt.Errorf("snapshot current: %w", err)
	}
	cond, err := grid.Wrap(s.Width, s.Height, s.Conduct)
	if err != nil {
		return nil, fmt.Errorf("snapshot conduct: %w", err)
	}
	return &Grid{Temp: temp, Conduct: cond}, nil
}

func WriteSnapshot(path string, snap *Snapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrFormat, err)
	}
	return &snap, nil
}
