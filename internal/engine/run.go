package engine

import (
	"context"
	"fmt"
	"time"
)

// Progress describes a run after a completed RunSubSteps call.
type Progress struct {
	Step    int
	Total   int
	Elapsed time.Duration
}

// ProgressFunc observes a run between calls. A non-nil error stops the run.
type ProgressFunc func(Progress) error

// Run executes steps sub-steps as successive RunSubSteps calls of at most
// chunk sub-steps each. ctx is checked between calls only.
func (e *Engine) Run(ctx context.Context, steps, chunk int, onProgress ProgressFunc) error {
	if steps < 1 {
		return fmt.Errorf("%w: steps must be >= 1, got %d", ErrInvalidConfig, steps)
	}
	if chunk < 1 {
		return fmt.Errorf("%w: substeps must be >= 1, got %d", ErrInvalidConfig, chunk)
	}

	start := time.Now()
	for done := 0; done < steps; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := min(chunk, steps-done)
		if err := e.RunSubSteps(n); err != nil {
			return err
		}
		done += n

		p := Progress{Step: done, Total: steps, Elapsed: time.Since(start)}
		e.logger.Debug("step", "step", done, "total", steps, "elapsed", p.Elapsed)
		if onProgress != nil {
			if err := onProgress(p); err != nil {
				return fmt.Errorf("progress at step %d: %w", done, err)
			}
		}
	}
	return nil
}
