// Package engine advances a heat-conduction grid by running sub-steps on a
// worker pool. Each sub-step executes three phases separated by idle
// barriers: the boundary copy on the current buffer, the interior tile
// updates from current into next, and the buffer swap.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/0x5844/stencil2d/internal/grid"
	"github.com/0x5844/stencil2d/internal/kernel"
	"github.com/0x5844/stencil2d/internal/pool"
	"github.com/0x5844/stencil2d/internal/schedule"
)

// ErrInvalidConfig is returned before any worker starts when the grid,
// thread count or sub-step count cannot be run.
var ErrInvalidConfig = errors.New("engine: invalid configuration")

// Config selects how sub-steps are executed.
type Config struct {
	// Threads is the requested worker count, clamped to the CPU count.
	Threads int
	// BlockSize overrides the tile edge when positive.
	BlockSize int
	// Vectorize enables the width-8 kernels on lane-aligned tiles and rows.
	Vectorize bool
	// Naive runs the single-threaded reference step instead of the pool.
	Naive bool
}

// Phase names a stage of a sub-step.
type Phase int

const (
	PhaseBoundary Phase = iota
	PhaseInterior
	PhaseSwap
)

func (p Phase) String() string {
	switch p {
	case PhaseBoundary:
		return "boundary"
	case PhaseInterior:
		return "interior"
	case PhaseSwap:
		return "swap"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Engine is the handle owning a run: its grid state, its schedule cache and
// its counters. Methods must be called from one goroutine at a time.
type Engine struct {
	ID      uuid.UUID
	cfg     Config
	threads int
	state   *grid.State
	memo    schedule.Memo
	logger  *slog.Logger

	// Statistics
	calls     int64
	substeps  int64
	tasks     int64
	phaseTime [3]int64 // Nanoseconds, indexed by Phase

	poolMu    sync.Mutex
	poolStats pool.Stats
}

// New validates cfg against state. A nil logger uses slog.Default().
func New(state *grid.State, cfg Config, logger *slog.Logger) (*Engine, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	threads := cfg.Threads
	if threads < 1 {
		return nil, fmt.Errorf("%w: threads must be >= 1, got %d", ErrInvalidConfig, threads)
	}
	if clamped := pool.ClampWorkers(threads); clamped != threads {
		logger.Debug("thread count clamped to hardware concurrency", "requested", threads, "threads", clamped)
		threads = clamped
	}

	e := &Engine{
		ID:      uuid.New(),
		cfg:     cfg,
		threads: threads,
		state:   state,
	}
	if err := e.params().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	e.logger = logger.With("run_id", e.ID.String())
	return e, nil
}

func (e *Engine) params() schedule.Params {
	return schedule.Params{
		Width:     e.state.Width,
		Height:    e.state.Height,
		Threads:   e.threads,
		BlockSize: e.cfg.BlockSize,
		Vectorize: e.cfg.Vectorize,
	}
}

// Schedule returns the tile schedule, building it on first use.
func (e *Engine) Schedule() (*schedule.Schedule, error) {
	first := e.memo.Builds() == 0
	s, err := e.memo.Get(e.params())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if first {
		e.logger.Debug("schedule built",
			"block_size", s.BlockSize,
			"row_tiles", s.RowTiles,
			"col_tiles", s.ColTiles,
			"wavefronts", len(s.Wavefronts),
			"vector_tiles", s.VectorTiles())
	}
	return s, nil
}

// State returns the grid state. Its Current buffer holds the latest result.
func (e *Engine) State() *grid.State { return e.state }

// Threads returns the clamped worker count.
func (e *Engine) Threads() int { return e.threads }

// RunSubSteps advances the grid by substeps sub-steps. A pool is started for
// the call and joined before it returns. It cannot be cancelled.
func (e *Engine) RunSubSteps(substeps int) error {
	if substeps < 1 {
		return fmt.Errorf("%w: substeps must be >= 1, got %d", ErrInvalidConfig, substeps)
	}
	if e.cfg.Naive {
		start := time.Now()
		Reference(e.state, substeps)
		atomic.AddInt64(&e.phaseTime[PhaseInterior], time.Since(start).Nanoseconds())
		atomic.AddInt64(&e.calls, 1)
		atomic.AddInt64(&e.substeps, int64(substeps))
		return nil
	}

	sched, err := e.Schedule()
	if err != nil {
		return err
	}

	boundary := e.boundaryTask()
	tiles := e.tileTasks(sched)
	swap := pool.Task(e.state.Swap)

	p := pool.New(e.threads)
	defer func() {
		p.Close()
		e.poolMu.Lock()
		e.poolStats = p.Stats()
		e.poolMu.Unlock()
	}()

	for s := 0; s < substeps; s++ {
		if err := e.runPhase(p, PhaseBoundary, boundary); err != nil {
			return err
		}
		if err := e.runPhase(p, PhaseInterior, tiles...); err != nil {
			return err
		}
		if err := e.runPhase(p, PhaseSwap, swap); err != nil {
			return err
		}
		atomic.AddInt64(&e.substeps, 1)
	}
	atomic.AddInt64(&e.calls, 1)
	return nil
}

// runPhase submits tasks and waits for the pool to go idle.
func (e *Engine) runPhase(p *pool.Pool, phase Phase, tasks ...pool.Task) error {
	start := time.Now()
	for _, task := range tasks {
		if err := p.Submit(task); err != nil {
			return fmt.Errorf("%s phase: %w", phase, err)
		}
	}
	p.WaitIdle()
	atomic.AddInt64(&e.phaseTime[phase], time.Since(start).Nanoseconds())
	atomic.AddInt64(&e.tasks, int64(len(tasks)))
	return nil
}

func (e *Engine) boundaryTask() pool.Task {
	apply := kernel.Boundary
	if e.cfg.Vectorize {
		apply = kernel.BoundaryVector
	}
	return func() { apply(e.state.Current()) }
}

// tileTasks binds every tile to the kernel chosen when the schedule was built.
func (e *Engine) tileTasks(sched *schedule.Schedule) []pool.Task {
	tasks := make([]pool.Task, 0, sched.NumTiles())
	for _, wf := range sched.Wavefronts {
		for _, tile := range wf.Tiles {
			k, r := tile.Kernel, tile.Region
			tasks = append(tasks, func() { k.Update(e.state, r) })
		}
	}
	return tasks
}

// RunSubSteps advances caller-owned buffers by substeps sub-steps with a
// fresh vectorized engine and returns whichever of current or next holds
// the result.
func RunSubSteps(current, next, conduct []float32, width, height, threads, substeps int) ([]float32, error) {
	state, err := grid.FromSlices(width, height, current, next, conduct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	e, err := New(state, Config{Threads: threads, Vectorize: true}, nil)
	if err != nil {
		return nil, err
	}
	if err := e.RunSubSteps(substeps); err != nil {
		return nil, err
	}
	return state.Current().Data, nil
}
