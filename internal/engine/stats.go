package engine

import (
	"sync/atomic"
	"time"

	"github.com/0x5844/stencil2d/internal/pool"
)

// Stats summarizes the work an engine has done.
type Stats struct {
	Calls        int64
	SubSteps     int64
	Tasks        int64
	BoundaryTime time.Duration
	InteriorTime time.Duration
	SwapTime     time.Duration
	// Pool holds the counters of the pool used by the most recent call.
	Pool pool.Stats
}

// Total is the time spent across all phases.
func (s Stats) Total() time.Duration {
	return s.BoundaryTime + s.InteriorTime + s.SwapTime
}

// AvgSubStep is the mean wall time of one sub-step.
func (s Stats) AvgSubStep() time.Duration {
	if s.SubSteps == 0 {
		return 0
	}
	return s.Total() / time.Duration(s.SubSteps)
}

func (e *Engine) Stats() Stats {
	e.poolMu.Lock()
	ps := e.poolStats
	e.poolMu.Unlock()

	return Stats{
		Calls:        atomic.LoadInt64(&e.calls),
		SubSteps:     atomic.LoadInt64(&e.substeps),
		Tasks:        atomic.LoadInt64(&e.tasks),
		BoundaryTime: time.Duration(atomic.LoadInt64(&e.phaseTime[PhaseBoundary])),
		InteriorTime: time.Duration(atomic.LoadInt64(&e.phaseTime[PhaseInterior])),
		SwapTime:     time.Duration(atomic.LoadInt64(&e.phaseTime[PhaseSwap])),
		Pool:         ps,
	}
}

// DetailedStats returns the counters as nested maps for reporting.
func (e *Engine) DetailedStats() map[string]interface{} {
	s := e.Stats()
	detail := map[string]interface{}{
		"simulation": map[string]interface{}{
			"run_id":        e.ID.String(),
			"calls":         s.Calls,
			"substeps":      s.SubSteps,
			"avg_substep":   s.AvgSubStep().Nanoseconds(),
			"boundary_time": s.BoundaryTime.Seconds(),
			"interior_time": s.InteriorTime.Seconds(),
			"swap_time":     s.SwapTime.Seconds(),
		},
		"performance": map[string]interface{}{
			"threads":         e.threads,
			"tasks_submitted": s.Tasks,
			"tasks_processed": s.Pool.TasksProcessed,
			"avg_task_time":   s.Pool.AvgTaskTime.Nanoseconds(),
			"worker_loads":    s.Pool.WorkerLoads,
		},
		"grid": map[string]interface{}{
			"width":       e.state.Width,
			"height":      e.state.Height,
			"total_cells": e.state.Width * e.state.Height,
			"current":     e.state.CurrentRole().String(),
		},
	}
	if e.cfg.Naive {
		return detail
	}
	if sched, err := e.memo.Get(e.params()); err == nil {
		detail["schedule"] = map[string]interface{}{
			"block_size":   sched.BlockSize,
			"row_tiles":    sched.RowTiles,
			"col_tiles":    sched.ColTiles,
			"tiles":        sched.NumTiles(),
			"vector_tiles": sched.VectorTiles(),
		}
	}
	return detail
}
