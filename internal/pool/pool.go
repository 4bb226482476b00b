// Package pool provides a fixed-size worker pool with a FIFO queue and an
// explicit idle barrier used to separate simulation phases.
package pool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Submit once shutdown has begun.
var ErrClosed = errors.New("pool: submit on closed pool")

// Task is one unit of work.
type Task func()

// State is the lifecycle of a pool.
type State int32

const (
	Running State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Pool runs queued tasks on a fixed set of worker goroutines.
type Pool struct {
	workers int

	mu    sync.Mutex
	ready *sync.Cond // queue non-empty or stopping
	queue []Task
	state State

	idle *Barrier
	wg   sync.WaitGroup
	once sync.Once

	// Performance monitoring
	tasksProcessed int64
	totalTime      int64 // Nanoseconds
	workerLoads    []int64
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers        int
	TasksProcessed int64
	AvgTaskTime    time.Duration
	WorkerLoads    []int64
}

// ClampWorkers bounds n to [1, runtime.NumCPU()].
func ClampWorkers(n int) int {
	return max(1, min(n, runtime.NumCPU()))
}

// New starts a pool of ClampWorkers(workers) goroutines.
func New(workers int) *Pool {
	workers = ClampWorkers(workers)
	p := &Pool{
		workers:     workers,
		idle:        NewBarrier(),
		workerLoads: make([]int64, workers),
	}
	p.ready = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && p.state == Running {
			p.ready.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		start := time.Now()
		task()
		duration := time.Since(start)

		atomic.AddInt64(&p.tasksProcessed, 1)
		atomic.AddInt64(&p.totalTime, duration.Nanoseconds())
		atomic.AddInt64(&p.workerLoads[id], 1)

		p.idle.Done()
	}
}

// Submit enqueues task. It fails only after Close has been called.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if p.state != Running {
		p.mu.Unlock()
		return ErrClosed
	}
	p.idle.Add(1)
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	p.ready.Signal()
	return nil
}

// WaitIdle blocks until the queue is empty and no worker is executing a task.
func (p *Pool) WaitIdle() {
	p.idle.Wait()
}

// Close lets workers drain the queue, then joins them. Calling Close more
// than once is safe.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.state = Stopping
		p.mu.Unlock()
		p.ready.Broadcast()

		p.wg.Wait()

		p.mu.Lock()
		p.state = Stopped
		p.mu.Unlock()
	})
}

// State reports the pool lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) Stats() Stats {
	processed := atomic.LoadInt64(&p.tasksProcessed)
	totalTime := atomic.LoadInt64(&p.totalTime)

	s := Stats{
		Workers:        p.workers,
		TasksProcessed: processed,
		WorkerLoads:    make([]int64, len(p.workerLoads)),
	}
	if processed > 0 {
		s.AvgTaskTime = time.Duration(totalTime / processed)
	}
	for i := range p.workerLoads {
		s.WorkerLoads[i] = atomic.LoadInt64(&p.workerLoads[i])
	}
	return s
}
