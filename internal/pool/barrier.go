package pool

import "sync"

// Barrier counts outstanding work of a phase. Add is called when work is
// queued, Done when it has finished executing, and Wait blocks until the
// count returns to zero. Unlike sync.WaitGroup, Add may race with Wait.
type Barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func NewBarrier() *Barrier {
	b := &Barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Barrier) Add(n int) {
	b.mu.Lock()
	b.count += n
	if b.count < 0 {
		b.mu.Unlock()
		panic("pool: negative barrier count")
	}
	if b.count == 0 {
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

func (b *Barrier) Done() {
	b.Add(-1)
}

// Wait blocks until every added unit has called Done.
func (b *Barrier) Wait() {
	b.mu.Lock()
	for b.count > 0 {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// Pending returns the number of units queued or executing.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
