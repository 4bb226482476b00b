package schedule

import "sync"

// Memo caches the schedule of its owner. Get with the parameters of the
// cached schedule returns it without rebuilding; new parameters replace it.
type Memo struct {
	mu     sync.Mutex
	sched  *Schedule
	builds int
}

func (m *Memo) Get(p Params) (*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sched != nil && m.sched.Params == p {
		return m.sched, nil
	}
	s, err := Build(p)
	if err != nil {
		return nil, err
	}
	m.sched = s
	m.builds++
	return s, nil
}

// Builds reports how many schedules the memo has computed.
func (m *Memo) Builds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds
}
