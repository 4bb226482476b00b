package grid

import "fmt"

// Role names one of the two temperature buffers owned by a State.
type Role int

const (
	// Primary is the buffer passed as "current" when the State was built.
	Primary Role = iota
	// Secondary is the buffer passed as "next".
	Secondary
)

func (r Role) String() string {
	if r == Primary {
		return "primary"
	}
	return "secondary"
}

// State owns the two temperature buffers and the conduction field of a run.
// Buffers are never exchanged; Swap flips which one is logically current.
type State struct {
	Width, Height int

	temp    [2]*Field
	conduct *Field
	current Role
}

// NewState validates that all three fields share dimensions.
func NewState(current, next, conduct *Field) (*State, error) {
	if current == nil || next == nil || conduct == nil {
		return nil, fmt.Errorf("%w: nil field", ErrShape)
	}
	if !current.SameShape(next) || !current.SameShape(conduct) {
		return nil, fmt.Errorf("%w: current %dx%d, next %dx%d, conduct %dx%d", ErrShape,
			current.Width, current.Height, next.Width, next.Height, conduct.Width, conduct.Height)
	}
	return &State{
		Width:   current.Width,
		Height:  current.Height,
		temp:    [2]*Field{current, next},
		conduct: conduct,
		current: Primary,
	}, nil
}

// FromSlices wraps caller-owned buffers of width*height values each.
func FromSlices(width, height int, current, next, conduct []float32) (*State, error) {
	cur, err := Wrap(width, height, current)
	if err != nil {
		return nil, fmt.Errorf("current: %w", err)
	}
	nxt, err := Wrap(width, height, next)
	if err != nil {
		return nil, fmt.Errorf("next: %w", err)
	}
	cond, err := Wrap(width, height, conduct)
	if err != nil {
		return nil, fmt.Errorf("conduct: %w", err)
	}
	return NewState(cur, nxt, cond)
}

// Current returns the buffer interior updates read from.
func (s *State) Current() *Field { return s.temp[s.current] }

// Next returns the buffer interior updates write to.
func (s *State) Next() *Field { return s.temp[1-s.current] }

// Conduct returns the read-only conduction field.
func (s *State) Conduct() *Field { return s.conduct }

// CurrentRole reports which owned buffer is logically current.
func (s *State) CurrentRole() Role { return s.current }

// Buffer returns the buffer owned under role r regardless of the swap state.
func (s *State) Buffer(r Role) *Field { return s.temp[r] }

// Swap exchanges the roles of the two temperature buffers.
func (s *State) Swap() {
	s.current = 1 - s.current
}
