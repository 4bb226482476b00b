// Package kernel implements the 5-point conduction stencil and the
// zero-flux boundary copy, each in a scalar and a width-8 vector form.
package kernel

import (
	"fmt"

	"github.com/0x5844/stencil2d/internal/grid"
	"github.com/0x5844/stencil2d/internal/simd"
)

// Weight scales the sum of the four weighted neighbor differences.
const Weight float32 = 0.2

// Region is an inclusive rectangle of interior cells.
type Region struct {
	X, Y       int
	XEnd, YEnd int
}

// Width is the number of cells along the contiguous x axis.
func (r Region) Width() int { return r.XEnd - r.X + 1 }

// Height is the number of rows.
func (r Region) Height() int { return r.YEnd - r.Y + 1 }

// Cells is the number of cells covered.
func (r Region) Cells() int { return r.Width() * r.Height() }

func (r Region) String() string {
	return fmt.Sprintf("[%d..%d]x[%d..%d]", r.X, r.XEnd, r.Y, r.YEnd)
}

// Cell computes next[x,y] from current and conduct. The cell must have four
// in-grid neighbors.
func Cell(s *grid.State, x, y int) {
	cur, cond, next := s.Current().Data, s.Conduct().Data, s.Next().Data
	cell(cur, cond, next, s.Width, y*s.Width+x)
}

func cell(cur, cond, next []float32, width, mid int) {
	left, right := mid-1, mid+1
	up, down := mid-width, mid+width

	t := cur[mid]
	next[mid] = t + ((cur[left]-t)*cond[left]+
		(cur[right]-t)*cond[right]+
		(cur[up]-t)*cond[up]+
		(cur[down]-t)*cond[down])*Weight
}

// Strip computes next for the eight contiguous cells starting at (x, y).
// Cells x..x+7 of row y must all be interior.
func Strip(s *grid.State, x, y int) {
	cur, cond, next := s.Current().Data, s.Conduct().Data, s.Next().Data
	strip(cur, cond, next, s.Width, y*s.Width+x)
}

func strip(cur, cond, next []float32, width, mid int) {
	left, right := mid-1, mid+1
	up, down := mid-width, mid+width

	t := simd.Load8(cur, mid)

	dl := simd.Mul(simd.Sub(simd.Load8(cur, left), t), simd.Load8(cond, left))
	dr := simd.Mul(simd.Sub(simd.Load8(cur, right), t), simd.Load8(cond, right))
	du := simd.Mul(simd.Sub(simd.Load8(cur, up), t), simd.Load8(cond, up))
	dd := simd.Mul(simd.Sub(simd.Load8(cur, down), t), simd.Load8(cond, down))

	sum := simd.Add(simd.Add(dl, dr), simd.Add(du, dd))
	simd.Store8(next, mid, simd.MulAdd(sum, simd.Splat(Weight), t))
}
