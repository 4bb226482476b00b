package kernel

import (
	"fmt"

	"github.com/0x5844/stencil2d/internal/grid"
	"github.com/0x5844/stencil2d/internal/simd"
)

// Kind identifies a kernel implementation.
type Kind int

const (
	Scalar Kind = iota
	Vector
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TileKernel updates every cell of a region from current into next.
type TileKernel interface {
	Kind() Kind
	Update(s *grid.State, r Region)
}

type scalarTile struct{}

func (scalarTile) Kind() Kind { return Scalar }

func (scalarTile) Update(s *grid.State, r Region) {
	cur, cond, next := s.Current().Data, s.Conduct().Data, s.Next().Data
	w := s.Width
	for y := r.Y; y <= r.YEnd; y++ {
		row := y * w
		for x := r.X; x <= r.XEnd; x++ {
			cell(cur, cond, next, w, row+x)
		}
	}
}

type vectorTile struct{}

func (vectorTile) Kind() Kind { return Vector }

// Update panics if the region width is not a lane multiple. Schedules only
// assign this kernel to aligned tiles.
func (vectorTile) Update(s *grid.State, r Region) {
	if !simd.Aligned(r.Width()) {
		panic(fmt.Sprintf("kernel: vector update on unaligned region %v", r))
	}
	cur, cond, next := s.Current().Data, s.Conduct().Data, s.Next().Data
	w := s.Width
	for y := r.Y; y <= r.YEnd; y++ {
		row := y * w
		for x := r.X; x < r.XEnd; x += simd.Lanes {
			strip(cur, cond, next, w, row+x)
		}
	}
}

var (
	ScalarTile TileKernel = scalarTile{}
	VectorTile TileKernel = vectorTile{}
)

// Select returns the vector kernel when the region width is a lane multiple
// and vectorize is set, the scalar kernel otherwise.
func Select(r Region, vectorize bool) TileKernel {
	if vectorize && simd.Aligned(r.Width()) {
		return VectorTile
	}
	return ScalarTile
}
