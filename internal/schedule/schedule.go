// Package schedule partitions the interior of a grid into square tiles and
// orders them into anti-diagonal wavefronts.
//
// Tiles of one interior phase read only the current buffer and write disjoint
// cells of the next buffer, so the wavefront grouping is a static fill order
// rather than a runtime dependency gate: every tile of every wavefront may be
// submitted at once.
package schedule

import (
	"errors"
	"fmt"

	"github.com/0x5844/stencil2d/internal/kernel"
)

// MinBlockSize is the smallest tile edge chosen by BlockSize.
const MinBlockSize = 256

// ErrInvalid is returned for parameters that cannot produce a tiling.
var ErrInvalid = errors.New("schedule: invalid parameters")

// Params describes the grid a schedule is built for.
type Params struct {
	Width, Height int
	Threads       int
	// BlockSize overrides the computed tile edge when positive.
	BlockSize int
	// Vectorize allows the vector kernel on lane-aligned tiles.
	Vectorize bool
}

// Tile is one schedulable unit of the interior phase.
type Tile struct {
	// I and J are the tile-grid row (along y) and column (along x).
	I, J int
	kernel.Region
	Kernel kernel.TileKernel
}

// Wavefront is the set of tiles with I+J == Diagonal.
type Wavefront struct {
	Diagonal int
	Tiles    []Tile
}

// Schedule is the precomputed tile order reused by every sub-step.
type Schedule struct {
	Params     Params
	BlockSize  int
	RowTiles   int
	ColTiles   int
	Wavefronts []Wavefront
}

// BlockSize returns max(MinBlockSize, min(width, height)/threads).
func BlockSize(width, height, threads int) int {
	if threads < 1 {
		threads = 1
	}
	return max(MinBlockSize, min(width, height)/threads)
}

// tileCount returns extent/block clamped so the last tile starts inside the
// interior [1, extent-2] and at least one tile exists.
func tileCount(extent, block int) int {
	n := extent / block
	for n > 1 && (n-1)*block+1 > extent-2 {
		n--
	}
	return max(n, 1)
}

// Validate checks that p describes a grid with a non-empty interior.
func (p Params) Validate() error {
	if p.Width < 3 || p.Height < 3 {
		return fmt.Errorf("%w: grid %dx%d has no interior", ErrInvalid, p.Width, p.Height)
	}
	if p.Threads < 1 {
		return fmt.Errorf("%w: threads must be >= 1, got %d", ErrInvalid, p.Threads)
	}
	if p.BlockSize < 0 {
		return fmt.Errorf("%w: block size must be >= 0, got %d", ErrInvalid, p.BlockSize)
	}
	return nil
}

// Build computes the tile schedule for p.
//
// The last tile of each tile row and tile column absorbs the cells left over
// when the interior is not a multiple of the block size, so the tiles always
// cover the whole interior.
func Build(p Params) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	block := p.BlockSize
	if block == 0 {
		block = BlockSize(p.Width, p.Height, p.Threads)
	}

	s := &Schedule{
		Params:    p,
		BlockSize: block,
		RowTiles:  tileCount(p.Height, block),
		ColTiles:  tileCount(p.Width, block),
	}

	lines := s.RowTiles + s.ColTiles - 1
	s.Wavefronts = make([]Wavefront, 0, lines)
	for d := 0; d < lines; d++ {
		wf := Wavefront{Diagonal: d}
		// Walk the anti-diagonal from its top-right end down to the left.
		for i := max(0, d-s.ColTiles+1); i <= min(d, s.RowTiles-1); i++ {
			wf.Tiles = append(wf.Tiles, s.tile(i, d-i))
		}
		s.Wavefronts = append(s.Wavefronts, wf)
	}
	return s, nil
}

func (s *Schedule) tile(i, j int) Tile {
	b := s.BlockSize
	r := kernel.Region{
		X:    j*b + 1,
		Y:    i*b + 1,
		XEnd: min(j*b+b, s.Params.Width-2),
		YEnd: min(i*b+b, s.Params.Height-2),
	}
	if j == s.ColTiles-1 {
		r.XEnd = s.Params.Width - 2
	}
	if i == s.RowTiles-1 {
		r.YEnd = s.Params.Height - 2
	}
	return Tile{I: i, J: j, Region: r, Kernel: kernel.Select(r, s.Params.Vectorize)}
}

// NumTiles returns the total tile count over all wavefronts.
func (s *Schedule) NumTiles() int {
	n := 0
	for _, wf := range s.Wavefronts {
		n += len(wf.Tiles)
	}
	return n
}

// Tiles returns every tile in wavefront order.
func (s *Schedule) Tiles() []Tile {
	out := make([]Tile, 0, s.NumTiles())
	for _, wf := range s.Wavefronts {
		out = append(out, wf.Tiles...)
	}
	return out
}

// VectorTiles counts tiles assigned the vector kernel.
func (s *Schedule) VectorTiles() int {
	n := 0
	for _, wf := range s.Wavefronts {
		for _, t := range wf.Tiles {
			if t.Kernel.Kind() == kernel.Vector {
				n++
			}
		}
	}
	return n
}
