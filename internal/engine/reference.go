package engine

import (
	"github.com/0x5844/stencil2d/internal/grid"
	"github.com/0x5844/stencil2d/internal/kernel"
)

// Reference advances s by substeps sub-steps on the calling goroutine using
// only scalar kernels over the whole interior.
func Reference(s *grid.State, substeps int) {
	interior := kernel.Region{X: 1, Y: 1, XEnd: s.Width - 2, YEnd: s.Height - 2}
	for i := 0; i < substeps; i++ {
		kernel.Boundary(s.Current())
		kernel.ScalarTile.Update(s, interior)
		s.Swap()
	}
}
