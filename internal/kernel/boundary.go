package kernel

import (
	"github.com/0x5844/stencil2d/internal/grid"
	"github.com/0x5844/stencil2d/internal/simd"
)

// Boundary replicates the edge-adjacent interior values onto the outer ring
// of f in place: column 0 from column 1, column w-1 from column w-2, then
// row 0 from row 1 and row h-1 from row h-2. Copying rows last makes every
// corner equal to its diagonal interior neighbor.
func Boundary(f *grid.Field) {
	copyColumns(f)

	w, h := f.Width, f.Height
	d := f.Data
	top, second := 0, w
	bottom, penultimate := (h-1)*w, (h-2)*w
	for x := 0; x < w; x++ {
		d[top+x] = d[second+x]
		d[bottom+x] = d[penultimate+x]
	}
}

// BoundaryVector is Boundary with the row copies done eight columns at a
// time. The column copies stay scalar since their cells are a row apart.
func BoundaryVector(f *grid.Field) {
	copyColumns(f)

	w, h := f.Width, f.Height
	d := f.Data
	top, second := 0, w
	bottom, penultimate := (h-1)*w, (h-2)*w

	x := 0
	for ; x+simd.Lanes <= w; x += simd.Lanes {
		simd.Store8(d, top+x, simd.Load8(d, second+x))
		simd.Store8(d, bottom+x, simd.Load8(d, penultimate+x))
	}
	for ; x < w; x++ {
		d[top+x] = d[second+x]
		d[bottom+x] = d[penultimate+x]
	}
}

func copyColumns(f *grid.Field) {
	w, h := f.Width, f.Height
	d := f.Data
	for y := 0; y < h; y++ {
		row := y * w
		d[row] = d[row+1]
		d[row+w-1] = d[row+w-2]
	}
}
