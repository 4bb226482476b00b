package gridio

import (
	"fmt"

	"github.com/0x5844/stencil2d/internal/grid"
)

// Generator kinds accepted by Generate.
const (
	Uniform = "uniform"
	Hotspot = "hotspot"
)

const (
	ambient = 20.0
	hot     = 100.0
)

// Generate builds a synthetic grid of the given kind.
//
// uniform: ambient temperature and conduction 1 everywhere.
// hotspot: a hot disc in the middle of an ambient field, with conduction
// falling from 1 at the left edge to 0.25 at the right.
func Generate(kind string, width, height int) (*Grid, error) {
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("%w: generated grid must be at least 3x3, got %dx%d", grid.ErrShape, width, height)
	}
	g := &Grid{Temp: grid.NewField(width, height), Conduct: grid.NewField(width, height)}

	switch kind {
	case Uniform:
		g.Temp.Fill(ambient)
		g.Conduct.Fill(1)
	case Hotspot:
		g.Temp.Fill(ambient)
		cx, cy := width/2, height/2
		r := min(width, height) / 8
		if r < 1 {
			r = 1
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy <= r*r {
					g.Temp.Set(x, y, hot)
				}
				g.Conduct.Set(x, y, 1-0.75*float32(x)/float32(width-1))
			}
		}
	default:
		return nil, fmt.Errorf("unknown generator %q", kind)
	}
	return g, nil
}
