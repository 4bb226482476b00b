package schedule

import (
	"errors"
	"testing"

	"github.com/0x5844/stencil2d/internal/kernel"
)

func TestBlockSize(t *testing.T) {
	tests := []struct {
		w, h, threads, want int
	}{
		{1024, 1024, 1, 1024},
		{1024, 1024, 4, 256},
		{1024, 1024, 8, 256},
		{4096, 2048, 4, 512},
		{64, 64, 2, 256},
		{10, 10, 0, 256},
	}
	for _, tt := range tests {
		if got := BlockSize(tt.w, tt.h, tt.threads); got != tt.want {
			t.Errorf("BlockSize(%d, %d, %d) = %d, expected %d", tt.w, tt.h, tt.threads, got, tt.want)
		}
	}
}

// coverage counts how many tiles write each cell.
func coverage(s *Schedule) []int {
	w, h := s.Params.Width, s.Params.Height
	hits := make([]int, w*h)
	for _, tile := range s.Tiles() {
		for y := tile.Y; y <= tile.YEnd; y++ {
			for x := tile.X; x <= tile.XEnd; x++ {
				hits[y*w+x]++
			}
		}
	}
	return hits
}

func TestTilesCoverInteriorExactlyOnce(t *testing.T) {
	params := []Params{
		{Width: 10, Height: 10, Threads: 1},
		{Width: 1026, Height: 1026, Threads: 4},
		{Width: 1024, Height: 1024, Threads: 4},
		{Width: 64, Height: 64, Threads: 8, BlockSize: 16},
		{Width: 100, Height: 37, Threads: 2, BlockSize: 10},
		{Width: 3, Height: 3, Threads: 1, BlockSize: 1},
		{Width: 9, Height: 50, Threads: 1, BlockSize: 2},
	}

	for _, p := range params {
		s, err := Build(p)
		if err != nil {
			t.Fatalf("Build(%+v) failed: %v", p, err)
		}
		hits := coverage(s)
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				interior := x > 0 && y > 0 && x < p.Width-1 && y < p.Height-1
				want := 0
				if interior {
					want = 1
				}
				if got := hits[y*p.Width+x]; got != want {
					t.Fatalf("%+v: cell (%d,%d) written by %d tiles, expected %d", p, x, y, got, want)
				}
			}
		}
	}
}

func TestWavefrontsGroupByDiagonal(t *testing.T) {
	s, err := Build(Params{Width: 82, Height: 62, Threads: 1, BlockSize: 20})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.RowTiles != 3 || s.ColTiles != 4 {
		t.Fatalf("expected 3x4 tiles, got %dx%d", s.RowTiles, s.ColTiles)
	}
	if len(s.Wavefronts) != s.RowTiles+s.ColTiles-1 {
		t.Fatalf("expected %d wavefronts, got %d", s.RowTiles+s.ColTiles-1, len(s.Wavefronts))
	}

	wantSizes := []int{1, 2, 3, 3, 2, 1}
	seen := map[[2]int]bool{}
	for d, wf := range s.Wavefronts {
		if wf.Diagonal != d {
			t.Errorf("wavefront %d has diagonal %d", d, wf.Diagonal)
		}
		if len(wf.Tiles) != wantSizes[d] {
			t.Errorf("wavefront %d: expected %d tiles, got %d", d, wantSizes[d], len(wf.Tiles))
		}
		for _, tile := range wf.Tiles {
			if tile.I+tile.J != d {
				t.Errorf("tile (%d,%d) placed on diagonal %d", tile.I, tile.J, d)
			}
			seen[[2]int{tile.I, tile.J}] = true
		}
	}
	if len(seen) != 12 || s.NumTiles() != 12 {
		t.Errorf("expected 12 distinct tiles, got %d (NumTiles %d)", len(seen), s.NumTiles())
	}
}

func TestLastTileAbsorbsRemainder(t *testing.T) {
	s, err := Build(Params{Width: 64, Height: 64, Threads: 1, BlockSize: 16})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Tiles start at 1, 17, 33 and 49; the last is cut at interior edge 62.
	if s.ColTiles != 4 {
		t.Fatalf("expected 4 tile columns, got %d", s.ColTiles)
	}
	last := s.Wavefronts[len(s.Wavefronts)-1].Tiles[0]
	if last.X != 49 || last.XEnd != 62 || last.Y != 49 || last.YEnd != 62 {
		t.Errorf("unexpected last tile %v", last.Region)
	}

	s, err = Build(Params{Width: 1024, Height: 1024, Threads: 4})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	last = s.Wavefronts[len(s.Wavefronts)-1].Tiles[0]
	if last.XEnd != 1022 || last.YEnd != 1022 {
		t.Errorf("last tile must reach the far interior edge, got %v", last.Region)
	}
}

func TestKernelChosenPerTile(t *testing.T) {
	// Interior 1..1024: four aligned 256-wide tile columns.
	s, err := Build(Params{Width: 1026, Height: 1026, Threads: 4, Vectorize: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := s.VectorTiles(); got != s.NumTiles() {
		t.Errorf("expected all %d tiles vectorized, got %d", s.NumTiles(), got)
	}

	// Interior 1..62 with block 16: last column is 14 wide.
	s, err = Build(Params{Width: 64, Height: 64, Threads: 1, BlockSize: 16, Vectorize: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, tile := range s.Tiles() {
		want := kernel.Vector
		if tile.J == s.ColTiles-1 {
			want = kernel.Scalar
		}
		if tile.Kernel.Kind() != want {
			t.Errorf("tile (%d,%d) width %d: expected %v, got %v", tile.I, tile.J, tile.Width(), want, tile.Kernel.Kind())
		}
	}

	s, err = Build(Params{Width: 1026, Height: 1026, Threads: 4, Vectorize: false})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.VectorTiles() != 0 {
		t.Error("vectorize=false must select only scalar tiles")
	}
}

func TestBuildRejectsInvalid(t *testing.T) {
	for _, p := range []Params{
		{Width: 2, Height: 10, Threads: 1},
		{Width: 10, Height: 0, Threads: 1},
		{Width: 10, Height: 10, Threads: 0},
		{Width: 10, Height: 10, Threads: 1, BlockSize: -1},
	} {
		if _, err := Build(p); !errors.Is(err, ErrInvalid) {
			t.Errorf("Build(%+v): expected ErrInvalid, got %v", p, err)
		}
	}
}

func TestMemoBuildsOnce(t *testing.T) {
	var m Memo
	p := Params{Width: 64, Height: 64, Threads: 2}

	a, err := m.Get(p)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	b, _ := m.Get(p)
	if a != b || m.Builds() != 1 {
		t.Fatalf("repeated Get should reuse the schedule, builds=%d", m.Builds())
	}

	p.BlockSize = 16
	c, _ := m.Get(p)
	if c == a || m.Builds() != 2 {
		t.Fatalf("new parameters should rebuild, builds=%d", m.Builds())
	}

	if _, err := m.Get(Params{}); err == nil {
		t.Fatal("expected error for empty params")
	}
	if m.Builds() != 2 {
		t.Fatal("failed build must not count")
	}
}
