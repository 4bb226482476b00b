// Package gridio reads and writes grid files and run snapshots.
//
// A grid file is little-endian: int32 width, int32 height, then
// width*height float32 temperatures and width*height float32 conduction
// coefficients, both row-major.
package gridio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0x5844/stencil2d/internal/grid"
)

// MaxCells bounds the allocation a header may request.
const MaxCells = 1 << 28

// ErrFormat is returned for truncated or malformed grid files.
var ErrFormat = errors.New("gridio: bad grid format")

// Grid is the content of a grid file.
type Grid struct {
	Temp    *grid.Field
	Conduct *grid.Field
}

// Width and Height of the stored fields.
func (g *Grid) Width() int  { return g.Temp.Width }
func (g *Grid) Height() int { return g.Temp.Height }

// State builds a simulation state whose current buffer is g.Temp. The next
// buffer starts as a copy so its border is already consistent.
func (g *Grid) State() (*grid.State, error) {
	return grid.NewState(g.Temp, g.Temp.Clone(), g.Conduct)
}

// Decode reads one grid from r.
func Decode(r io.Reader) (*Grid, error) {
	var header [2]int32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	w, h := int(header[0]), int(header[1])
	if w <= 0 || h <= 0 || w*h > MaxCells {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrFormat, w, h)
	}

	g := &Grid{Temp: grid.NewField(w, h), Conduct: grid.NewField(w, h)}
	if err := binary.Read(r, binary.LittleEndian, g.Temp.Data); err != nil {
		return nil, fmt.Errorf("%w: temperature: %v", ErrFormat, err)
	}
	if err := binary.Read(r, binary.LittleEndian, g.Conduct.Data); err != nil {
		return nil, fmt.Errorf("%w: conduct: %v", ErrFormat, err)
	}
	return g, nil
}

// Encode writes temp and conduct to w in grid file layout.
func Encode(w io.Writer, temp, conduct *grid.Field) error {
	if !temp.SameShape(conduct) {
		return fmt.Errorf("%w: temperature %dx%d, conduct %dx%d", grid.ErrShape,
			temp.Width, temp.Height, conduct.Width, conduct.Height)
	}
	header := [2]int32{int32(temp.Width), int32(temp.Height)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, temp.Data); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, conduct.Data)
}

// Read loads a grid file.
func Read(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid: %w", err)
	}
	defer f.Close()

	g, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Write stores temp and conduct at path, replacing any existing file.
func Write(path string, temp, conduct *grid.Field) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create grid: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := Encode(bw, temp, conduct); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// WriteState stores the logically current buffer of s.
func WriteState(path string, s *grid.State) error {
	return Write(path, s.Current(), s.Conduct())
}
