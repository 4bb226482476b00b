// Package grid holds the temperature and conduction fields of a simulation
// and the double-buffer bookkeeping between sub-steps.
package grid

import (
	"errors"
	"fmt"
)

// ErrShape is returned when a buffer does not match the declared dimensions.
var ErrShape = errors.New("grid: shape mismatch")

// Field is a row-major width×height array of float32 values.
// Cell (x, y) lives at Data[y*Width+x].
type Field struct {
	Width, Height int
	Data          []float32
}

// NewField allocates a zeroed field.
func NewField(width, height int) *Field {
	return &Field{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// Wrap builds a field over an existing buffer without copying it.
func Wrap(width, height int, data []float32) (*Field, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrShape, width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrShape, width, height, width*height, len(data))
	}
	return &Field{Width: width, Height: height, Data: data}, nil
}

// Index returns the offset of cell (x, y) in Data.
func (f *Field) Index(x, y int) int {
	return y*f.Width + x
}

func (f *Field) At(x, y int) float32 {
	return f.Data[y*f.Width+x]
}

func (f *Field) Set(x, y int, v float32) {
	f.Data[y*f.Width+x] = v
}

// Row returns the slice backing row y.
func (f *Field) Row(y int) []float32 {
	return f.Data[y*f.Width : (y+1)*f.Width]
}

func (f *Field) Fill(v float32) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

func (f *Field) Clone() *Field {
	c := &Field{Width: f.Width, Height: f.Height, Data: make([]float32, len(f.Data))}
	copy(c.Data, f.Data)
	return c
}

// SameShape reports whether f and other have identical dimensions.
func (f *Field) SameShape(other *Field) bool {
	return f.Width == other.Width && f.Height == other.Height
}

// Stats returns the minimum, maximum and mean of the field.
func (f *Field) Stats() (lo, hi, mean float64) {
	if len(f.Data) == 0 {
		return 0, 0, 0
	}
	lo, hi = float64(f.Data[0]), float64(f.Data[0])
	var sum float64
	for _, v := range f.Data {
		x := float64(v)
		sum += x
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi, sum / float64(len(f.Data))
}
