// Package simd provides a portable width-8 float32 lane type.
//
// The operations mirror 256-bit vector instructions (load, store, broadcast,
// add, sub, mul, fused multiply-add) but are written in plain Go so the same
// kernels run on every architecture. Kernels built on F32x8 keep the memory
// access pattern of a hand-vectorized loop: eight contiguous cells are loaded,
// combined lane-wise and stored back at once.
package simd

// Lanes is the number of float32 values held by an F32x8.
const Lanes = 8

// F32x8 holds eight float32 lanes.
type F32x8 [Lanes]float32

// Load8 loads src[off:off+8]. It panics if fewer than eight values remain.
func Load8(src []float32, off int) F32x8 {
	var v F32x8
	copy(v[:], src[off:off+Lanes])
	return v
}

// Store8 writes all lanes of v to dst[off:off+8].
func Store8(dst []float32, off int, v F32x8) {
	copy(dst[off:off+Lanes], v[:])
}

// Splat returns a vector with every lane set to x.
func Splat(x float32) F32x8 {
	return F32x8{x, x, x, x, x, x, x, x}
}

func Add(a, b F32x8) F32x8 {
	var r F32x8
	for i := range r {
		r[i] = a[i] + b[i]
	}
	return r
}

func Sub(a, b F32x8) F32x8 {
	var r F32x8
	for i := range r {
		r[i] = a[i] - b[i]
	}
	return r
}

func Mul(a, b F32x8) F32x8 {
	var r F32x8
	for i := range r {
		r[i] = a[i] * b[i]
	}
	return r
}

// MulAdd returns a*b + c lane-wise.
func MulAdd(a, b, c F32x8) F32x8 {
	var r F32x8
	for i := range r {
		r[i] = a[i]*b[i] + c[i]
	}
	return r
}

// Aligned reports whether n is a whole number of vectors.
func Aligned(n int) bool {
	return n > 0 && n%Lanes == 0
}
