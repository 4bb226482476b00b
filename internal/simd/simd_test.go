package simd

import "testing"

func TestLoadStoreRoundTrip(t *testing.T) {
	src := make([]float32, 20)
	for i := range src {
		src[i] = float32(i)
	}

	v := Load8(src, 5)
	for i := 0; i < Lanes; i++ {
		if v[i] != float32(5+i) {
			t.Fatalf("lane %d: expected %v, got %v", i, float32(5+i), v[i])
		}
	}

	dst := make([]float32, 20)
	Store8(dst, 10, v)
	for i := 0; i < 20; i++ {
		want := float32(0)
		if i >= 10 && i < 18 {
			want = float32(i - 5)
		}
		if dst[i] != want {
			t.Errorf("dst[%d]: expected %v, got %v", i, want, dst[i])
		}
	}
}

func TestLoadPanicsOnShortSlice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic loading past the end of the slice")
		}
	}()
	Load8(make([]float32, 10), 3)
}

func TestLaneOps(t *testing.T) {
	a := F32x8{1, 2, 3, 4, 5, 6, 7, 8}
	b := Splat(2)

	tests := []struct {
		name string
		got  F32x8
		want func(x float32) float32
	}{
		{"add", Add(a, b), func(x float32) float32 { return x + 2 }},
		{"sub", Sub(a, b), func(x float32) float32 { return x - 2 }},
		{"mul", Mul(a, b), func(x float32) float32 { return x * 2 }},
		{"muladd", MulAdd(a, b, a), func(x float32) float32 { return x*2 + x }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range a {
				if want := tt.want(a[i]); tt.got[i] != want {
					t.Errorf("lane %d: expected %v, got %v", i, want, tt.got[i])
				}
			}
		})
	}
}

func TestAligned(t *testing.T) {
	for n, want := range map[int]bool{0: false, 7: false, 8: true, 12: false, 256: true, 510: false} {
		if got := Aligned(n); got != want {
			t.Errorf("Aligned(%d) = %v, expected %v", n, got, want)
		}
	}
}
