package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The expected rectangles in these tests were captured from manually inspected
// sample documents containing a 100x100 image placed with the given matrices.
// The box covers the lower strip of the image, corners (0,50) to (100,60).
// Captured matrices carry single-precision rounding, so the rotated cases
// compare with a loose tolerance.

func TestToGlobalSpace_TranslatedImage(t *testing.T) {
	box := Rect{X0: 0, Y0: 50, X1: 100, Y1: 60}
	dims := Point{X: 100, Y: 100}
	placement := Matrix{75.0, 0.0, -0.0, 75.0, 73.5, 88.0462646484375}

	got := ToGlobalSpace(box, dims, placement)

	assert.Equal(t, Rect{73.5, 125.5462646484375, 148.5, 133.0462646484375}, got)
}

func TestToGlobalSpace_ScaledImage(t *testing.T) {
	box := Rect{X0: 0, Y0: 50, X1: 100, Y1: 60}
	dims := Point{X: 100, Y: 100}
	placement := Matrix{37.5, 0.0, -0.0, 37.5, 73.5, 88.0462646484375}

	got := ToGlobalSpace(box, dims, placement)

	assert.Equal(t, Rect{73.5, 106.7962646484375, 111.0, 110.5462646484375}, got)
}

func TestToGlobalSpace_NonUniformYScale(t *testing.T) {
	box := Rect{X0: 0, Y0: 50, X1: 100, Y1: 60}
	dims := Point{X: 100, Y: 100}
	placement := Matrix{75.0, 0.0, -0.0, 37.5, 73.5, 88.0462646484375}

	got := ToGlobalSpace(box, dims, placement)

	assert.Equal(t, Rect{73.5, 106.7962646484375, 148.5, 110.5462646484375}, got)
}

func TestToGlobalSpace_RotatedImage(t *testing.T) {
	box := Rect{X0: 0, Y0: 50, X1: 100, Y1: 60}
	dims := Point{X: 100, Y: 100}
	placement := Matrix{
		53.03301239013672,
		53.03300476074219,
		-53.03300476074219,
		53.03301239013672,
		126.53300476074219,
		88.04627227783203,
	}

	got := ToGlobalSpace(box, dims, placement)

	want := Rect{94.71320343017578, 114.56277465820312, 153.0495147705078, 172.89907836914062}
	assert.InDelta(t, want.X0, got.X0, 1e-4)
	assert.InDelta(t, want.Y0, got.Y0, 1e-4)
	assert.InDelta(t, want.X1, got.X1, 1e-4)
	assert.InDelta(t, want.Y1, got.Y1, 1e-4)
}

func TestToGlobalSpace_ScaledRotatedImage(t *testing.T) {
	box := Rect{X0: 0, Y0: 50, X1: 100, Y1: 60}
	dims := Point{X: 100, Y: 100}
	placement := Matrix{
		26.51650619506836,
		26.516502380371094,
		-26.516502380371094,
		26.51650619506836,
		100.0165023803711,
		88.0462646484375,
	}

	got := ToGlobalSpace(box, dims, placement)

	want := Rect{84.10659790039062, 101.30451965332031, 113.2747573852539, 130.47267150878906}
	assert.InDelta(t, want.X0, got.X0, 1e-4)
	assert.InDelta(t, want.Y0, got.Y0, 1e-4)
	assert.InDelta(t, want.X1, got.X1, 1e-4)
	assert.InDelta(t, want.Y1, got.Y1, 1e-4)
}

func TestMatrix_Multiply(t *testing.T) {
	m := Scale(2, 3).Multiply(Translate(10, 20))
	p := m.Transform(Point{X: 1, Y: 1})
	assert.Equal(t, Point{X: 12, Y: 23}, p)
}

func TestMatrix_RotateQuarterTurn(t *testing.T) {
	p := Rotate(math.Pi / 2).Transform(Point{X: 1, Y: 0})
	assert.InDelta(t, 0, p.X, 1e-12)
	assert.InDelta(t, 1, p.Y, 1e-12)
}

func TestRect_Helpers(t *testing.T) {
	r := NewRect(10, 10, 30, 20)
	assert.Equal(t, 30.0, r.Width())
	assert.Equal(t, 20.0, r.Height())
	assert.True(t, r.Contains(Point{X: 15, Y: 15}))
	assert.False(t, r.Contains(Point{X: 5, Y: 15}))
	assert.True(t, r.Intersects(NewRect(35, 25, 10, 10)))
	assert.False(t, r.Intersects(NewRect(100, 100, 5, 5)))

	e := r.Expand(1, 2)
	assert.Equal(t, Rect{9, 8, 41, 32}, e)
}
