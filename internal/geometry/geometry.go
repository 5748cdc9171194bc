// Package geometry provides the rectangle and affine matrix math used to map
// bounding boxes detected in an embedded image's pixel space into the page
// space of the document that displays the image.
package geometry

import "math"

// Point is a position in page or image space.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle: top-left (X0, Y0), bottom-right (X1, Y1).
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// NewRect builds a Rect from a top-left corner plus width and height.
func NewRect(x, y, w, h float64) Rect {
	return Rect{X0: x, Y0: y, X1: x + w, Y1: y + h}
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Contains reports whether the point lies inside or on the rectangle edge.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

// Intersects reports whether the two rectangles overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Expand grows the rectangle by dx on the left/right and dy on the top/bottom.
func (r Rect) Expand(dx, dy float64) Rect {
	return Rect{X0: r.X0 - dx, Y0: r.Y0 - dy, X1: r.X1 + dx, Y1: r.Y1 + dy}
}

// Matrix is a 6-parameter affine transform (a, b, c, d, e, f):
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
//
// This is the row-vector convention used by PDF content streams and image
// placement matrices.
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

func Rotate(angle float64) Matrix {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// Multiply returns m followed by o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Transform applies the matrix to a point.
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// TransformRect applies the matrix to all four corners of r and returns the
// bounding rectangle of the result. Transforming only the min/max corner pair
// would be wrong under rotation.
func (m Matrix) TransformRect(r Rect) Rect {
	corners := [4]Point{
		{r.X0, r.Y0},
		{r.X1, r.Y0},
		{r.X0, r.Y1},
		{r.X1, r.Y1},
	}
	out := Rect{
		X0: math.Inf(1), Y0: math.Inf(1),
		X1: math.Inf(-1), Y1: math.Inf(-1),
	}
	for _, c := range corners {
		p := m.Transform(c)
		out.X0 = math.Min(out.X0, p.X)
		out.Y0 = math.Min(out.Y0, p.Y)
		out.X1 = math.Max(out.X1, p.X)
		out.Y1 = math.Max(out.Y1, p.Y)
	}
	return out
}

// ToGlobalSpace maps a bounding box in an image's local pixel space into page
// space. The placement matrix positions the unit square onto the page, so the
// box is first normalised against the image dimensions and then transformed.
func ToGlobalSpace(box Rect, imageDims Point, placement Matrix) Rect {
	normalised := Rect{
		X0: box.X0 / imageDims.X,
		Y0: box.Y0 / imageDims.Y,
		X1: box.X1 / imageDims.X,
		Y1: box.Y1 / imageDims.Y,
	}
	return placement.TransformRect(normalised)
}
