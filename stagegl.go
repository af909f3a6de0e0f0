package stagegl

import "math"

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float64
}

// ColorTransparent is the zero color, used as the default clear color.
var ColorTransparent = Color{}

// premultiplied returns the color with RGB scaled by alpha.
func (c Color) premultiplied() [4]float32 {
	return [4]float32{
		float32(c.R * c.A),
		float32(c.G * c.A),
		float32(c.B * c.A),
		float32(c.A),
	}
}

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.Width > 0 && r.Height > 0)
}

// Union returns the smallest Rect containing both r and o.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.Width, o.X+o.Width)
	maxY := math.Max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Margins is the extra space a filter needs around its input, in local units.
type Margins struct {
	Left, Top, Right, Bottom float64
}

// add returns the margins needed when o is applied after m.
func (m Margins) add(o Margins) Margins {
	return Margins{
		Left:   m.Left + o.Left,
		Top:    m.Top + o.Top,
		Right:  m.Right + o.Right,
		Bottom: m.Bottom + o.Bottom,
	}
}

// expand grows r by m on every side.
func (m Margins) expand(r Rect) Rect {
	return Rect{
		X:      r.X - m.Left,
		Y:      r.Y - m.Top,
		Width:  r.Width + m.Left + m.Right,
		Height: r.Height + m.Top + m.Bottom,
	}
}

// Frame-level constants shared by traversal, the texture registry and the
// renderer options.
const (
	// AlphaEpsilon is the accumulated alpha below which a node is skipped
	// entirely.
	AlphaEpsilon = 0.0035

	// DefaultMaxBatchSize is the default number of cards a batch holds.
	DefaultMaxBatchSize = 10920

	// DefaultAutoPurge is the default number of frames a texture may go
	// unused before the automatic purge releases it.
	DefaultAutoPurge = 1200

	// MinAutoPurge is the smallest accepted auto-purge age.
	MinAutoPurge = 10

	// AutoPurgeDisabled turns the automatic purge off.
	AutoPurgeDisabled = -1

	// DefaultPurgeAge is used by PurgeTextures when given a non-positive age.
	DefaultPurgeAge = 100
)

// verticesPerCard is the number of vertices written per textured quad.
const verticesPerCard = 6
