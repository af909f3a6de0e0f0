package stagegl

import "math"

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// computeLocalTransform computes the local affine matrix from the node's
// transform properties, or returns the explicit Matrix when set.
// Returns [a, b, c, d, tx, ty].
//
// Composition order:
//
//	Translate(-RegX, -RegY) -> Scale -> Skew -> Rotate -> Translate(X, Y)
func computeLocalTransform(n *Node) [6]float64 {
	if n.Matrix != nil {
		return *n.Matrix
	}

	sx := n.ScaleX
	sy := n.ScaleY

	sin, cos := math.Sincos(n.Rotation)

	var tanSkewX, tanSkewY float64
	if n.SkewX != 0 {
		tanSkewX = math.Tan(n.SkewX)
	}
	if n.SkewY != 0 {
		tanSkewY = math.Tan(n.SkewY)
	}

	// After Scale * Translate(-reg) and Skew:
	a := sx
	b := tanSkewY * sx
	c := tanSkewX * sy
	d := sy

	px := n.RegX
	py := n.RegY
	preTx := -px*sx - tanSkewX*py*sy
	preTy := -tanSkewY*px*sx - py*sy

	// After Rotate:
	ra := cos*a - sin*b
	rb := sin*a + cos*b
	rc := cos*c - sin*d
	rd := sin*c + cos*d
	rtx := cos*preTx - sin*preTy
	rty := sin*preTx + cos*preTy

	return [6]float64{ra, rb, rc, rd, rtx + n.X, rty + n.Y}
}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular.
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// transformRect returns the axis-aligned bounds of r after applying m.
func transformRect(m [6]float64, r Rect) Rect {
	x0, y0 := transformPoint(m, r.X, r.Y)
	x1, y1 := transformPoint(m, r.X+r.Width, r.Y)
	x2, y2 := transformPoint(m, r.X, r.Y+r.Height)
	x3, y3 := transformPoint(m, r.X+r.Width, r.Y+r.Height)
	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// --- Transform property setters ---

// SetPosition sets the node's local X and Y.
func (n *Node) SetPosition(x, y float64) {
	n.X = x
	n.Y = y
}

// SetScale sets the node's ScaleX and ScaleY.
func (n *Node) SetScale(sx, sy float64) {
	n.ScaleX = sx
	n.ScaleY = sy
}

// SetRegistration sets the point, in local units, the node rotates and
// scales around.
func (n *Node) SetRegistration(rx, ry float64) {
	n.RegX = rx
	n.RegY = ry
}

// --- Coordinate conversion ---

// ConcatenatedMatrix returns the node's transform combined with every
// ancestor's.
func (n *Node) ConcatenatedMatrix() [6]float64 {
	m := computeLocalTransform(n)
	for p := n.Parent; p != nil; p = p.Parent {
		m = multiplyAffine(computeLocalTransform(p), m)
	}
	return m
}

// GlobalToLocal converts a root-space point to this node's local space.
func (n *Node) GlobalToLocal(wx, wy float64) (lx, ly float64) {
	return transformPoint(invertAffine(n.ConcatenatedMatrix()), wx, wy)
}

// LocalToGlobal converts a local-space point to root space.
func (n *Node) LocalToGlobal(lx, ly float64) (wx, wy float64) {
	return transformPoint(n.ConcatenatedMatrix(), lx, ly)
}

// --- Bounds ---

// Bounds returns the rectangle enclosing the node's content and all its
// descendants in the node's local space, before its own transform. The
// second result is false when nothing is drawable.
func (n *Node) Bounds() (Rect, bool) {
	var r Rect
	first := true
	boundsWalk(n, identityTransform, &r, &first)
	return r, !first
}

// boundsWalk recursively accumulates bounds.
func boundsWalk(n *Node, m [6]float64, bounds *Rect, first *bool) {
	if !n.Visible {
		return
	}
	if rect, ok := n.contentRect(); ok {
		aabb := transformRect(m, rect)
		if *first {
			*bounds = aabb
			*first = false
		} else {
			*bounds = bounds.Union(aabb)
		}
	}
	for _, child := range n.children {
		boundsWalk(child, multiplyAffine(m, computeLocalTransform(child)), bounds, first)
	}
}
