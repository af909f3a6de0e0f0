package stagegl

// Corner indices of a card. Cards are written as two triangles sharing
// the BL-TR diagonal: TL, BL, TR, BL, TR, BR.
const (
	cornerTL = iota
	cornerBL
	cornerTR
	cornerBR
)

var cardVertexOrder = [verticesPerCard]int{cornerTL, cornerBL, cornerTR, cornerBL, cornerTR, cornerBR}

// card is one textured quad in target space.
type card struct {
	pos   [4][2]float32
	uv    [4][2]float32
	slot  float32
	alpha float32
}

// fullUV covers a whole texture, v = 0 at the top.
var fullUV = [4][2]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}}

// rectUV returns corner UVs for a pixel rect within a w x h image.
func rectUV(r Rect, w, h int) [4][2]float32 {
	fw, fh := float64(w), float64(h)
	l := float32(r.X / fw)
	t := float32(r.Y / fh)
	rr := float32((r.X + r.Width) / fw)
	b := float32((r.Y + r.Height) / fh)
	return [4][2]float32{{l, t}, {l, b}, {rr, t}, {rr, b}}
}

// transformCorners maps a local rect through m to TL, BL, TR, BR.
func transformCorners(m [6]float64, r Rect) [4][2]float32 {
	var out [4][2]float32
	pts := [4][2]float64{
		{r.X, r.Y},
		{r.X, r.Y + r.Height},
		{r.X + r.Width, r.Y},
		{r.X + r.Width, r.Y + r.Height},
	}
	for i, p := range pts {
		x, y := transformPoint(m, p[0], p[1])
		out[i] = [2]float32{float32(x), float32(y)}
	}
	return out
}

// vertexBatch holds the parallel attribute arrays of the open batch. It
// never flushes itself; callers check fits before appending.
type vertexBatch struct {
	positions []float32
	uvs       []float32
	indices   []float32
	alphas    []float32

	capacity int // in vertices
	count    int // vertices written
}

func newVertexBatch(maxCards int) *vertexBatch {
	n := maxCards * verticesPerCard
	return &vertexBatch{
		positions: make([]float32, 2*n),
		uvs:       make([]float32, 2*n),
		indices:   make([]float32, n),
		alphas:    make([]float32, n),
		capacity:  n,
	}
}

// fits reports whether cards more cards can be appended.
func (b *vertexBatch) fits(cards int) bool {
	return b.count+cards*verticesPerCard <= b.capacity
}

func (b *vertexBatch) empty() bool { return b.count == 0 }

// append writes the six vertices of c.
func (b *vertexBatch) append(c *card) {
	if !b.fits(1) {
		panic("stagegl: vertex batch overflow")
	}
	for _, corner := range cardVertexOrder {
		i := b.count
		b.positions[2*i] = c.pos[corner][0]
		b.positions[2*i+1] = c.pos[corner][1]
		b.uvs[2*i] = c.uv[corner][0]
		b.uvs[2*i+1] = c.uv[corner][1]
		b.indices[i] = c.slot
		b.alphas[i] = c.alpha
		b.count++
	}
}

// draw uploads the written prefix of each array for p and issues one draw
// call covering exactly the written vertices. It returns the vertex count.
func (b *vertexBatch) draw(dev Device, p *program) int {
	n := b.count
	if n == 0 {
		return 0
	}
	bindAttrib(dev, p.attrPos, 2, b.positions[:2*n])
	bindAttrib(dev, p.attrUV, 2, b.uvs[:2*n])
	bindAttrib(dev, p.attrIndex, 1, b.indices[:n])
	bindAttrib(dev, p.attrAlpha, 1, b.alphas[:n])
	dev.DrawTriangles(0, n)
	b.count = 0
	return n
}

func bindAttrib(dev Device, loc, size int, data []float32) {
	if loc < 0 {
		return
	}
	dev.BindVertexAttrib(loc, size, data)
}
