package stagegl

// NodeKind distinguishes rendering behavior for a Node.
type NodeKind uint8

const (
	KindContainer NodeKind = iota // group node with no visual output
	KindBitmap                    // draws an ImageSource, optionally a sub-rect
	KindSprite                    // draws one frame of a SpriteSheet
)

func (k NodeKind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindBitmap:
		return "bitmap"
	case KindSprite:
		return "sprite"
	default:
		return "unknown"
	}
}

// nodeIDCounter is a plain counter; the scene graph is single-threaded.
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// Node is the scene graph element. A single flat struct is used for every
// kind to avoid interface dispatch during traversal.
type Node struct {
	ID   uint32
	Name string
	Kind NodeKind

	Parent   *Node
	children []*Node

	// Transform (local). Rotation and skew are in radians; RegX and RegY
	// are the registration point in local units.
	X, Y         float64
	ScaleX       float64
	ScaleY       float64
	Rotation     float64
	SkewX, SkewY float64
	RegX, RegY   float64

	// Matrix, when non-nil, replaces the transform computed from the
	// fields above. Layout is [a, b, c, d, tx, ty].
	Matrix *[6]float64

	Alpha     float64
	Visible   bool
	BlendMode BlendMode
	Filters   []Filter

	// Bitmap fields (KindBitmap). SourceRect selects a sub-rectangle of
	// Source in pixels; nil draws the whole image.
	Source     ImageSource
	SourceRect *Rect

	// Sprite fields (KindSprite).
	Sheet *SpriteSheet
	Frame int

	UserData any

	cache    *Cache
	disposed bool
}

func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.ScaleX = 1
	n.ScaleY = 1
	n.Alpha = 1
	n.Visible = true
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Kind: KindContainer}
	nodeDefaults(n)
	return n
}

// NewBitmap creates a node that draws src.
func NewBitmap(name string, src ImageSource) *Node {
	n := &Node{Name: name, Kind: KindBitmap, Source: src}
	nodeDefaults(n)
	return n
}

// NewSprite creates a node that draws frame of sheet.
func NewSprite(name string, sheet *SpriteSheet, frame int) *Node {
	n := &Node{Name: name, Kind: KindSprite, Sheet: sheet, Frame: frame}
	nodeDefaults(n)
	return n
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil, this node is not a container, or child is an
// ancestor of this node.
func (n *Node) AddChild(child *Node) {
	n.checkAdd(child)
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	n.checkAdd(child)
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	if index < 0 || index > len(n.children) {
		panic("stagegl: child index out of range")
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
}

func (n *Node) checkAdd(child *Node) {
	if child == nil {
		panic("stagegl: cannot add nil child")
	}
	if n.Kind != KindContainer {
		panic("stagegl: only containers can have children")
	}
	if n.disposed || child.disposed {
		panic("stagegl: AddChild on disposed node")
	}
	if isAncestor(child, n) {
		panic("stagegl: adding child would create a cycle")
	}
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("stagegl: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
}

// RemoveChildAt removes and returns the child at the given index.
func (n *Node) RemoveChildAt(index int) *Node {
	if index < 0 || index >= len(n.children) {
		panic("stagegl: child index out of range")
	}
	child := n.children[index]
	copy(n.children[index:], n.children[index+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	child.Parent = nil
	return child
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node.
func (n *Node) RemoveChildren() {
	for i, child := range n.children {
		child.Parent = nil
		n.children[i] = nil
	}
	n.children = n.children[:0]
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// SetChildIndex moves child to a new index among its siblings.
func (n *Node) SetChildIndex(child *Node, index int) {
	if child.Parent != n {
		panic("stagegl: child's parent is not this node")
	}
	if index < 0 || index >= len(n.children) {
		panic("stagegl: child index out of range")
	}
	oldIndex := -1
	for i, c := range n.children {
		if c == child {
			oldIndex = i
			break
		}
	}
	if oldIndex == index {
		return
	}
	if oldIndex < index {
		copy(n.children[oldIndex:], n.children[oldIndex+1:index+1])
	} else {
		copy(n.children[index+1:], n.children[index:oldIndex])
	}
	n.children[index] = child
}

// Dispose detaches the node, drops its cache and marks it unusable. Its
// children are disposed too.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	for _, c := range n.children {
		c.Parent = nil
		c.Dispose()
	}
	n.children = nil
	if n.cache != nil {
		n.cache.release()
		n.cache = nil
	}
	n.disposed = true
}

// IsDisposed reports whether Dispose has been called.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// isAncestor reports whether candidate is n or one of n's ancestors.
func isAncestor(candidate, n *Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// --- Render style ---

// renderStyle is the closed set of ways traversal draws a node.
type renderStyle uint8

const (
	styleContainer renderStyle = iota
	styleBitmap
	styleSpriteFrame
	styleCachedSurface
)

// renderStyle derives how the node is drawn on this visit. ignoreCache is
// set only for the node whose cache is being rendered.
func (n *Node) renderStyle(ignoreCache bool) renderStyle {
	if !ignoreCache && n.cache != nil && n.cache.ready() {
		return styleCachedSurface
	}
	switch n.Kind {
	case KindBitmap:
		return styleBitmap
	case KindSprite:
		return styleSpriteFrame
	default:
		return styleContainer
	}
}

// contentRect returns the node's own drawable rectangle in local units,
// before the node transform, and whether it has one.
func (n *Node) contentRect() (Rect, bool) {
	switch n.Kind {
	case KindBitmap:
		if n.Source == nil {
			return Rect{}, false
		}
		if n.SourceRect != nil {
			return Rect{Width: n.SourceRect.Width, Height: n.SourceRect.Height}, true
		}
		w, h := n.Source.Size()
		return Rect{Width: float64(w), Height: float64(h)}, w > 0 && h > 0
	case KindSprite:
		f, ok := n.Sheet.frame(n.Frame)
		if !ok {
			return Rect{}, false
		}
		return Rect{X: -f.RegX, Y: -f.RegY, Width: float64(f.Width), Height: float64(f.Height)}, true
	}
	return Rect{}, false
}
