package stagegl

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to 4 float64 fields on a Node simultaneously.
// Create one via the convenience constructors and call Update(dt) each
// frame. If the target node is disposed, the group stops immediately.
//
// There is no global animation manager; users call Update themselves.
type TweenGroup struct {
	tweens [4]*gween.Tween
	count  int
	fields [4]*float64
	target *Node
	// apply, when set, receives the first tween value instead of fields.
	apply func(v float64)
	Done  bool

	// RefreshCache calls UpdateCache on the target after every update, so
	// a cached node shows the animated values.
	RefreshCache bool
}

// Update advances all tweens by dt seconds and writes values to the target
// fields.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}

	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		if g.apply != nil {
			g.apply(float64(val))
		} else {
			*g.fields[i] = float64(val)
		}
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone

	if g.RefreshCache && g.target != nil {
		g.target.UpdateCache()
	}
}

// Reset rewinds every tween to its start.
func (g *TweenGroup) Reset() {
	for i := 0; i < g.count; i++ {
		g.tweens[i].Reset()
	}
	g.Done = false
}

func newTween2(node *Node, a, b *float64, toA, toB float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 2, target: node}
	g.tweens[0] = gween.New(float32(*a), float32(toA), duration, fn)
	g.tweens[1] = gween.New(float32(*b), float32(toB), duration, fn)
	g.fields[0] = a
	g.fields[1] = b
	return g
}

func newTween1(node *Node, f *float64, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, target: node}
	g.tweens[0] = gween.New(float32(*f), float32(to), duration, fn)
	g.fields[0] = f
	return g
}

// TweenPosition animates node.X and node.Y.
func TweenPosition(node *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTween2(node, &node.X, &node.Y, toX, toY, duration, fn)
}

// TweenScale animates node.ScaleX and node.ScaleY.
func TweenScale(node *Node, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTween2(node, &node.ScaleX, &node.ScaleY, toSX, toSY, duration, fn)
}

// TweenSkew animates node.SkewX and node.SkewY, in radians.
func TweenSkew(node *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTween2(node, &node.SkewX, &node.SkewY, toX, toY, duration, fn)
}

// TweenAlpha animates node.Alpha.
func TweenAlpha(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTween1(node, &node.Alpha, to, duration, fn)
}

// TweenRotation animates node.Rotation, in radians.
func TweenRotation(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTween1(node, &node.Rotation, to, duration, fn)
}

// TweenAnimation plays a named sprite sheet animation on a sprite node over
// duration seconds. It returns nil if the node has no sheet or the sheet
// has no such animation.
func TweenAnimation(node *Node, name string, duration float32, fn ease.TweenFunc) *TweenGroup {
	if node.Sheet == nil {
		return nil
	}
	frames, ok := node.Sheet.Animation(name)
	if !ok || len(frames) == 0 {
		return nil
	}
	g := &TweenGroup{count: 1, target: node}
	g.tweens[0] = gween.New(0, float32(len(frames)), duration, fn)
	g.apply = func(v float64) {
		i := min(int(math.Floor(v)), len(frames)-1)
		node.Frame = frames[max(i, 0)]
	}
	node.Frame = frames[0]
	return g
}
