package stagegl

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"
)

// CacheState is the progress of a cache through its build.
type CacheState uint8

const (
	CacheIdle CacheState = iota
	CacheSizing
	CacheRendering
	CacheFilterPass
	CacheFinalized
)

func (s CacheState) String() string {
	switch s {
	case CacheIdle:
		return "idle"
	case CacheSizing:
		return "sizing"
	case CacheRendering:
		return "rendering"
	case CacheFilterPass:
		return "filterPass"
	case CacheFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Cache renders a node's subtree, and its filters, into a texture that is
// then drawn as a single card. A cache belongs to the first renderer that
// draws it; other renderers draw the node uncached.
type Cache struct {
	node *Node

	// bounds is the cached region in the node's local space, before
	// filter margins.
	bounds Rect
	scale  float64

	// expanded is bounds grown by the filter margins.
	expanded     Rect
	drawW, drawH int

	generation int
	stale      bool
	// auto caches are created for filtered nodes without a cache and are
	// rebuilt every frame.
	auto   bool
	failed bool
	state  CacheState

	owner         *Renderer
	warnedForeign bool
	ring          roleRing
	final *RenderTarget

	snapshot    string
	snapshotGen int
}

// SetCache caches the region r of the node's local space at the given
// resolution scale. Calling it again replaces the region and marks the cache
// for a rebuild.
func (n *Node) SetCache(r Rect, scale float64) {
	if scale <= 0 {
		scale = 1
	}
	if n.cache == nil || n.cache.auto {
		if n.cache != nil {
			n.cache.release()
		}
		n.cache = &Cache{node: n, ring: newRoleRing(), snapshotGen: -1}
	}
	c := n.cache
	c.bounds = r
	c.scale = scale
	c.failed = false
	c.generation++
	c.stale = true
}

// SetCacheAuto caches the node using its current Bounds.
func (n *Node) SetCacheAuto(scale float64) bool {
	b, ok := n.Bounds()
	if !ok {
		return false
	}
	n.SetCache(b, scale)
	return true
}

// UpdateCache marks the cache for a rebuild on its next draw and starts a
// new generation. No-op without a cache.
func (n *Node) UpdateCache() {
	if n.cache == nil || n.cache.auto {
		return
	}
	n.cache.generation++
	n.cache.stale = true
	n.cache.failed = false
}

// Uncache drops the node's cache and frees its render targets.
func (n *Node) Uncache() {
	if n.cache == nil {
		return
	}
	n.cache.release()
	n.cache = nil
}

// Cache returns the node's cache, or nil.
func (n *Node) Cache() *Cache {
	if n.cache == nil || n.cache.auto {
		return nil
	}
	return n.cache
}

// Generation increments on every UpdateCache.
func (c *Cache) Generation() int { return c.generation }

// State returns the build state.
func (c *Cache) State() CacheState { return c.state }

// Bounds returns the cached region including filter margins.
func (c *Cache) Bounds() Rect {
	if c.state == CacheFinalized {
		return c.expanded
	}
	return c.bounds
}

// Scale returns the resolution scale.
func (c *Cache) Scale() float64 { return c.scale }

// ready reports whether traversal should draw the cache surface.
func (c *Cache) ready() bool {
	return !c.failed
}

// surfaceRect returns the rect the cache surface covers in node space.
func (c *Cache) surfaceRect() Rect {
	return Rect{
		X:      c.expanded.X,
		Y:      c.expanded.Y,
		Width:  float64(c.drawW) / c.scale,
		Height: float64(c.drawH) / c.scale,
	}
}

// size computes the expanded bounds and pixel size for the filter chain.
func (c *Cache) size(filters []Filter) bool {
	c.state = CacheSizing
	c.expanded = filterChainMargins(filters).expand(c.bounds)
	c.drawW = int(math.Ceil(c.expanded.Width * c.scale))
	c.drawH = int(math.Ceil(c.expanded.Height * c.scale))
	return c.drawW > 0 && c.drawH > 0
}

// baseTransform maps node space into cache pixels.
func (c *Cache) baseTransform() [6]float64 {
	s := c.scale
	return [6]float64{s, 0, 0, s, -c.expanded.X * s, -c.expanded.Y * s}
}

// release frees the cache's render targets.
func (c *Cache) release() {
	if c.owner != nil {
		c.owner.forgetCache(c)
	}
	c.final = nil
	c.state = CacheIdle
}

// DataURL returns the cache surface as a PNG data URL. The result is
// memoized per generation.
func (c *Cache) DataURL() (string, error) {
	if c.snapshotGen == c.generation && c.snapshot != "" {
		return c.snapshot, nil
	}
	if c.owner == nil {
		return "", fmt.Errorf("stagegl: cache of %q has not been drawn", c.node.Name)
	}
	img, err := c.owner.readCache(c)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("stagegl: encode cache: %w", err)
	}
	c.snapshot = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	c.snapshotGen = c.generation
	return c.snapshot, nil
}

// readCache rebuilds c if stale and reads its surface back.
func (r *Renderer) readCache(c *Cache) (*image.NRGBA, error) {
	r.checkUsable()
	if c.stale || c.final == nil {
		r.ctx.begin(batchState{width: r.width, height: r.height, mode: BlendSourceOver})
		ok := r.buildCache(c.node, c, reasonCacheDraw)
		r.ctx.flush(reasonDrawFinish)
		if !ok {
			return nil, fmt.Errorf("stagegl: cache of %q could not be built", c.node.Name)
		}
	}
	return r.readTarget(c.final)
}
