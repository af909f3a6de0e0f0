package stagegl

import (
	"fmt"
	"log/slog"
	"time"
)

// Renderer draws a display tree through a Device, batching cards into as
// few draw calls as the texture slots and blend modes allow. A Renderer is
// not safe for concurrent use; every call must come from the goroutine that
// owns the device.
type Renderer struct {
	dev  Device
	caps Caps
	opts Options
	log  *slog.Logger

	textures *textureRegistry
	shaders  *shaderCache
	targets  *renderTargetManager
	ctx      *batchContext

	// ring holds the offscreen output, concat and temp buffers of the
	// default target. Unused with DirectDraw.
	ring          roleRing
	width, height int

	frameCount int
	stats      FrameStats
	lastRoot   *Node

	released bool
	// cacheControlled renderers draw their root's cache and compose it
	// onto the default framebuffer.
	cacheControlled bool

	warnedCover map[BlendMode]bool
	caches      map[*Cache]struct{}
}

// New returns a renderer drawing through dev. It compiles the batch program,
// halving the sampler count until it compiles, and creates the placeholder
// texture. A nil dev returns ErrNoDevice; callers fall back to a raster
// renderer.
func New(dev Device, opts Options) (*Renderer, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	opts = opts.normalize()
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	caps := dev.Caps()
	samplers := caps.MaxTextureUnits
	if opts.MaxSamplers > 0 && opts.MaxSamplers < samplers {
		samplers = opts.MaxSamplers
	}
	if samplers < 1 {
		return nil, fmt.Errorf("%w: device reports %d texture units", ErrNoDevice, caps.MaxTextureUnits)
	}

	shaders, err := newShaderCache(dev, caps.Dialect, log, samplers)
	if err != nil {
		return nil, err
	}
	textures, err := newTextureRegistry(dev, log, shaders.samplers, opts.Antialias)
	if err != nil {
		shaders.release()
		return nil, err
	}

	r := &Renderer{
		dev:         dev,
		caps:        caps,
		opts:        opts,
		log:         log,
		textures:    textures,
		shaders:     shaders,
		targets:     &renderTargetManager{dev: dev, maxSize: caps.MaxTextureSize},
		ring:        newRoleRing(),
		warnedCover: make(map[BlendMode]bool),
		caches:      make(map[*Cache]struct{}),
	}
	r.ctx = newBatchContext(r, opts.MaxBatchSize)
	r.stats.reset()

	log.Info("stagegl: renderer ready",
		"samplers", shaders.samplers,
		"maxTextureUnits", caps.MaxTextureUnits,
		"maxTextureSize", caps.MaxTextureSize,
		"directDraw", opts.DirectDraw)
	return r, nil
}

// NewCacheRenderer returns a renderer that draws only its root's cache and
// composes the finished cache onto the default framebuffer. The root is
// cached with SetCacheAuto(1) if it has no cache of its own. Without a
// viewport the cache size is used.
func NewCacheRenderer(dev Device, opts Options) (*Renderer, error) {
	r, err := New(dev, opts)
	if err != nil {
		return nil, err
	}
	r.cacheControlled = true
	return r, nil
}

// ResizeViewport sets the size of the default framebuffer. The offscreen
// buffers follow; their contents are discarded.
func (r *Renderer) ResizeViewport(w, h int) {
	r.checkUsable()
	if w <= 0 || h <= 0 {
		panic(fmt.Sprintf("stagegl: invalid viewport %dx%d", w, h))
	}
	if w == r.width && h == r.height {
		return
	}
	r.width, r.height = w, h
	for _, rt := range r.ring.slots {
		if rt != nil {
			r.textures.unbind(rt.tex)
		}
	}
	if err := r.ring.resize(r.targets, w, h); err != nil {
		r.log.Warn("stagegl: resizing offscreen buffers failed", "width", w, "height", h, "err", err)
		r.ring.release(r.targets)
	}
}

// Viewport returns the default framebuffer size.
func (r *Renderer) Viewport() (int, int) { return r.width, r.height }

// Caps returns the capabilities of the renderer's device.
func (r *Renderer) Caps() Caps { return r.caps }

// Samplers returns the number of texture slots the batch program uses.
func (r *Renderer) Samplers() int { return r.shaders.samplers }

// RenderFrame draws root and its subtree. Panics if the renderer was
// released or has no viewport.
func (r *Renderer) RenderFrame(root *Node) {
	r.checkUsable()
	if root == nil {
		panic("stagegl: RenderFrame with nil root")
	}
	if !r.cacheControlled && (r.width <= 0 || r.height <= 0) {
		panic("stagegl: RenderFrame before ResizeViewport")
	}

	start := time.Now()
	r.stats.reset()
	r.frameCount++
	r.lastRoot = root
	r.textures.beginFrame()

	if r.cacheControlled {
		r.renderCacheFrame(root)
	} else {
		r.renderStage(root)
	}

	r.textures.endFrame()
	if age := r.opts.AutoPurge; age != AutoPurgeDisabled && r.frameCount%(age/2) == 0 {
		r.textures.purge(age)
	}
	r.stats.Textures = r.textures.count()
	r.stats.Duration = time.Since(start)
	if r.opts.Debug {
		r.log.Debug("stagegl: frame", "frame", r.frameCount, "stats", r.stats.logValue())
	}
	if r.opts.Observer != nil {
		r.opts.Observer.FrameRendered(r.frameCount, r.stats.clone())
	}
}

// renderStage draws root into the offscreen output and copies the result
// to the default framebuffer. With DirectDraw, or when the output buffer
// cannot be created, it draws straight into the default framebuffer.
func (r *Renderer) renderStage(root *Node) {
	s := batchState{width: r.width, height: r.height, mode: BlendSourceOver}
	if !r.opts.DirectDraw {
		if _, err := r.ring.ensure(r.targets, roleOutput, r.width, r.height); err != nil {
			r.log.Warn("stagegl: offscreen output unavailable, drawing direct", "err", err)
		} else {
			s.ring = &r.ring
		}
	}

	r.ctx.begin(s)
	r.dev.Clear(r.clearColor())
	r.visit(root, identityTransform, 1, BlendSourceOver, nil)
	r.ctx.flush(reasonDrawFinish)

	if s.ring != nil {
		r.blit(r.ring.get(roleOutput), r.width, r.height)
	}
}

// renderCacheFrame rebuilds the root's cache and composes it onto the
// default framebuffer.
func (r *Renderer) renderCacheFrame(root *Node) {
	c := root.cache
	if c == nil || c.auto {
		if !root.SetCacheAuto(1) {
			return
		}
		c = root.cache
	}
	c.stale = true
	c.failed = false

	r.ctx.begin(batchState{width: max(r.width, 1), height: max(r.height, 1), mode: BlendSourceOver})
	if !r.buildCache(root, c, reasonCacheDraw) {
		return
	}
	w, h := r.width, r.height
	if w <= 0 || h <= 0 {
		w, h = c.drawW, c.drawH
	}
	r.ctx.begin(batchState{width: w, height: h, mode: BlendSourceOver})
	r.dev.Clear(r.clearColor())
	r.blit(c.final, w, h)
}

// blit copies rt over the default framebuffer with blending disabled.
func (r *Renderer) blit(rt *RenderTarget, w, h int) {
	p, err := r.shaders.copyProgram()
	if err != nil {
		r.log.Warn("stagegl: cannot present frame", "err", err)
		return
	}
	r.ctx.pass(p, nil, w, h, fullUV, BlendState{Disable: true}, []*Texture{rt.tex}, nil)
}

// clearColor returns the clear color, opaque unless the renderer is
// transparent.
func (r *Renderer) clearColor() Color {
	c := r.opts.ClearColor
	if !r.opts.Transparent {
		c.A = 1
	}
	return c
}

// checkUsable panics when the renderer was released.
func (r *Renderer) checkUsable() {
	if r == nil || r.released {
		panic("stagegl: renderer used after Release")
	}
}

// warnCoverFallback logs, once per mode, that a cover blend mode was drawn
// as source-over.
func (r *Renderer) warnCoverFallback(mode BlendMode) {
	if r.warnedCover[mode] {
		return
	}
	r.warnedCover[mode] = true
	r.log.Warn("stagegl: blend mode needs an offscreen output, drawing source-over", "mode", mode.String())
}

// forgetCache frees the render targets of c.
func (r *Renderer) forgetCache(c *Cache) {
	for _, rt := range c.ring.slots {
		if rt != nil {
			r.textures.unbind(rt.tex)
		}
	}
	c.ring.release(r.targets)
	delete(r.caches, c)
	for _, f := range filterChain(c.node.Filters) {
		r.shaders.forgetFilter(f)
	}
	c.owner = nil
}

// ReleaseTexture releases the textures of n and its subtree, along with any
// caches. In safe mode a texture shared with sources still attached
// elsewhere is kept.
func (r *Renderer) ReleaseTexture(n *Node, safe bool) {
	r.checkUsable()
	if n == nil {
		return
	}
	if n.cache != nil && n.cache.owner == r {
		n.Uncache()
	}
	switch n.Kind {
	case KindBitmap:
		if n.Source != nil {
			r.textures.release(n.Source, safe)
		}
	case KindSprite:
		if n.Sheet != nil {
			for _, img := range n.Sheet.Images {
				r.textures.release(img, safe)
			}
		}
	}
	for _, c := range n.children {
		r.ReleaseTexture(c, safe)
	}
}

// ReleaseSource releases the texture of a single source.
func (r *Renderer) ReleaseSource(src ImageSource, safe bool) {
	r.checkUsable()
	if src == nil {
		return
	}
	r.textures.release(src, safe)
}

// PurgeTextures releases every texture none of whose sources was drawn in
// the last maxAge frames. A non-positive age uses DefaultPurgeAge. Called
// during a frame, the purge runs when the frame ends. It returns the number
// of textures still registered.
func (r *Renderer) PurgeTextures(maxAge int) int {
	r.checkUsable()
	return r.textures.purge(maxAge)
}

// ProtectTextureSlot reserves a sampler slot so the batcher never assigns
// it, or frees it again. Cover and filter passes skip protected units too.
// Panics on an out-of-range slot.
func (r *Renderer) ProtectTextureSlot(slot int, lock bool) {
	r.checkUsable()
	r.textures.protect(slot, lock)
}

// Stats returns the counters of the last frame.
func (r *Renderer) Stats() FrameStats {
	return r.stats.clone()
}

// Frame returns the number of frames rendered.
func (r *Renderer) Frame() int { return r.frameCount }

// Release destroys every device resource the renderer created. The
// renderer panics on further use.
func (r *Renderer) Release() {
	if r.released {
		return
	}
	for c := range r.caches {
		if c.node != nil && c.node.cache == c {
			c.node.cache = nil
		}
		c.ring.release(r.targets)
		c.owner = nil
		c.final = nil
	}
	clear(r.caches)
	r.ring.release(r.targets)
	r.textures.releaseAll()
	r.shaders.release()
	r.lastRoot = nil
	r.released = true
	r.log.Info("stagegl: renderer released", "frames", r.frameCount)
}
