package stagegl

// buildCache renders n's subtree into c and runs the filter chain:
// Idle -> Sizing -> Rendering -> FilterPass* -> Finalized. Any resource
// failure marks the cache failed, and the caller draws the subtree
// uncached.
func (r *Renderer) buildCache(n *Node, c *Cache, reason flushReason) bool {
	c.owner = r
	r.caches[c] = struct{}{}

	filters := filterChain(n.Filters)
	if !c.size(filters) {
		return r.failCache(c, "empty cache bounds", nil)
	}
	w, h := c.drawW, c.drawH
	if _, err := c.ring.ensure(r.targets, roleOutput, w, h); err != nil {
		return r.failCache(c, "cache output buffer", err)
	}
	if len(filters) > 0 {
		if _, err := c.ring.ensure(r.targets, roleConcat, w, h); err != nil {
			return r.failCache(c, "cache filter buffer", err)
		}
	}

	c.state = CacheRendering
	r.ctx.push()
	r.ctx.enter(batchState{ring: &c.ring, width: w, height: h, mode: BlendSourceOver}, reason)
	r.dev.Clear(ColorTransparent)
	r.visitContent(n, c.baseTransform(), 1, BlendSourceOver, n)
	r.ctx.flush(reasonCacheDraw)

	for _, f := range filters {
		c.state = CacheFilterPass
		if !r.applyFilter(c, f) {
			r.ctx.pop(reasonCacheDraw)
			return r.failCache(c, "filter pass", nil)
		}
	}
	r.ctx.pop(reasonCacheDraw)

	c.final = c.ring.get(roleOutput)
	c.state = CacheFinalized
	c.stale = false
	c.failed = false
	r.stats.CacheBuilds++
	return true
}

func (r *Renderer) failCache(c *Cache, what string, err error) bool {
	if err != nil {
		r.log.Warn("stagegl: caching failed, drawing uncached", "node", c.node.Name, "stage", what, "err", err)
	} else {
		r.log.Warn("stagegl: caching failed, drawing uncached", "node", c.node.Name, "stage", what)
	}
	c.failed = true
	c.state = CacheIdle
	return false
}

// applyFilter runs one filter pass from the cache's output into its concat
// buffer and swaps the two. Filters whose program cannot be built fall back
// to their CPU implementation; filters with neither are skipped.
func (r *Renderer) applyFilter(c *Cache, f Filter) bool {
	src := c.ring.get(roleOutput)
	dst := c.ring.get(roleConcat)
	w, h := c.drawW, c.drawH

	prog, err := r.shaders.filterProgram(f)
	switch {
	case err == nil:
		r.ctx.pass(prog, dst, w, h, fullUV, BlendState{Disable: true}, []*Texture{src.tex}, func(p *program) {
			if us, ok := f.(UniformSetter); ok {
				us.SetUniforms(&Uniforms{dev: r.dev, prog: p, Width: w, Height: h, Scale: c.scale})
			}
		})
	default:
		pf, ok := f.(PixelFilter)
		if !ok {
			r.log.Warn("stagegl: filter has no usable program, skipping", "filter", f, "err", err)
			return true
		}
		pix := make([]byte, 4*w*h)
		if err := r.readTargetInto(src, pix); err != nil {
			r.log.Warn("stagegl: filter readback failed", "err", err)
			return false
		}
		pf.ApplyPixels(pix, w, h, c.scale)
		if err := r.dev.UploadTexture(dst.tex.id, w, h, pix); err != nil {
			r.log.Warn("stagegl: filter upload failed", "err", err)
			return false
		}
	}
	c.ring.swap(roleOutput, roleConcat)
	r.stats.FilterPasses++
	return true
}
