package stagegl

// visit draws n and its subtree. parent is the accumulated matrix of n's
// parent in target space, parentAlpha its accumulated alpha and inherited
// the blend mode children of the parent draw with. ignore is the node whose
// cache is being rendered; its own cache and filters are skipped.
func (r *Renderer) visit(n *Node, parent [6]float64, parentAlpha float64, inherited BlendMode, ignore *Node) {
	if !n.Visible {
		return
	}
	alpha := parentAlpha * n.Alpha
	if !(alpha >= AlphaEpsilon) {
		return
	}
	m := multiplyAffine(parent, computeLocalTransform(n))
	mode := n.BlendMode.resolve(inherited)

	if n.cache != nil && n.cache.auto && len(n.Filters) == 0 {
		n.Uncache()
	}
	if n != ignore && len(n.Filters) > 0 && (n.cache == nil || n.cache.auto) {
		if n.cache == nil {
			n.cache = &Cache{node: n, auto: true, scale: 1, ring: newRoleRing(), snapshotGen: -1}
		}
		if b, ok := n.Bounds(); ok {
			n.cache.bounds = b
			n.cache.failed = false
			n.cache.stale = true
		} else {
			n.cache.failed = true
		}
	}

	if n.renderStyle(n == ignore) == styleCachedSurface {
		c := n.cache
		if c.owner != nil && c.owner != r {
			if !c.warnedForeign {
				c.warnedForeign = true
				r.log.Warn("stagegl: cache belongs to another renderer, drawing uncached", "node", n.Name)
			}
		} else {
			if c.stale || c.final == nil {
				reason := reasonCacheDraw
				if c.auto {
					reason = reasonCachelessFilter
				}
				r.buildCache(n, c, reason)
			}
			if !c.failed {
				r.ctx.drawLeaf(c.final.tex, transformCorners(m, c.surfaceRect()), fullUV, alpha, mode)
				return
			}
		}
	}

	r.visitContent(n, m, alpha, mode, ignore)
}

// visitContent draws the node's own content with matrix m and then its
// children, without consulting the node's cache.
func (r *Renderer) visitContent(n *Node, m [6]float64, alpha float64, mode BlendMode, ignore *Node) {
	switch n.renderStyle(true) {
	case styleBitmap:
		r.drawBitmap(n, m, alpha, mode)
	case styleSpriteFrame:
		r.drawSpriteFrame(n, m, alpha, mode)
	case styleContainer:
		if len(n.children) == 0 {
			return
		}
		if r.opts.Debug {
			r.debugCheckNode(n)
		}
		isolate := n.BlendMode != BlendInherit && !mode.IsCover() && mode != r.ctx.state.mode
		if isolate {
			r.ctx.push()
			r.ctx.setMode(mode, reasonBlendChange)
		}
		for _, child := range n.children {
			r.visit(child, m, alpha, mode, ignore)
		}
		if isolate {
			r.ctx.pop(reasonBlendChange)
		}
	}
}

func (r *Renderer) drawBitmap(n *Node, m [6]float64, alpha float64, mode BlendMode) {
	rect, ok := n.contentRect()
	if !ok {
		return
	}
	tex := r.textures.resolve(n.Source)
	uv := fullUV
	if n.SourceRect != nil && tex != r.textures.blank {
		if w, h := n.Source.Size(); w > 0 && h > 0 {
			uv = rectUV(*n.SourceRect, w, h)
		}
	}
	r.ctx.drawLeaf(tex, transformCorners(m, rect), uv, alpha, mode)
}

func (r *Renderer) drawSpriteFrame(n *Node, m [6]float64, alpha float64, mode BlendMode) {
	f, ok := n.Sheet.frame(n.Frame)
	if !ok {
		return
	}
	img := n.Sheet.Images[f.Image]
	tex := r.textures.resolve(img)
	uv := fullUV
	if w, h := img.Size(); tex != r.textures.blank && w > 0 && h > 0 {
		uv = f.corners(w, h)
	}
	rect := Rect{X: -f.RegX, Y: -f.RegY, Width: float64(f.Width), Height: float64(f.Height)}
	r.ctx.drawLeaf(tex, transformCorners(m, rect), uv, alpha, mode)
}
