package stagegl

// flushReason labels why the open batch was drawn.
type flushReason string

const (
	reasonVertexOverflow   flushReason = "vertexOverflow"
	reasonTextureOverflow  flushReason = "textureOverflow"
	reasonBlendChange      flushReason = "blendModeChange"
	reasonImmediatePrep    flushReason = "immediatePrep"
	reasonImmediateResults flushReason = "immediateResults"
	reasonCachelessFilter  flushReason = "cachelessFilterInterrupt"
	reasonCacheDraw        flushReason = "cacheDraw"
	reasonTargetChange     flushReason = "targetChange"
	reasonDrawFinish       flushReason = "drawFinish"
)

// batchState is everything a batch depends on besides its vertices.
type batchState struct {
	// ring, when set, supplies the target: its current output buffer.
	// Otherwise target is used, nil meaning the default framebuffer.
	ring          *roleRing
	target        *RenderTarget
	width, height int
	// mode is the fixed-function blend mode of the open batch.
	mode BlendMode
}

// batchContext owns the open batch and the state stack. Every change of
// target, program or blend flushes first.
type batchContext struct {
	r     *Renderer
	batch *vertexBatch
	state batchState
	stack []batchState
	units []int
}

func newBatchContext(r *Renderer, maxCards int) *batchContext {
	return &batchContext{r: r, batch: newVertexBatch(maxCards)}
}

// target returns the framebuffer target of the current state.
func (c *batchContext) target() *RenderTarget {
	if c.state.ring != nil {
		return c.state.ring.get(roleOutput)
	}
	return c.state.target
}

// yDown reports whether pixel row 0 should map to the top of clip space
// for t. Only offscreen targets of a bottom-left-origin device keep clip
// space unflipped, so every texture stores its top row first.
func (c *batchContext) yDown(t *RenderTarget) bool {
	return t == nil || !c.r.caps.BottomLeftOrigin
}

// begin resets the stack and applies s.
func (c *batchContext) begin(s batchState) {
	c.stack = c.stack[:0]
	c.state = s
	c.batch.count = 0
	c.apply()
}

// apply binds the current state on the device.
func (c *batchContext) apply() {
	dev := c.r.dev
	t := c.target()
	if t == nil {
		dev.BindFramebuffer(0)
	} else {
		dev.BindFramebuffer(t.fb)
	}
	dev.Viewport(0, 0, c.state.width, c.state.height)
	p := c.r.shaders.batch
	dev.UseProgram(p.id)
	dev.SetUniform(p.uProjection, orthoProjection(c.state.width, c.state.height, c.yDown(t)))
	dev.SetBlend(c.state.mode.blendState())
}

// flush draws the open batch with the batch program.
func (c *batchContext) flush(reason flushReason) {
	if c.batch.empty() {
		return
	}
	n := c.batch.draw(c.r.dev, c.r.shaders.batch)
	c.r.textures.nextBatch()
	c.r.stats.recordFlush(reason, n)
	c.r.log.Debug("stagegl: batch flush", "reason", string(reason), "vertices", n)
}

// push saves the current state.
func (c *batchContext) push() {
	c.stack = append(c.stack, c.state)
}

// pop restores the last pushed state, flushing first if it differs.
func (c *batchContext) pop(reason flushReason) {
	if len(c.stack) == 0 {
		panic("stagegl: batch state stack underflow")
	}
	prev := c.state
	next := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	if prev == next {
		return
	}
	c.flush(reason)
	c.state = next
	c.apply()
}

// enter flushes and switches to s. Callers pair it with push and pop.
func (c *batchContext) enter(s batchState, reason flushReason) {
	c.flush(reason)
	c.state = s
	c.apply()
}

// setMode switches the fixed-function blend mode of the batch.
func (c *batchContext) setMode(m BlendMode, reason flushReason) {
	if m == c.state.mode {
		return
	}
	c.flush(reason)
	c.state.mode = m
	c.r.dev.SetBlend(m.blendState())
}

// put appends a card, flushing first when the batch or the slot table is
// full.
func (c *batchContext) put(tex *Texture, pos, uv [4][2]float32, alpha float64) {
	if !c.batch.fits(1) {
		c.flush(reasonVertexOverflow)
	}
	slot, ok := c.r.textures.insert(tex)
	if !ok {
		c.flush(reasonTextureOverflow)
		if slot, ok = c.r.textures.insert(tex); !ok {
			panic("stagegl: every texture slot is protected")
		}
	}
	c.batch.append(&card{pos: pos, uv: uv, slot: float32(slot), alpha: float32(alpha)})
}

// drawLeaf appends a card drawn with mode. A fixed-function mode other than
// the batch's is isolated in its own batch; cover modes take the immediate
// path.
func (c *batchContext) drawLeaf(tex *Texture, pos, uv [4][2]float32, alpha float64, mode BlendMode) {
	switch {
	case mode.IsCover():
		c.immediate(tex, pos, uv, alpha, mode)
	case mode != c.state.mode:
		saved := c.state.mode
		c.setMode(mode, reasonBlendChange)
		c.put(tex, pos, uv, alpha)
		c.setMode(saved, reasonBlendChange)
	default:
		c.put(tex, pos, uv, alpha)
	}
}

// immediate draws one card with a cover blend mode. The object is isolated
// in the temp buffer, then the cover program combines it with the previous
// output (now concat) into the new output.
func (c *batchContext) immediate(tex *Texture, pos, uv [4][2]float32, alpha float64, mode BlendMode) {
	r := c.r
	ring := c.state.ring
	if ring == nil {
		r.warnCoverFallback(mode)
		c.drawLeaf(tex, pos, uv, alpha, BlendSourceOver)
		return
	}
	w, h := c.state.width, c.state.height

	c.flush(reasonImmediatePrep)

	cover, err := r.shaders.coverProgram(mode)
	if err == nil {
		_, err = ring.ensure(r.targets, roleTemp, w, h)
	}
	if err == nil {
		_, err = ring.ensure(r.targets, roleConcat, w, h)
	}
	if err != nil {
		r.log.Warn("stagegl: cover blend unavailable, drawing source-over", "mode", mode.String(), "err", err)
		c.drawLeaf(tex, pos, uv, alpha, BlendSourceOver)
		return
	}

	ring.swap(roleOutput, roleConcat)
	temp := ring.get(roleTemp)

	c.push()
	c.enter(batchState{target: temp, width: w, height: h, mode: BlendSourceOver}, reasonTargetChange)
	r.dev.Clear(ColorTransparent)
	c.put(tex, pos, uv, alpha)
	c.pop(reasonImmediateResults)

	c.pass(cover, c.target(), w, h, fullUV, BlendState{Disable: true},
		[]*Texture{temp.tex, ring.get(roleConcat).tex}, nil)
	r.stats.CoverDraws++
}

// pass draws one quad covering a w x h target with p, outside the batch.
// units are bound to texture units borrowed from the slot table, skipping
// protected slots, and p's samplers are pointed at them.
// The current state is re-applied afterwards.
func (c *batchContext) pass(p *program, dst *RenderTarget, w, h int, uv [4][2]float32, blend BlendState, units []*Texture, uniforms func(*program)) {
	r := c.r
	dev := r.dev
	if !c.batch.empty() {
		panic("stagegl: pass with an open batch")
	}
	if dst == nil {
		dev.BindFramebuffer(0)
	} else {
		dev.BindFramebuffer(dst.fb)
	}
	dev.Viewport(0, 0, w, h)
	dev.UseProgram(p.id)
	dev.SetUniform(p.uProjection, orthoProjection(w, h, c.yDown(dst)))
	c.units = r.textures.borrowUnits(c.units[:0], len(units))
	for i, t := range units {
		dev.BindTexture(c.units[i], t.id)
	}
	if !p.indexed && len(units) > 0 {
		dev.SetUniform(p.uSampler, int32(c.units[0]))
		if len(units) > 1 {
			dev.SetUniform(p.uBackSampler, int32(c.units[1]))
		}
	}
	if len(units) > 0 {
		tw, th := units[0].Size()
		dev.SetUniform(p.uTexelSize, Vec2{1 / float32(tw), 1 / float32(th)})
	}
	if uniforms != nil {
		uniforms(p)
	}
	dev.SetBlend(blend)

	pos := transformCorners(identityTransform, Rect{Width: float64(w), Height: float64(h)})
	c.batch.append(&card{pos: pos, uv: uv, slot: 0, alpha: 1})
	c.batch.draw(dev, p)
	r.textures.nextBatch()
	r.stats.DrawCalls++

	c.apply()
}
