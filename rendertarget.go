package stagegl

import "fmt"

// RenderTarget is a texture with a framebuffer attached, used for the
// offscreen frame buffers, caches and filter passes.
type RenderTarget struct {
	tex           *Texture
	fb            FramebufferID
	width, height int
}

// Size returns the target dimensions in pixels.
func (t *RenderTarget) Size() (int, int) { return t.width, t.height }

// Texture returns the texture the target renders into.
func (t *RenderTarget) Texture() *Texture { return t.tex }

// renderTargetManager creates, resizes and destroys render targets.
type renderTargetManager struct {
	dev     Device
	maxSize int
	live    int
}

// acquire returns rt resized to w x h, or a new target when rt is nil.
// Resizing discards the contents.
func (m *renderTargetManager) acquire(rt *RenderTarget, w, h int) (*RenderTarget, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("stagegl: render target size %dx%d", w, h)
	}
	if m.maxSize > 0 && (w > m.maxSize || h > m.maxSize) {
		return nil, fmt.Errorf("stagegl: render target %dx%d exceeds device limit %d", w, h, m.maxSize)
	}
	if rt != nil {
		if rt.width == w && rt.height == h {
			return rt, nil
		}
		if err := m.dev.UploadTexture(rt.tex.id, w, h, nil); err != nil {
			return nil, fmt.Errorf("stagegl: resize render target: %w", err)
		}
		rt.width, rt.height = w, h
		rt.tex.width, rt.tex.height = w, h
		rt.tex.pot = isPowerOfTwo(w) && isPowerOfTwo(h)
		return rt, nil
	}

	id, err := m.dev.NewTexture(w, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTextureCreate, err)
	}
	if err := m.dev.UploadTexture(id, w, h, nil); err != nil {
		m.dev.DeleteTexture(id)
		return nil, fmt.Errorf("%w: %v", ErrTextureCreate, err)
	}
	m.dev.SetTextureFilter(id, false)
	fb, err := m.dev.NewFramebuffer(id)
	if err != nil {
		m.dev.DeleteTexture(id)
		return nil, fmt.Errorf("%w: %v", ErrFramebufferIncomplete, err)
	}
	m.live++
	return &RenderTarget{
		tex: &Texture{
			id: id, width: w, height: h,
			pot:      isPowerOfTwo(w) && isPowerOfTwo(h),
			slot:     noSlot,
			uploaded: true, renderTarget: true,
		},
		fb:     fb,
		width:  w,
		height: h,
	}, nil
}

// release destroys the framebuffer and texture of rt.
func (m *renderTargetManager) release(rt *RenderTarget) {
	if rt == nil {
		return
	}
	m.dev.DeleteFramebuffer(rt.fb)
	m.dev.DeleteTexture(rt.tex.id)
	m.live--
}

// --- Role ring ---

// role names a buffer's current job in a multi-buffer pass.
type role uint8

const (
	roleOutput role = iota // receives draws
	roleConcat             // holds the previous result for cover modes and filters
	roleTemp               // isolates a single object for cover modes
	roleCount
)

// roleRing holds up to three physical targets and maps each role to one of
// them. Swapping roles swaps indices, never targets.
type roleRing struct {
	slots [roleCount]*RenderTarget
	index [roleCount]int
}

func newRoleRing() roleRing {
	return roleRing{index: [roleCount]int{0, 1, 2}}
}

// get returns the target currently playing r, or nil.
func (rr *roleRing) get(r role) *RenderTarget {
	return rr.slots[rr.index[r]]
}

// swap exchanges the targets playing a and b.
func (rr *roleRing) swap(a, b role) {
	rr.index[a], rr.index[b] = rr.index[b], rr.index[a]
}

// ensure returns the target for r sized w x h, creating or resizing it.
func (rr *roleRing) ensure(m *renderTargetManager, r role, w, h int) (*RenderTarget, error) {
	i := rr.index[r]
	rt, err := m.acquire(rr.slots[i], w, h)
	if err != nil {
		return nil, err
	}
	rr.slots[i] = rt
	return rt, nil
}

// resize resizes every existing target of the ring.
func (rr *roleRing) resize(m *renderTargetManager, w, h int) error {
	for i, rt := range rr.slots {
		if rt == nil {
			continue
		}
		nrt, err := m.acquire(rt, w, h)
		if err != nil {
			return err
		}
		rr.slots[i] = nrt
	}
	return nil
}

// release destroys every target of the ring.
func (rr *roleRing) release(m *renderTargetManager) {
	for i, rt := range rr.slots {
		m.release(rt)
		rr.slots[i] = nil
	}
	rr.index = [roleCount]int{0, 1, 2}
}
