package stagegl

import (
	"fmt"
	"log/slog"
)

// noSlot marks a texture that is not bound to any sampler slot.
const noSlot = -1

// attachment records one source drawn through a texture.
type attachment struct {
	src       ImageSource
	lastDrawn int
}

// Texture is a device texture plus the bookkeeping the renderer needs to
// share it between sources and sampler slots.
type Texture struct {
	id            TextureID
	width, height int
	pot           bool

	key         string
	attachments []attachment

	slot    int
	batchID int

	uploaded     bool
	uploadFailed bool
	uploadFrame  int

	// renderTarget textures are owned by a RenderTarget, not the registry.
	renderTarget bool
}

// Size returns the texture dimensions in pixels.
func (t *Texture) Size() (int, int) { return t.width, t.height }

// ID returns the device handle.
func (t *Texture) ID() TextureID { return t.id }

// Slot returns the sampler slot the texture occupies, or -1.
func (t *Texture) Slot() int { return t.slot }

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// textureRegistry maps image sources to device textures and tracks which
// texture sits in each sampler slot of the open batch. Sources are keyed by
// SourceKey in a side table; they are never modified.
type textureRegistry struct {
	dev       Device
	log       *slog.Logger
	antialias bool

	byKey map[string]*Texture
	slots []*Texture
	// blank is a 1x1 transparent texture drawn for sources that are not
	// ready. empty shares its device texture and marks unused slots; it is
	// never claimed by a batch.
	blank *Texture
	empty *Texture

	protected  []bool
	lastInsert int

	frame   int
	batchID int
	inFrame bool

	// pendingPurge holds a purge age requested mid-frame; 0 when none.
	pendingPurge int
}

func newTextureRegistry(dev Device, log *slog.Logger, slotCount int, antialias bool) (*textureRegistry, error) {
	r := &textureRegistry{
		dev:        dev,
		log:        log,
		antialias:  antialias,
		byKey:      make(map[string]*Texture),
		slots:      make([]*Texture, slotCount),
		protected:  make([]bool, slotCount),
		lastInsert: -1,
		batchID:    1,
	}
	id, err := dev.NewTexture(1, 1)
	if err != nil {
		return nil, fmt.Errorf("stagegl: placeholder texture: %w", err)
	}
	if err := dev.UploadTexture(id, 1, 1, []byte{0, 0, 0, 0}); err != nil {
		dev.DeleteTexture(id)
		return nil, fmt.Errorf("stagegl: placeholder texture: %w", err)
	}
	r.blank = &Texture{id: id, width: 1, height: 1, pot: true, uploaded: true, slot: noSlot}
	r.empty = &Texture{id: id, width: 1, height: 1, slot: noSlot, batchID: -1}
	for i := range r.slots {
		r.slots[i] = r.empty
		dev.BindTexture(i, id)
	}
	return r, nil
}

// slotCount returns the number of sampler slots.
func (r *textureRegistry) slotCount() int { return len(r.slots) }

// beginFrame advances the frame counter used for purge ages.
func (r *textureRegistry) beginFrame() {
	r.frame++
	r.inFrame = true
}

// endFrame closes the frame and runs any purge deferred during it.
func (r *textureRegistry) endFrame() {
	r.inFrame = false
	if age := r.pendingPurge; age != 0 {
		r.pendingPurge = 0
		r.purge(age)
	}
}

// nextBatch invalidates every slot assignment of the batch just flushed.
func (r *textureRegistry) nextBatch() {
	r.batchID++
}

// resolve returns the texture for src, creating and uploading it as needed.
// Sources that are not ready, or whose texture cannot be created, resolve
// to the blank placeholder.
func (r *textureRegistry) resolve(src ImageSource) *Texture {
	key := src.SourceKey()
	tex := r.byKey[key]
	if tex == nil {
		id, err := r.dev.NewTexture(1, 1)
		if err != nil {
			r.log.Warn("stagegl: texture creation failed, using placeholder",
				"source", key, "err", err)
			return r.blank
		}
		tex = &Texture{id: id, width: 1, height: 1, key: key, slot: noSlot}
		r.byKey[key] = tex
	}
	r.touch(tex, src)

	if !src.Ready() {
		return r.blank
	}
	if r.needsUpload(tex, src) {
		r.upload(tex, src)
	}
	if !tex.uploaded {
		return r.blank
	}
	return tex
}

// touch attaches src to tex if needed and stamps it as drawn this frame.
func (r *textureRegistry) touch(tex *Texture, src ImageSource) {
	for i := range tex.attachments {
		if tex.attachments[i].src == src {
			tex.attachments[i].lastDrawn = r.frame
			return
		}
	}
	tex.attachments = append(tex.attachments, attachment{src: src, lastDrawn: r.frame})
}

func (r *textureRegistry) needsUpload(tex *Texture, src ImageSource) bool {
	if tex.uploadFrame == r.frame && tex.uploaded {
		return false
	}
	if inv, ok := src.(Invalidating); ok && inv.NeedsUpload() {
		return true
	}
	return !tex.uploaded && !tex.uploadFailed
}

// upload copies the source pixels into the texture. Failures are logged and
// leave the texture blank until the source is invalidated again.
func (r *textureRegistry) upload(tex *Texture, src ImageSource) {
	tex.uploadFrame = r.frame
	w, h := src.Size()
	pix, err := src.Pixels()
	if err == nil && len(pix) < 4*w*h {
		err = fmt.Errorf("pixel buffer holds %d bytes, want %d", len(pix), 4*w*h)
	}
	if err == nil {
		err = r.dev.UploadTexture(tex.id, w, h, pix)
	}
	if inv, ok := src.(Invalidating); ok {
		inv.MarkUploaded()
	}
	if err != nil {
		tex.uploadFailed = true
		r.log.Warn("stagegl: texture upload failed", "source", tex.key, "err", err)
		return
	}
	tex.uploaded = true
	tex.uploadFailed = false
	tex.width, tex.height = w, h
	tex.pot = isPowerOfTwo(w) && isPowerOfTwo(h)
	r.dev.SetTextureFilter(tex.id, tex.pot && r.antialias)
}

// bound reports whether tex already occupies a slot in the open batch.
func (r *textureRegistry) bound(tex *Texture) bool {
	return tex.slot != noSlot && r.slots[tex.slot] == tex
}

// insert places tex in a sampler slot for the open batch. It reports false
// when every slot is claimed by the open batch; the caller must flush and
// retry.
func (r *textureRegistry) insert(tex *Texture) (int, bool) {
	if r.bound(tex) {
		tex.batchID = r.batchID
		return tex.slot, true
	}
	n := len(r.slots)
	start := (r.lastInsert + 1) % n
	for i := 0; i < n; i++ {
		s := (start + i) % n
		if r.protected[s] || r.slots[s].batchID == r.batchID {
			continue
		}
		r.assign(tex, s)
		return s, true
	}
	return noSlot, false
}

func (r *textureRegistry) assign(tex *Texture, s int) {
	if old := r.slots[s]; old != r.empty {
		old.slot = noSlot
	}
	r.slots[s] = tex
	tex.slot = s
	tex.batchID = r.batchID
	r.lastInsert = s
	r.dev.BindTexture(s, tex.id)
}

// evict empties slot s. The unit may then be bound directly by the caller.
func (r *textureRegistry) evict(s int) {
	if old := r.slots[s]; old != r.empty {
		old.slot = noSlot
	}
	r.slots[s] = r.empty
}

// borrowUnits appends n texture units for a draw outside the batch to dst,
// lowest first. Protected slots are skipped; units past the slot table are
// used when the table runs out. Borrowed slots are emptied.
func (r *textureRegistry) borrowUnits(dst []int, n int) []int {
	for u := 0; n > 0; u++ {
		if u < len(r.slots) {
			if r.protected[u] {
				continue
			}
			r.evict(u)
		}
		dst = append(dst, u)
		n--
	}
	return dst
}

// unbind empties the slot tex occupies, if any. Used before a render
// target's texture is destroyed.
func (r *textureRegistry) unbind(tex *Texture) {
	if r.bound(tex) {
		r.slots[tex.slot] = r.empty
	}
	tex.slot = noSlot
}

// protect reserves or frees slot s. A protected slot is never chosen by
// insert.
func (r *textureRegistry) protect(s int, lock bool) {
	if s < 0 || s >= len(r.slots) {
		panic(fmt.Sprintf("stagegl: texture slot %d out of range [0, %d)", s, len(r.slots)))
	}
	if lock {
		r.evict(s)
	}
	r.protected[s] = lock
}

// purge detaches every source not drawn within maxAge frames and destroys
// textures left without sources. It returns the number of registered
// textures. Mid-frame requests are deferred to the end of the frame.
func (r *textureRegistry) purge(maxAge int) int {
	if maxAge <= 0 {
		maxAge = DefaultPurgeAge
	}
	if r.inFrame {
		r.pendingPurge = maxAge
		return len(r.byKey)
	}
	for key, tex := range r.byKey {
		kept := tex.attachments[:0]
		for _, a := range tex.attachments {
			if a.lastDrawn+maxAge > r.frame {
				kept = append(kept, a)
			}
		}
		for i := len(kept); i < len(tex.attachments); i++ {
			tex.attachments[i] = attachment{}
		}
		tex.attachments = kept
		if len(kept) == 0 {
			r.destroy(key, tex)
		}
	}
	return len(r.byKey)
}

// release detaches src from its texture. In safe mode the texture is
// destroyed only when no sources remain; otherwise it is destroyed at once.
func (r *textureRegistry) release(src ImageSource, safe bool) {
	key := src.SourceKey()
	tex := r.byKey[key]
	if tex == nil {
		return
	}
	if safe {
		for i, a := range tex.attachments {
			if a.src == src {
				tex.attachments = append(tex.attachments[:i], tex.attachments[i+1:]...)
				break
			}
		}
		if len(tex.attachments) > 0 {
			return
		}
	}
	r.destroy(key, tex)
}

func (r *textureRegistry) destroy(key string, tex *Texture) {
	if r.bound(tex) {
		r.slots[tex.slot] = r.empty
	}
	tex.slot = noSlot
	delete(r.byKey, key)
	r.dev.DeleteTexture(tex.id)
}

// count returns the number of registered textures.
func (r *textureRegistry) count() int { return len(r.byKey) }

// releaseAll deletes every texture including the placeholder.
func (r *textureRegistry) releaseAll() {
	for key, tex := range r.byKey {
		r.destroy(key, tex)
	}
	r.dev.DeleteTexture(r.blank.id)
	for i := range r.slots {
		r.slots[i] = nil
	}
}
