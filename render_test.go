package stagegl

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil, DefaultOptions()); !errors.Is(err, ErrNoDevice) {
		t.Errorf("New(nil) error = %v, want ErrNoDevice", err)
	}
}

func TestNewNoTextureUnits(t *testing.T) {
	if _, err := New(newRecordingDevice(0), DefaultOptions()); !errors.Is(err, ErrNoDevice) {
		t.Errorf("New with 0 units error = %v, want ErrNoDevice", err)
	}
}

func TestNewMaxSamplers(t *testing.T) {
	dev := newRecordingDevice(8)
	r := newTestRenderer(t, dev, func(o *Options) { o.MaxSamplers = 2 })
	if r.Samplers() != 2 {
		t.Errorf("Samplers = %d, want 2", r.Samplers())
	}
	if len(r.textures.slots) != 2 {
		t.Errorf("slot table = %d, want 2", len(r.textures.slots))
	}
}

func TestEndToEndSharedSource(t *testing.T) {
	dev := newRecordingDevice(8)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	src := newSpySource("hero.png", 16, 16)
	for i := 0; i < 3; i++ {
		n := NewBitmap("hero", src)
		n.X = float64(i * 20)
		root.AddChild(n)
	}
	r.RenderFrame(root)

	st := r.Stats()
	if st.Textures != 1 {
		t.Errorf("textures = %d, want 1", st.Textures)
	}
	if st.Flushes != 1 {
		t.Errorf("flushes = %d, want 1", st.Flushes)
	}
	if st.Vertices != 18 {
		t.Errorf("vertices = %d, want 18", st.Vertices)
	}
	if st.FlushReasons[string(reasonDrawFinish)] != 1 {
		t.Errorf("flush reasons = %v, want one drawFinish", st.FlushReasons)
	}
	if batch := dev.drawsWith(r.shaders.batch.id); len(batch) != 1 || batch[0].count != 18 {
		t.Errorf("batch draws = %d, want one of 18 vertices", len(batch))
	}
}

func TestEndToEndPresentsOffscreenOutput(t *testing.T) {
	dev := newRecordingDevice(8)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	root.AddChild(NewBitmap("a", newSpySource("a", 4, 4)))
	r.RenderFrame(root)

	last := dev.draws[len(dev.draws)-1]
	if last.program != r.shaders.copy.id {
		t.Fatal("last draw should copy the offscreen output")
	}
	if last.fb != 0 {
		t.Errorf("copy draws into framebuffer %d, want 0", last.fb)
	}
	if !last.blend.Disable {
		t.Error("copy should draw with blending disabled")
	}
	if last.units[0] != r.ring.get(roleOutput).tex.id {
		t.Error("copy should sample the output buffer")
	}
	batch := dev.drawsWith(r.shaders.batch.id)
	if batch[0].fb != r.ring.get(roleOutput).fb {
		t.Error("batch should draw into the output buffer")
	}
}

func TestDirectDraw(t *testing.T) {
	dev := newRecordingDevice(8)
	r := newTestRenderer(t, dev, func(o *Options) { o.DirectDraw = true })
	root := NewContainer("root")
	root.AddChild(NewBitmap("a", newSpySource("a", 4, 4)))
	r.RenderFrame(root)

	if len(dev.framebuffers) != 0 {
		t.Errorf("direct draw created %d framebuffers", len(dev.framebuffers))
	}
	if len(dev.draws) != 1 || dev.draws[0].fb != 0 {
		t.Errorf("want one draw into framebuffer 0, got %d draws", len(dev.draws))
	}
}

// --- Blend modes ---

func TestBlendModeIsolation(t *testing.T) {
	dev := newRecordingDevice(8)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	a := NewBitmap("A", newSpySource("a", 4, 4))
	b := NewBitmap("B", newSpySource("b", 4, 4))
	b.BlendMode = BlendMultiply
	c := NewBitmap("C", newSpySource("c", 4, 4))
	root.AddChild(a)
	root.AddChild(b)
	root.AddChild(c)
	r.RenderFrame(root)

	st := r.Stats()
	if st.Flushes < 3 {
		t.Errorf("flushes = %d, want at least 3", st.Flushes)
	}
	if st.CoverDraws != 1 {
		t.Errorf("cover draws = %d, want 1", st.CoverDraws)
	}

	multiply, ok := r.shaders.cover[BlendMultiply]
	if !ok {
		t.Fatal("multiply program was not compiled")
	}
	texA := r.textures.byKey["a"].id
	texC := r.textures.byKey["c"].id
	covers := dev.drawsWith(multiply.id)
	if len(covers) != 1 {
		t.Fatalf("multiply draws = %d, want 1", len(covers))
	}
	for _, dc := range covers {
		for unit, id := range dc.units {
			if unit < multiply.samplers && (id == texA || id == texC) {
				t.Errorf("multiply program sampled A or C on unit %d", unit)
			}
		}
	}

	// A and C are batch draws, in order, around the cover pass.
	var order []string
	for _, dc := range dev.draws {
		switch dc.program {
		case r.shaders.batch.id:
			tex := dc.units[int(dc.index[0])]
			switch tex {
			case texA:
				order = append(order, "A")
			case texC:
				order = append(order, "C")
			default:
				order = append(order, "B")
			}
		case multiply.id:
			order = append(order, "cover")
		}
	}
	if got := strings.Join(order, ","); got != "A,B,cover,C" {
		t.Errorf("draw order = %s, want A,B,cover,C", got)
	}
}

func TestCoverModeDirectDrawFallsBack(t *testing.T) {
	dev := newRecordingDevice(8)
	log, buf := captureLogger()
	r := newTestRenderer(t, dev, func(o *Options) {
		o.DirectDraw = true
		o.Logger = log
	})
	root := NewContainer("root")
	for i := 0; i < 3; i++ {
		n := NewBitmap("m", newSpySource("m", 4, 4))
		n.BlendMode = BlendScreen
		root.AddChild(n)
	}
	r.RenderFrame(root)

	st := r.Stats()
	if st.CoverDraws != 0 {
		t.Errorf("cover draws = %d, want 0", st.CoverDraws)
	}
	if st.Flushes != 1 || st.Vertices != 18 {
		t.Errorf("flushes, vertices = %d, %d; want 1, 18", st.Flushes, st.Vertices)
	}
	if n := strings.Count(buf.String(), "needs an offscreen output"); n != 1 {
		t.Errorf("fallback warnings = %d, want 1", n)
	}
	if len(r.shaders.cover) != 0 {
		t.Error("no cover program should be compiled in direct mode")
	}
}

func TestFixedBlendLeafIsolated(t *testing.T) {
	dev := newRecordingDevice(8)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	src := newSpySource("s", 4, 4)
	root.AddChild(NewBitmap("a", src))
	add := NewBitmap("add", src)
	add.BlendMode = BlendLighter
	root.AddChild(add)
	root.AddChild(NewBitmap("c", src))
	r.RenderFrame(root)

	st := r.Stats()
	if st.Flushes != 3 {
		t.Errorf("flushes = %d, want 3", st.Flushes)
	}
	if st.FlushReasons[string(reasonBlendChange)] != 2 {
		t.Errorf("blend change flushes = %d, want 2", st.FlushReasons[string(reasonBlendChange)])
	}
	batch := dev.drawsWith(r.shaders.batch.id)
	if len(batch) != 3 {
		t.Fatalf("batch draws = %d, want 3", len(batch))
	}
	if batch[1].blend != BlendLighter.blendState() {
		t.Error("middle draw should use the lighter blend state")
	}
	if batch[2].blend != BlendSourceOver.blendState() {
		t.Error("blend mode leaked to the following sibling")
	}
}

func TestContainerBlendDoesNotLeak(t *testing.T) {
	dev := newRecordingDevice(8)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	src := newSpySource("s", 4, 4)

	group := NewContainer("group")
	group.BlendMode = BlendLighter
	group.AddChild(NewBitmap("g1", src))
	group.AddChild(NewBitmap("g2", src))
	root.AddChild(NewBitmap("before", src))
	root.AddChild(group)
	root.AddChild(NewBitmap("after", src))
	r.RenderFrame(root)

	batch := dev.drawsWith(r.shaders.batch.id)
	if len(batch) != 3 {
		t.Fatalf("batch draws = %d, want 3", len(batch))
	}
	if batch[1].count != 12 || batch[1].blend != BlendLighter.blendState() {
		t.Errorf("group draw = %d vertices with %+v, want 12 with lighter", batch[1].count, batch[1].blend)
	}
	if batch[2].blend != BlendSourceOver.blendState() {
		t.Error("container blend mode leaked to its sibling")
	}
}

// --- Alpha, visibility and transforms ---

func TestAlphaEpsilonCutoff(t *testing.T) {
	tests := []struct {
		name         string
		parent, leaf float64
		drawn        bool
	}{
		{"below", 1, 0.003, false},
		{"at epsilon", 1, AlphaEpsilon, true},
		{"not a number", 1, math.NaN(), false},
		{"accumulated", 0.05, 0.05, false},
		{"above", 1, 0.004, true},
	}
	for _, tt := range tests {
		dev := newRecordingDevice(4)
		r := newTestRenderer(t, dev, nil)
		root := NewContainer("root")
		group := NewContainer("group")
		group.Alpha = tt.parent
		src := newSpySource("faint", 4, 4)
		n := NewBitmap("faint", src)
		n.Alpha = tt.leaf
		group.AddChild(n)
		root.AddChild(group)
		r.RenderFrame(root)

		st := r.Stats()
		if tt.drawn {
			if st.Vertices != 6 {
				t.Errorf("%s: vertices = %d, want 6", tt.name, st.Vertices)
			}
			continue
		}
		if st.Vertices != 0 || st.Flushes != 0 {
			t.Errorf("%s: vertices, flushes = %d, %d; want 0, 0", tt.name, st.Vertices, st.Flushes)
		}
		if src.keyCalls != 0 || src.pixelsCalls != 0 {
			t.Errorf("%s: source touched %d/%d times, want none", tt.name, src.keyCalls, src.pixelsCalls)
		}
	}
}

func TestInvisibleNodeSkipped(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	src := newSpySource("hidden", 4, 4)
	n := NewBitmap("hidden", src)
	n.Visible = false
	root.AddChild(n)
	r.RenderFrame(root)

	if r.Stats().Vertices != 0 || src.keyCalls != 0 {
		t.Error("invisible node should not be drawn or resolved")
	}
}

func TestAccumulatedTransformAndAlpha(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	parent := NewContainer("parent")
	parent.SetPosition(10, 20)
	parent.SetScale(2, 2)
	parent.Alpha = 0.5
	child := NewBitmap("child", newSpySource("c", 4, 4))
	child.SetPosition(1, 1)
	child.Alpha = 0.5
	parent.AddChild(child)
	root.AddChild(parent)
	r.RenderFrame(root)

	dc := dev.drawsWith(r.shaders.batch.id)[0]
	tl := [2]float32{dc.pos[0], dc.pos[1]}
	br := [2]float32{dc.pos[10], dc.pos[11]}
	if tl != [2]float32{12, 22} {
		t.Errorf("top-left = %v, want [12 22]", tl)
	}
	if br != [2]float32{20, 30} {
		t.Errorf("bottom-right = %v, want [20 30]", br)
	}
	if dc.alpha[0] != 0.25 {
		t.Errorf("alpha = %v, want 0.25", dc.alpha[0])
	}
}

func TestBitmapSourceRect(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	n := NewBitmap("sub", newSpySource("sheet", 16, 32))
	n.SourceRect = &Rect{X: 2, Y: 4, Width: 6, Height: 8}
	root.AddChild(n)
	r.RenderFrame(root)

	dc := dev.drawsWith(r.shaders.batch.id)[0]
	if got := [2]float32{dc.uv[0], dc.uv[1]}; got != [2]float32{2.0 / 16, 4.0 / 32} {
		t.Errorf("TL uv = %v", got)
	}
	if got := [2]float32{dc.uv[10], dc.uv[11]}; got != [2]float32{8.0 / 16, 12.0 / 32} {
		t.Errorf("BR uv = %v", got)
	}
	if got := [2]float32{dc.pos[10], dc.pos[11]}; got != [2]float32{6, 8} {
		t.Errorf("BR pos = %v, want [6 8]", got)
	}
}

func TestPendingSourceRectUsesFullUV(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	n := NewBitmap("pending", NewPendingImage("pending", 0, 0))
	n.SourceRect = &Rect{X: 2, Y: 4, Width: 6, Height: 8}
	root.AddChild(n)
	r.RenderFrame(root)

	draws := dev.drawsWith(r.shaders.batch.id)
	if len(draws) != 1 {
		t.Fatalf("batch draws = %d, want 1 placeholder card", len(draws))
	}
	dc := draws[0]
	if got := [2]float32{dc.uv[0], dc.uv[1]}; got != [2]float32{0, 0} {
		t.Errorf("TL uv = %v, want [0 0]", got)
	}
	if got := [2]float32{dc.uv[10], dc.uv[11]}; got != [2]float32{1, 1} {
		t.Errorf("BR uv = %v, want [1 1]", got)
	}
}

func TestSpriteFrameDraw(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	sheet := NewGridSpriteSheet(newSpySource("grid", 8, 8), 4, 4)
	root := NewContainer("root")
	root.AddChild(NewSprite("s", sheet, 3))
	root.AddChild(NewSprite("missing", sheet, 99))
	r.RenderFrame(root)

	st := r.Stats()
	if st.Vertices != 6 {
		t.Fatalf("vertices = %d, want 6 (missing frame skipped)", st.Vertices)
	}
	dc := dev.drawsWith(r.shaders.batch.id)[0]
	if got := [2]float32{dc.uv[0], dc.uv[1]}; got != [2]float32{0.5, 0.5} {
		t.Errorf("TL uv = %v, want [0.5 0.5]", got)
	}
	if got := [2]float32{dc.uv[10], dc.uv[11]}; got != [2]float32{1, 1} {
		t.Errorf("BR uv = %v, want [1 1]", got)
	}
}

// --- Slots through the renderer ---

func TestProtectTextureSlot(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	r.ProtectTextureSlot(0, true)
	root := NewContainer("root")
	for i := 0; i < 6; i++ {
		root.AddChild(NewBitmap("b", newSpySource(string(rune('a'+i)), 2, 2)))
	}
	r.RenderFrame(root)

	if st := r.Stats(); st.Flushes != 2 {
		t.Errorf("flushes = %d, want 2 with three free slots", st.Flushes)
	}
	for _, dc := range dev.drawsWith(r.shaders.batch.id) {
		for v := 0; v < dc.count; v++ {
			if dc.index[v] == 0 {
				t.Fatal("protected slot 0 was used")
			}
		}
	}

	expectPanic(t, "slot -1", func() { r.ProtectTextureSlot(-1, true) })
	expectPanic(t, "slot 4", func() { r.ProtectTextureSlot(4, false) })
}

func TestCoverPassSkipsProtectedUnits(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	r.ProtectTextureSlot(0, true)
	parked := TextureID(999)
	dev.BindTexture(0, parked)

	root := NewContainer("root")
	root.AddChild(NewBitmap("a", newSpySource("a", 4, 4)))
	m := NewBitmap("m", newSpySource("m", 4, 4))
	m.BlendMode = BlendMultiply
	root.AddChild(m)
	r.RenderFrame(root)

	if r.Stats().CoverDraws != 1 {
		t.Fatalf("cover draws = %d, want 1", r.Stats().CoverDraws)
	}
	if dev.units[0] != parked {
		t.Errorf("unit 0 holds texture %d, want the protected %d", dev.units[0], parked)
	}
	multiply := r.shaders.cover[BlendMultiply]
	if got := dev.uniform(multiply.id, SamplerUniform); got != int32(1) {
		t.Errorf("source sampler unit = %v, want 1", got)
	}
	if got := dev.uniform(multiply.id, BackSamplerUniform); got != int32(2) {
		t.Errorf("backdrop sampler unit = %v, want 2", got)
	}
	for _, dc := range dev.drawsWith(multiply.id) {
		if dc.units[0] != parked {
			t.Errorf("cover pass rebound unit 0 to %d", dc.units[0])
		}
	}
}

func TestCoverModeWithSingleSampler(t *testing.T) {
	dev := newRecordingDevice(1)
	r := newTestRenderer(t, dev, nil)
	if r.Samplers() != 1 {
		t.Fatalf("samplers = %d, want 1", r.Samplers())
	}
	root := NewContainer("root")
	root.AddChild(NewBitmap("a", newSpySource("a", 4, 4)))
	m := NewBitmap("m", newSpySource("m", 4, 4))
	m.BlendMode = BlendMultiply
	root.AddChild(m)
	root.AddChild(NewBitmap("c", newSpySource("c", 4, 4)))

	for frame := 1; frame <= 2; frame++ {
		r.RenderFrame(root)
		st := r.Stats()
		if st.CoverDraws != 1 {
			t.Errorf("frame %d: cover draws = %d, want 1", frame, st.CoverDraws)
		}
		if st.Vertices != 18 {
			t.Errorf("frame %d: vertices = %d, want 18", frame, st.Vertices)
		}
	}
	multiply := r.shaders.cover[BlendMultiply]
	if got := dev.uniform(multiply.id, BackSamplerUniform); got != int32(1) {
		t.Errorf("backdrop sampler unit = %v, want 1", got)
	}
}

func TestAllSlotsProtectedPanics(t *testing.T) {
	dev := newRecordingDevice(2)
	r := newTestRenderer(t, dev, nil)
	r.ProtectTextureSlot(0, true)
	r.ProtectTextureSlot(1, true)
	root := NewContainer("root")
	root.AddChild(NewBitmap("b", newSpySource("b", 2, 2)))
	expectPanic(t, "all slots protected", func() { r.RenderFrame(root) })
}

// --- Lifecycle ---

func TestRenderFrameMisuse(t *testing.T) {
	dev := newRecordingDevice(4)
	r, err := New(dev, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	root := NewContainer("root")
	expectPanic(t, "before ResizeViewport", func() { r.RenderFrame(root) })
	expectPanic(t, "zero viewport", func() { r.ResizeViewport(0, 10) })
	r.ResizeViewport(10, 10)
	expectPanic(t, "nil root", func() { r.RenderFrame(nil) })
}

func TestRelease(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	root.AddChild(NewBitmap("a", newSpySource("a", 4, 4)))
	cached := NewContainer("cached")
	cached.AddChild(NewBitmap("b", newSpySource("b", 4, 4)))
	cached.SetCache(Rect{Width: 4, Height: 4}, 1)
	root.AddChild(cached)
	r.RenderFrame(root)
	if cached.Cache() == nil || cached.Cache().State() != CacheFinalized {
		t.Fatal("cache was not built")
	}

	r.Release()
	if len(dev.textures) != 0 {
		t.Errorf("%d textures left on the device", len(dev.textures))
	}
	if len(dev.framebuffers) != 0 {
		t.Errorf("%d framebuffers left on the device", len(dev.framebuffers))
	}
	if len(dev.programs) != 0 {
		t.Errorf("%d programs left on the device", len(dev.programs))
	}
	if cached.Cache() != nil {
		t.Error("released renderer left a cache on the node")
	}
	expectPanic(t, "RenderFrame after Release", func() { r.RenderFrame(root) })
	r.Release() // second call is a no-op
}

func TestResizeViewportResizesRing(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	root.AddChild(NewBitmap("a", newSpySource("a", 4, 4)))
	r.RenderFrame(root)

	r.ResizeViewport(64, 32)
	out := r.ring.get(roleOutput)
	if w, h := out.Size(); w != 64 || h != 32 {
		t.Errorf("output size = %dx%d, want 64x32", w, h)
	}
	if got := dev.textures[out.tex.id]; got != [2]int{64, 32} {
		t.Errorf("device texture size = %v, want [64 32]", got)
	}
	if w, h := r.Viewport(); w != 64 || h != 32 {
		t.Errorf("Viewport = %dx%d", w, h)
	}
}

func TestPurgeTexturesThroughRenderer(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	keep := NewBitmap("keep", newSpySource("keep", 2, 2))
	drop := NewBitmap("drop", newSpySource("drop", 2, 2))
	root := NewContainer("root")
	root.AddChild(keep)
	root.AddChild(drop)
	r.RenderFrame(root)
	root.RemoveChild(drop)
	for i := 0; i < 10; i++ {
		r.RenderFrame(root)
	}

	if n := r.PurgeTextures(50); n != 2 {
		t.Errorf("PurgeTextures(50) = %d, want 2", n)
	}
	if n := r.PurgeTextures(5); n != 1 {
		t.Errorf("PurgeTextures(5) = %d, want 1", n)
	}
	if n := r.PurgeTextures(5); n != 1 {
		t.Errorf("repeated PurgeTextures(5) = %d, want 1", n)
	}
}

func TestAutoPurge(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, func(o *Options) { o.AutoPurge = MinAutoPurge })
	drop := NewBitmap("drop", newSpySource("drop", 2, 2))
	root := NewContainer("root")
	root.AddChild(drop)
	r.RenderFrame(root)
	root.RemoveChild(drop)
	for i := 0; i < 3*MinAutoPurge; i++ {
		r.RenderFrame(root)
	}
	if r.Stats().Textures != 0 {
		t.Errorf("textures = %d, want 0 after automatic purge", r.Stats().Textures)
	}
}

func TestZeroOptionsKeepDefaultPurgeAge(t *testing.T) {
	dev := newRecordingDevice(4)
	r, err := New(dev, Options{})
	if err != nil {
		t.Fatal(err)
	}
	r.ResizeViewport(100, 100)
	if r.opts.AutoPurge != DefaultAutoPurge {
		t.Errorf("AutoPurge = %d, want %d", r.opts.AutoPurge, DefaultAutoPurge)
	}

	hidden := NewBitmap("hidden", newSpySource("hidden", 2, 2))
	root := NewContainer("root")
	root.AddChild(hidden)
	r.RenderFrame(root)
	hidden.Visible = false
	for i := 0; i < 20; i++ {
		r.RenderFrame(root)
	}
	if r.Stats().Textures != 1 {
		t.Errorf("textures = %d, want 1 after 20 hidden frames", r.Stats().Textures)
	}
}

func TestReleaseTexture(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	group := NewContainer("group")
	group.AddChild(NewBitmap("a", newSpySource("a", 2, 2)))
	group.AddChild(NewSprite("s", NewGridSpriteSheet(newSpySource("sheet", 4, 4), 2, 2), 0))
	root.AddChild(group)
	root.AddChild(NewBitmap("other", newSpySource("other", 2, 2)))
	r.RenderFrame(root)

	r.ReleaseTexture(group, false)
	if r.textures.count() != 1 {
		t.Errorf("textures = %d, want 1", r.textures.count())
	}
	if _, ok := r.textures.byKey["other"]; !ok {
		t.Error("texture outside the subtree was released")
	}
}

func TestFrameObserver(t *testing.T) {
	dev := newRecordingDevice(4)
	obs := &countingObserver{}
	r := newTestRenderer(t, dev, func(o *Options) { o.Observer = obs })
	root := NewContainer("root")
	root.AddChild(NewBitmap("a", newSpySource("a", 2, 2)))
	r.RenderFrame(root)
	r.RenderFrame(root)

	if len(obs.frames) != 2 || obs.frames[1] != 2 {
		t.Errorf("observed frames = %v, want [1 2]", obs.frames)
	}
	if obs.last.Vertices != 6 {
		t.Errorf("observed vertices = %d, want 6", obs.last.Vertices)
	}
}

type countingObserver struct {
	frames []int
	last   FrameStats
}

func (o *countingObserver) FrameRendered(frame int, st FrameStats) {
	o.frames = append(o.frames, frame)
	o.last = st
}

func TestDebugWarnsDeepTree(t *testing.T) {
	dev := newRecordingDevice(4)
	log, buf := captureLogger()
	r := newTestRenderer(t, dev, func(o *Options) {
		o.Debug = true
		o.Logger = log
	})
	root := NewContainer("root")
	n := root
	for i := 0; i < debugMaxTreeDepth+2; i++ {
		c := NewContainer("level")
		n.AddChild(c)
		n = c
	}
	n.AddChild(NewBitmap("leaf", newSpySource("leaf", 2, 2)))
	r.RenderFrame(root)

	out := buf.String()
	if !strings.Contains(out, "deep tree") {
		t.Error("expected a deep tree warning")
	}
	if !strings.Contains(out, "stagegl: frame") {
		t.Error("expected per-frame debug stats")
	}
}
