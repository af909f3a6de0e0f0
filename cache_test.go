package stagegl

import (
	"strings"
	"testing"
)

func cachedGroup(children int) *Node {
	g := NewContainer("group")
	for i := 0; i < children; i++ {
		b := NewBitmap("b", newSpySource("shared", 4, 4))
		b.X = float64(i * 4)
		g.AddChild(b)
	}
	return g
}

func TestCacheGeneration(t *testing.T) {
	n := cachedGroup(1)
	n.SetCache(Rect{Width: 4, Height: 4}, 1)
	c := n.Cache()
	if c.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", c.Generation())
	}
	n.UpdateCache()
	n.UpdateCache()
	if c.Generation() != 3 {
		t.Errorf("generation = %d, want 3", c.Generation())
	}
	if c.Scale() != 1 {
		t.Errorf("scale = %v, want 1", c.Scale())
	}
	n.Uncache()
	if n.Cache() != nil {
		t.Error("Uncache left a cache")
	}
	n.UpdateCache() // no-op without a cache
}

func TestSetCacheNonPositiveScale(t *testing.T) {
	n := cachedGroup(1)
	n.SetCache(Rect{Width: 4, Height: 4}, 0)
	if n.Cache().Scale() != 1 {
		t.Errorf("scale = %v, want 1", n.Cache().Scale())
	}
}

func TestSetCacheAutoWithoutBounds(t *testing.T) {
	if NewContainer("empty").SetCacheAuto(1) {
		t.Error("SetCacheAuto on an empty container should fail")
	}
}

func TestCacheStateString(t *testing.T) {
	tests := []struct {
		s    CacheState
		want string
	}{
		{CacheIdle, "idle"},
		{CacheSizing, "sizing"},
		{CacheRendering, "rendering"},
		{CacheFilterPass, "filterPass"},
		{CacheFinalized, "finalized"},
		{CacheState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("CacheState(%d) = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestCacheRebuildsOnlyWhenStale(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	g := cachedGroup(3)
	g.SetCacheAuto(1)
	root.AddChild(g)

	r.RenderFrame(root)
	st := r.Stats()
	if st.CacheBuilds != 1 {
		t.Errorf("frame 1: cache builds = %d, want 1", st.CacheBuilds)
	}
	if st.FlushReasons[string(reasonCacheDraw)] != 1 {
		t.Errorf("frame 1: cacheDraw flushes = %d, want 1", st.FlushReasons[string(reasonCacheDraw)])
	}
	if g.Cache().State() != CacheFinalized {
		t.Errorf("state = %v, want finalized", g.Cache().State())
	}

	r.RenderFrame(root)
	st = r.Stats()
	if st.CacheBuilds != 0 {
		t.Errorf("frame 2: cache builds = %d, want 0", st.CacheBuilds)
	}
	if st.Vertices != 6 {
		t.Errorf("frame 2: vertices = %d, want 6 for one cache card", st.Vertices)
	}

	g.UpdateCache()
	r.RenderFrame(root)
	if st := r.Stats(); st.CacheBuilds != 1 {
		t.Errorf("after UpdateCache: cache builds = %d, want 1", st.CacheBuilds)
	}
}

func TestCacheSurfaceSize(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	g := cachedGroup(2)
	g.SetCache(Rect{Width: 8, Height: 4}, 2)
	root.AddChild(g)
	r.RenderFrame(root)

	c := g.Cache()
	if w, h := c.final.Size(); w != 16 || h != 8 {
		t.Errorf("surface = %dx%d, want 16x8", w, h)
	}
	if got := c.Bounds(); got != (Rect{Width: 8, Height: 4}) {
		t.Errorf("Bounds = %+v", got)
	}

	// The cache card covers the region at scale 1 on the stage.
	last := dev.drawsWith(r.shaders.batch.id)
	dc := last[len(last)-1]
	if got := [2]float32{dc.pos[10], dc.pos[11]}; got != [2]float32{8, 4} {
		t.Errorf("cache card BR = %v, want [8 4]", got)
	}
}

func TestCacheDataURL(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	root := NewContainer("root")
	g := cachedGroup(1)
	g.SetCacheAuto(1)
	root.AddChild(g)

	if _, err := g.Cache().DataURL(); err == nil {
		t.Error("DataURL before the first draw should fail")
	}

	r.RenderFrame(root)
	url, err := g.Cache().DataURL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("DataURL = %.30q", url)
	}
	reads := dev.reads
	again, _ := g.Cache().DataURL()
	if dev.reads != reads || again != url {
		t.Error("DataURL should be memoized within a generation")
	}

	g.UpdateCache()
	if _, err := g.Cache().DataURL(); err != nil {
		t.Fatal(err)
	}
	if dev.reads != reads+1 {
		t.Errorf("reads = %d, want %d after UpdateCache", dev.reads, reads+1)
	}
	if g.Cache().stale {
		t.Error("DataURL should rebuild a stale cache")
	}
}

func TestCacheOwnedByAnotherRenderer(t *testing.T) {
	dev := newRecordingDevice(4)
	log, buf := captureLogger()
	owner := newTestRenderer(t, dev, nil)
	other := newTestRenderer(t, dev, func(o *Options) { o.Logger = log })

	g := cachedGroup(3)
	g.SetCacheAuto(1)
	root := NewContainer("root")
	root.AddChild(g)
	owner.RenderFrame(root)

	other.RenderFrame(root)
	other.RenderFrame(root)
	st := other.Stats()
	if st.CacheBuilds != 0 {
		t.Errorf("cache builds = %d, want 0", st.CacheBuilds)
	}
	if st.Vertices != 18 {
		t.Errorf("vertices = %d, want 18 for the uncached children", st.Vertices)
	}
	if n := strings.Count(buf.String(), "another renderer"); n != 1 {
		t.Errorf("ownership warnings = %d, want 1", n)
	}

	owner.RenderFrame(root)
	if st := owner.Stats(); st.Vertices != 6 {
		t.Errorf("owner vertices = %d, want 6; the cache should still be usable", st.Vertices)
	}
}

func TestCacheFallsBackWhenTargetsFail(t *testing.T) {
	dev := newRecordingDevice(4)
	log, buf := captureLogger()
	r := newTestRenderer(t, dev, func(o *Options) { o.Logger = log })
	dev.failFB = true

	g := cachedGroup(2)
	g.SetCacheAuto(1)
	root := NewContainer("root")
	root.AddChild(g)
	r.RenderFrame(root)

	st := r.Stats()
	if st.CacheBuilds != 0 {
		t.Errorf("cache builds = %d, want 0", st.CacheBuilds)
	}
	if st.Vertices != 12 {
		t.Errorf("vertices = %d, want 12", st.Vertices)
	}
	if !strings.Contains(buf.String(), "caching failed") {
		t.Error("expected a caching failure warning")
	}
	if g.Cache().State() != CacheIdle {
		t.Errorf("state = %v, want idle", g.Cache().State())
	}
}

func TestUncacheReleasesTargets(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, func(o *Options) { o.DirectDraw = true })
	g := cachedGroup(1)
	g.SetCacheAuto(1)
	root := NewContainer("root")
	root.AddChild(g)
	r.RenderFrame(root)
	if len(dev.framebuffers) != 1 {
		t.Fatalf("framebuffers = %d, want 1", len(dev.framebuffers))
	}
	g.Uncache()
	if len(dev.framebuffers) != 0 {
		t.Errorf("framebuffers = %d after Uncache, want 0", len(dev.framebuffers))
	}
}
