package stagegl

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

// drawCall is one DrawTriangles recorded by recordingDevice.
type drawCall struct {
	program ProgramID
	fb      FramebufferID
	count   int
	blend   BlendState
	units   map[int]TextureID

	pos, uv, index, alpha []float32
}

// recordingDevice is an in-memory Device that records every draw and can be
// told to fail.
type recordingDevice struct {
	caps Caps

	nextID       uint32
	textures     map[TextureID][2]int
	uploads      map[TextureID]int
	lastUpload   map[TextureID][]byte
	linear       map[TextureID]bool
	framebuffers map[FramebufferID]TextureID
	programs     map[ProgramID]ProgramSource
	uniformNames map[ProgramID]map[string]int
	uniforms     map[ProgramID]map[int]any
	deleted      []TextureID

	current ProgramID
	fb      FramebufferID
	units   map[int]TextureID
	blend   BlendState
	attribs map[int][]float32

	draws      []drawCall
	clears     int
	reads      int
	readPixel  [4]byte
	released   bool
	failNewTex bool
	failUpload bool
	failFB     bool
	// failProgram rejects matching program sources.
	failProgram func(ProgramSource) bool
}

func newRecordingDevice(units int) *recordingDevice {
	return &recordingDevice{
		caps: Caps{
			BottomLeftOrigin: true,
			MaxTextureSize:   4096,
			MaxTextureUnits:  units,
			Dialect:          DialectGLSL,
		},
		textures:     make(map[TextureID][2]int),
		uploads:      make(map[TextureID]int),
		lastUpload:   make(map[TextureID][]byte),
		linear:       make(map[TextureID]bool),
		framebuffers: make(map[FramebufferID]TextureID),
		programs:     make(map[ProgramID]ProgramSource),
		uniformNames: make(map[ProgramID]map[string]int),
		uniforms:     make(map[ProgramID]map[int]any),
		units:        make(map[int]TextureID),
		attribs:      make(map[int][]float32),
	}
}

func (d *recordingDevice) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *recordingDevice) Caps() Caps { return d.caps }

func (d *recordingDevice) NewTexture(w, h int) (TextureID, error) {
	if d.failNewTex {
		return 0, errors.New("out of memory")
	}
	id := TextureID(d.id())
	d.textures[id] = [2]int{w, h}
	return id, nil
}

func (d *recordingDevice) UploadTexture(id TextureID, w, h int, pix []byte) error {
	if d.failUpload {
		return errors.New("upload rejected")
	}
	if _, ok := d.textures[id]; !ok {
		return fmt.Errorf("unknown texture %d", id)
	}
	d.textures[id] = [2]int{w, h}
	d.uploads[id]++
	if pix != nil {
		d.lastUpload[id] = append([]byte(nil), pix...)
	}
	return nil
}

func (d *recordingDevice) SetTextureFilter(id TextureID, linear bool) { d.linear[id] = linear }

func (d *recordingDevice) DeleteTexture(id TextureID) {
	delete(d.textures, id)
	d.deleted = append(d.deleted, id)
}

func (d *recordingDevice) NewFramebuffer(tex TextureID) (FramebufferID, error) {
	if d.failFB {
		return 0, ErrFramebufferIncomplete
	}
	id := FramebufferID(d.id())
	d.framebuffers[id] = tex
	return id, nil
}

func (d *recordingDevice) DeleteFramebuffer(id FramebufferID) { delete(d.framebuffers, id) }
func (d *recordingDevice) BindFramebuffer(id FramebufferID)   { d.fb = id }
func (d *recordingDevice) Viewport(x, y, w, h int)            {}
func (d *recordingDevice) Clear(Color)                        { d.clears++ }

func (d *recordingDevice) NewProgram(src ProgramSource) (ProgramID, error) {
	if d.failProgram != nil && d.failProgram(src) {
		return 0, errors.New("compile error")
	}
	id := ProgramID(d.id())
	d.programs[id] = src
	d.uniformNames[id] = make(map[string]int)
	d.uniforms[id] = make(map[int]any)
	return id, nil
}

func (d *recordingDevice) DeleteProgram(id ProgramID) { delete(d.programs, id) }
func (d *recordingDevice) UseProgram(id ProgramID)    { d.current = id }

func (d *recordingDevice) AttribLocation(p ProgramID, name string) int {
	switch name {
	case AttribPosition:
		return 0
	case AttribUV:
		return 1
	case AttribTextureIndex:
		if d.programs[p].Indexed {
			return 2
		}
	case AttribAlpha:
		return 3
	}
	return -1
}

func (d *recordingDevice) UniformLocation(p ProgramID, name string) int {
	names, ok := d.uniformNames[p]
	if !ok {
		return -1
	}
	if loc, ok := names[name]; ok {
		return loc
	}
	loc := len(names)
	names[name] = loc
	return loc
}

func (d *recordingDevice) SetUniform(loc int, v any) {
	if loc < 0 || d.uniforms[d.current] == nil {
		return
	}
	d.uniforms[d.current][loc] = v
}

// uniform returns the last value set for name on program p.
func (d *recordingDevice) uniform(p ProgramID, name string) any {
	loc, ok := d.uniformNames[p][name]
	if !ok {
		return nil
	}
	return d.uniforms[p][loc]
}

func (d *recordingDevice) BindTexture(unit int, id TextureID) { d.units[unit] = id }
func (d *recordingDevice) SetBlend(b BlendState)              { d.blend = b }

func (d *recordingDevice) BindVertexAttrib(loc, size int, data []float32) {
	d.attribs[loc] = append([]float32(nil), data...)
}

func (d *recordingDevice) DrawTriangles(first, count int) {
	units := make(map[int]TextureID, len(d.units))
	for k, v := range d.units {
		units[k] = v
	}
	d.draws = append(d.draws, drawCall{
		program: d.current,
		fb:      d.fb,
		count:   count,
		blend:   d.blend,
		units:   units,
		pos:     d.attribs[0],
		uv:      d.attribs[1],
		index:   d.attribs[2],
		alpha:   d.attribs[3],
	})
	clear(d.attribs)
}

func (d *recordingDevice) ReadPixels(x, y, w, h int, dst []byte) error {
	d.reads++
	for i := 0; i+3 < len(dst) && i < 4*w*h; i += 4 {
		copy(dst[i:i+4], d.readPixel[:])
	}
	return nil
}

func (d *recordingDevice) Release() { d.released = true }

var _ Device = (*recordingDevice)(nil)

// drawsWith returns the recorded draws made with program p.
func (d *recordingDevice) drawsWith(p ProgramID) []drawCall {
	var out []drawCall
	for _, dc := range d.draws {
		if dc.program == p {
			out = append(out, dc)
		}
	}
	return out
}

// --- Test sources ---

// spySource is an image source that counts calls.
type spySource struct {
	key         string
	w, h        int
	notReady    bool
	dirty       bool
	keyCalls    int
	pixelsCalls int
}

func newSpySource(key string, w, h int) *spySource {
	return &spySource{key: key, w: w, h: h}
}

func (s *spySource) SourceKey() string {
	s.keyCalls++
	return s.key
}

func (s *spySource) Size() (int, int) { return s.w, s.h }
func (s *spySource) Ready() bool      { return !s.notReady }

func (s *spySource) Pixels() ([]byte, error) {
	s.pixelsCalls++
	return make([]byte, 4*s.w*s.h), nil
}

func (s *spySource) NeedsUpload() bool { return s.dirty }
func (s *spySource) MarkUploaded()     { s.dirty = false }

// --- Helpers ---

// newTestRenderer returns a renderer over dev with a 100x100 viewport and the
// automatic purge disabled.
func newTestRenderer(t *testing.T, dev *recordingDevice, configure func(*Options)) *Renderer {
	t.Helper()
	opts := DefaultOptions()
	opts.AutoPurge = AutoPurgeDisabled
	if configure != nil {
		configure(&opts)
	}
	r, err := New(dev, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.ResizeViewport(100, 100)
	return r
}

// captureLogger returns a logger writing text records at debug level to
// the returned buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// expectPanic fails the test unless fn panics.
func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}
