//go:build !js

// Package glctx implements the stagegl Device on desktop OpenGL 3.3 core
// through go-gl. A GL context must be current on the calling thread; see
// NewWindow for a GLFW window that provides one.
package glctx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/phanxgames/stagegl"
)

// Device is a stagegl.Device backed by the current OpenGL context. The
// highest texture unit is kept for uploads so binding a texture for upload
// never disturbs the batch's sampler slots.
type Device struct {
	caps    stagegl.Caps
	scratch uint32
	vao     uint32
	vbos    map[int]uint32
	enabled []uint32

	fb        uint32
	viewportH map[uint32]int
	released  bool
}

// New initializes the GL bindings for the current context and returns a
// device for it.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", stagegl.ErrNoDevice, err)
	}
	var units, maxSize int32
	gl.GetIntegerv(gl.MAX_TEXTURE_IMAGE_UNITS, &units)
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxSize)
	if units < 2 {
		return nil, fmt.Errorf("%w: %d texture units", stagegl.ErrNoDevice, units)
	}

	d := &Device{
		caps: stagegl.Caps{
			BottomLeftOrigin: true,
			MaxTextureSize:   int(maxSize),
			MaxTextureUnits:  int(units) - 1,
			Dialect:          stagegl.DialectGLSL,
		},
		scratch:   uint32(units) - 1,
		vbos:      make(map[int]uint32),
		viewportH: make(map[uint32]int),
	}
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)

	stagegl.Logger().Info("glctx: device ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"textureUnits", units)
	return d, nil
}

func (d *Device) Caps() stagegl.Caps { return d.caps }

// --- Textures ---

func (d *Device) bindScratch(id uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + d.scratch)
	gl.BindTexture(gl.TEXTURE_2D, id)
}

func (d *Device) NewTexture(width, height int) (stagegl.TextureID, error) {
	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return 0, errors.New("glctx: glGenTextures returned 0")
	}
	d.bindScratch(id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	return stagegl.TextureID(id), nil
}

func (d *Device) UploadTexture(id stagegl.TextureID, width, height int, pix []byte) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("glctx: texture size %dx%d", width, height)
	}
	if pix != nil && len(pix) < 4*width*height {
		return fmt.Errorf("glctx: %d bytes for a %dx%d texture", len(pix), width, height)
	}
	if d.caps.MaxTextureSize > 0 && (width > d.caps.MaxTextureSize || height > d.caps.MaxTextureSize) {
		return fmt.Errorf("glctx: texture %dx%d exceeds %d", width, height, d.caps.MaxTextureSize)
	}
	d.bindScratch(uint32(id))
	ptr := gl.Ptr(nil)
	if pix != nil {
		ptr = gl.Ptr(pix)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, ptr)
	return glError("glTexImage2D")
}

func (d *Device) SetTextureFilter(id stagegl.TextureID, linear bool) {
	d.bindScratch(uint32(id))
	f := int32(gl.NEAREST)
	if linear {
		f = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, f)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, f)
}

func (d *Device) DeleteTexture(id stagegl.TextureID) {
	t := uint32(id)
	gl.DeleteTextures(1, &t)
}

func (d *Device) BindTexture(unit int, id stagegl.TextureID) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(id))
}

// --- Framebuffers ---

func (d *Device) NewFramebuffer(tex stagegl.TextureID) (stagegl.FramebufferID, error) {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, uint32(tex), 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.fb)
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fb)
		return 0, fmt.Errorf("%w: status 0x%x", stagegl.ErrFramebufferIncomplete, status)
	}
	return stagegl.FramebufferID(fb), nil
}

func (d *Device) DeleteFramebuffer(id stagegl.FramebufferID) {
	fb := uint32(id)
	if fb == d.fb {
		d.BindFramebuffer(0)
	}
	gl.DeleteFramebuffers(1, &fb)
	delete(d.viewportH, fb)
}

func (d *Device) BindFramebuffer(id stagegl.FramebufferID) {
	d.fb = uint32(id)
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.fb)
}

func (d *Device) Viewport(x, y, width, height int) {
	d.viewportH[d.fb] = y + height
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (d *Device) Clear(c stagegl.Color) {
	gl.ClearColor(float32(c.R*c.A), float32(c.G*c.A), float32(c.B*c.A), float32(c.A))
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// ReadPixels reads from the bound framebuffer. Rows of the default
// framebuffer are flipped so row 0 is the top of the window; offscreen
// targets already store their top row first.
func (d *Device) ReadPixels(x, y, width, height int, dst []byte) error {
	if len(dst) < 4*width*height {
		return fmt.Errorf("glctx: %d bytes for a %dx%d read", len(dst), width, height)
	}
	glY := y
	if d.fb == 0 {
		glY = d.viewportH[0] - y - height
	}
	gl.ReadPixels(int32(x), int32(glY), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(dst))
	if err := glError("glReadPixels"); err != nil {
		return err
	}
	if d.fb == 0 {
		flipRows(dst, width, height)
	}
	return nil
}

func flipRows(pix []byte, width, height int) {
	stride := 4 * width
	tmp := make([]byte, stride)
	for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// --- Programs ---

func (d *Device) NewProgram(src stagegl.ProgramSource) (stagegl.ProgramID, error) {
	if src.Vertex == "" {
		return 0, errors.New("glctx: program has no vertex stage")
	}
	vs, err := compileShader(src.Vertex, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fs, err := compileShader(src.Fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vs)
		return 0, err
	}

	p := gl.CreateProgram()
	gl.AttachShader(p, vs)
	gl.AttachShader(p, fs)
	gl.LinkProgram(p)
	gl.DetachShader(p, vs)
	gl.DetachShader(p, fs)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(p, n, nil, gl.Str(log))
		gl.DeleteProgram(p)
		return 0, fmt.Errorf("glctx: link program: %s", strings.TrimRight(log, "\x00"))
	}
	return stagegl.ProgramID(p), nil
}

func compileShader(source string, kind uint32) (uint32, error) {
	s := gl.CreateShader(kind)
	csrc, free := gl.Strs(source + "\x00")
	gl.ShaderSource(s, 1, csrc, nil)
	free()
	gl.CompileShader(s)

	var status int32
	gl.GetShaderiv(s, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(s, n, nil, gl.Str(log))
		gl.DeleteShader(s)
		return 0, fmt.Errorf("glctx: compile shader: %s", strings.TrimRight(log, "\x00"))
	}
	return s, nil
}

func (d *Device) DeleteProgram(id stagegl.ProgramID) { gl.DeleteProgram(uint32(id)) }

func (d *Device) UseProgram(id stagegl.ProgramID) { gl.UseProgram(uint32(id)) }

func (d *Device) AttribLocation(p stagegl.ProgramID, name string) int {
	return int(gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00")))
}

func (d *Device) UniformLocation(p stagegl.ProgramID, name string) int {
	return int(gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00")))
}

func (d *Device) SetUniform(loc int, v any) {
	if loc < 0 {
		return
	}
	l := int32(loc)
	switch v := v.(type) {
	case float32:
		gl.Uniform1f(l, v)
	case int32:
		gl.Uniform1i(l, v)
	case int:
		gl.Uniform1i(l, int32(v))
	case []float32:
		if len(v) > 0 {
			gl.Uniform1fv(l, int32(len(v)), &v[0])
		}
	case []int32:
		if len(v) > 0 {
			gl.Uniform1iv(l, int32(len(v)), &v[0])
		}
	case stagegl.Vec2:
		gl.Uniform2f(l, v[0], v[1])
	case stagegl.Vec4:
		gl.Uniform4f(l, v[0], v[1], v[2], v[3])
	case stagegl.Mat4:
		gl.UniformMatrix4fv(l, 1, false, &v[0])
	default:
		stagegl.Logger().Warn("glctx: unsupported uniform type", "type", fmt.Sprintf("%T", v))
	}
}

// --- Drawing ---

var blendFactors = [...]uint32{
	stagegl.BlendFactorZero:             gl.ZERO,
	stagegl.BlendFactorOne:              gl.ONE,
	stagegl.BlendFactorSrcColor:         gl.SRC_COLOR,
	stagegl.BlendFactorOneMinusSrcColor: gl.ONE_MINUS_SRC_COLOR,
	stagegl.BlendFactorSrcAlpha:         gl.SRC_ALPHA,
	stagegl.BlendFactorOneMinusSrcAlpha: gl.ONE_MINUS_SRC_ALPHA,
	stagegl.BlendFactorDstColor:         gl.DST_COLOR,
	stagegl.BlendFactorOneMinusDstColor: gl.ONE_MINUS_DST_COLOR,
	stagegl.BlendFactorDstAlpha:         gl.DST_ALPHA,
	stagegl.BlendFactorOneMinusDstAlpha: gl.ONE_MINUS_DST_ALPHA,
}

var blendEquations = [...]uint32{
	stagegl.BlendEquationAdd:             gl.FUNC_ADD,
	stagegl.BlendEquationSubtract:        gl.FUNC_SUBTRACT,
	stagegl.BlendEquationReverseSubtract: gl.FUNC_REVERSE_SUBTRACT,
}

func (d *Device) SetBlend(b stagegl.BlendState) {
	if b.Disable {
		gl.Disable(gl.BLEND)
		return
	}
	gl.Enable(gl.BLEND)
	gl.BlendEquation(blendEquations[b.Equation])
	gl.BlendFuncSeparate(blendFactors[b.SrcRGB], blendFactors[b.DstRGB], blendFactors[b.SrcAlpha], blendFactors[b.DstAlpha])
}

// BindVertexAttrib streams data into the buffer kept for loc. Attributes
// stay enabled until the next draw.
func (d *Device) BindVertexAttrib(loc, size int, data []float32) {
	if loc < 0 || len(data) == 0 {
		return
	}
	vbo, ok := d.vbos[loc]
	if !ok {
		gl.GenBuffers(1, &vbo)
		d.vbos[loc] = vbo
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(data), gl.Ptr(data), gl.STREAM_DRAW)
	gl.EnableVertexAttribArray(uint32(loc))
	gl.VertexAttribPointer(uint32(loc), int32(size), gl.FLOAT, false, 0, nil)
	d.enabled = append(d.enabled, uint32(loc))
}

func (d *Device) DrawTriangles(first, count int) {
	gl.DrawArrays(gl.TRIANGLES, int32(first), int32(count))
	for _, loc := range d.enabled {
		gl.DisableVertexAttribArray(loc)
	}
	d.enabled = d.enabled[:0]
}

func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true
	for loc, vbo := range d.vbos {
		gl.DeleteBuffers(1, &vbo)
		delete(d.vbos, loc)
	}
	gl.DeleteVertexArrays(1, &d.vao)
}

func glError(op string) error {
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("glctx: %s: error 0x%x", op, e)
	}
	return nil
}

var _ stagegl.Device = (*Device)(nil)
