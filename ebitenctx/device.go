// Package ebitenctx implements the stagegl Device on Ebitengine. Textures
// and framebuffers are ebiten images, programs are Kage shaders, and the
// default framebuffer is the screen image passed to SetScreen each frame.
//
// Kage has no vertex stage: the device applies the projection uniform on
// the CPU and hands Ebitengine target pixels. Batch draws are split into
// runs of triangles sampling the same slot, one DrawTrianglesShader call
// per run.
package ebitenctx

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/stagegl"
)

// Attribute locations are fixed; Kage programs have no attribute lookup.
const (
	locPosition = iota
	locUV
	locTextureIndex
	locAlpha
	locCount
)

const (
	// MaxTextureUnits is the number of sampler slots the device reports.
	MaxTextureUnits = 16
	// MaxTextureSize is the largest texture edge the device accepts.
	MaxTextureSize = 8192
)

type shaderProgram struct {
	shader  *ebiten.Shader
	indexed bool

	locs   map[string]int
	names  []string
	values map[string]any
}

// Device is a stagegl.Device drawing with Ebitengine.
type Device struct {
	log *slog.Logger

	screen   *ebiten.Image
	textures map[stagegl.TextureID]*ebiten.Image
	nextTex  stagegl.TextureID
	fbs      map[stagegl.FramebufferID]stagegl.TextureID
	nextFB   stagegl.FramebufferID

	programs map[stagegl.ProgramID]*shaderProgram
	nextProg stagegl.ProgramID
	current  *shaderProgram

	fb       stagegl.FramebufferID
	viewport [4]int
	units    [MaxTextureUnits]stagegl.TextureID
	blend    ebiten.Blend
	attribs  [locCount][]float32

	vertices []ebiten.Vertex
	indices  []uint16
	opts     ebiten.DrawTrianglesShaderOptions
}

// New returns a device. Call SetScreen before every frame.
func New() *Device {
	return &Device{
		log:      stagegl.Logger(),
		textures: make(map[stagegl.TextureID]*ebiten.Image),
		fbs:      make(map[stagegl.FramebufferID]stagegl.TextureID),
		programs: make(map[stagegl.ProgramID]*shaderProgram),
		blend:    ebiten.BlendSourceOver,
	}
}

// SetScreen sets the image framebuffer 0 draws into.
func (d *Device) SetScreen(screen *ebiten.Image) {
	d.screen = screen
}

func (d *Device) Caps() stagegl.Caps {
	return stagegl.Caps{
		BottomLeftOrigin: false,
		MaxTextureSize:   MaxTextureSize,
		MaxTextureUnits:  MaxTextureUnits,
		Dialect:          stagegl.DialectKage,
	}
}

// --- Textures ---

func (d *Device) NewTexture(width, height int) (stagegl.TextureID, error) {
	if width <= 0 || height <= 0 || width > MaxTextureSize || height > MaxTextureSize {
		return 0, fmt.Errorf("ebitenctx: texture size %dx%d", width, height)
	}
	d.nextTex++
	d.textures[d.nextTex] = ebiten.NewImage(width, height)
	return d.nextTex, nil
}

func (d *Device) UploadTexture(id stagegl.TextureID, width, height int, pix []byte) error {
	img, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("ebitenctx: unknown texture %d", id)
	}
	if width <= 0 || height <= 0 || width > MaxTextureSize || height > MaxTextureSize {
		return fmt.Errorf("ebitenctx: texture size %dx%d", width, height)
	}
	if pix != nil && len(pix) < 4*width*height {
		return fmt.Errorf("ebitenctx: %d bytes for a %dx%d texture", len(pix), width, height)
	}
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != width || h != height {
		img.Deallocate()
		img = ebiten.NewImage(width, height)
		d.textures[id] = img
	}
	if pix != nil {
		img.WritePixels(pix[:4*width*height])
	}
	return nil
}

// SetTextureFilter is a no-op: Kage's imageSrcNAt samples the nearest
// texel.
func (d *Device) SetTextureFilter(stagegl.TextureID, bool) {}

func (d *Device) DeleteTexture(id stagegl.TextureID) {
	if img, ok := d.textures[id]; ok {
		img.Deallocate()
		delete(d.textures, id)
	}
}

func (d *Device) BindTexture(unit int, id stagegl.TextureID) {
	if unit >= 0 && unit < len(d.units) {
		d.units[unit] = id
	}
}

// --- Framebuffers ---

func (d *Device) NewFramebuffer(tex stagegl.TextureID) (stagegl.FramebufferID, error) {
	if _, ok := d.textures[tex]; !ok {
		return 0, fmt.Errorf("%w: unknown texture %d", stagegl.ErrFramebufferIncomplete, tex)
	}
	d.nextFB++
	d.fbs[d.nextFB] = tex
	return d.nextFB, nil
}

func (d *Device) DeleteFramebuffer(id stagegl.FramebufferID) {
	delete(d.fbs, id)
	if d.fb == id {
		d.fb = 0
	}
}

func (d *Device) BindFramebuffer(id stagegl.FramebufferID) { d.fb = id }

func (d *Device) Viewport(x, y, width, height int) {
	d.viewport = [4]int{x, y, width, height}
}

// target returns the image of the bound framebuffer.
func (d *Device) target() *ebiten.Image {
	if d.fb == 0 {
		return d.screen
	}
	return d.textures[d.fbs[d.fb]]
}

func (d *Device) Clear(c stagegl.Color) {
	dst := d.target()
	if dst == nil {
		return
	}
	if c.A == 0 {
		dst.Clear()
		return
	}
	dst.Fill(color.RGBA{
		R: uint8(c.R*c.A*255 + 0.5),
		G: uint8(c.G*c.A*255 + 0.5),
		B: uint8(c.B*c.A*255 + 0.5),
		A: uint8(c.A*255 + 0.5),
	})
}

func (d *Device) ReadPixels(x, y, width, height int, dst []byte) error {
	img := d.target()
	if img == nil {
		return errors.New("ebitenctx: no framebuffer bound")
	}
	if len(dst) < 4*width*height {
		return fmt.Errorf("ebitenctx: %d bytes for a %dx%d read", len(dst), width, height)
	}
	b := img.Bounds()
	if x == 0 && y == 0 && width == b.Dx() && height == b.Dy() {
		img.ReadPixels(dst[:4*width*height])
		return nil
	}
	all := make([]byte, 4*b.Dx()*b.Dy())
	img.ReadPixels(all)
	for row := 0; row < height; row++ {
		sy := y + row
		if sy < 0 || sy >= b.Dy() {
			continue
		}
		src := all[4*(sy*b.Dx()+max(x, 0)):]
		n := min(width, b.Dx()-max(x, 0))
		copy(dst[4*row*width:], src[:4*max(n, 0)])
	}
	return nil
}

// --- Programs ---

func (d *Device) NewProgram(src stagegl.ProgramSource) (stagegl.ProgramID, error) {
	s, err := ebiten.NewShader([]byte(src.Fragment))
	if err != nil {
		return 0, fmt.Errorf("ebitenctx: compile shader: %w", err)
	}
	d.nextProg++
	d.programs[d.nextProg] = &shaderProgram{
		shader:  s,
		indexed: src.Indexed,
		locs:    make(map[string]int),
		values:  make(map[string]any),
	}
	return d.nextProg, nil
}

func (d *Device) DeleteProgram(id stagegl.ProgramID) {
	p, ok := d.programs[id]
	if !ok {
		return
	}
	p.shader.Deallocate()
	if d.current == p {
		d.current = nil
	}
	delete(d.programs, id)
}

func (d *Device) UseProgram(id stagegl.ProgramID) { d.current = d.programs[id] }

func (d *Device) AttribLocation(id stagegl.ProgramID, name string) int {
	p := d.programs[id]
	switch name {
	case stagegl.AttribPosition:
		return locPosition
	case stagegl.AttribUV:
		return locUV
	case stagegl.AttribAlpha:
		return locAlpha
	case stagegl.AttribTextureIndex:
		if p != nil && p.indexed {
			return locTextureIndex
		}
	}
	return -1
}

// UniformLocation assigns locations on first lookup. Ebitengine ignores
// uniforms a shader does not declare.
func (d *Device) UniformLocation(id stagegl.ProgramID, name string) int {
	p, ok := d.programs[id]
	if !ok {
		return -1
	}
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	loc := len(p.names)
	p.names = append(p.names, name)
	p.locs[name] = loc
	return loc
}

func (d *Device) SetUniform(loc int, v any) {
	p := d.current
	if p == nil || loc < 0 || loc >= len(p.names) {
		return
	}
	p.values[p.names[loc]] = v
}

// --- Drawing ---

var blendFactors = [...]ebiten.BlendFactor{
	stagegl.BlendFactorZero:             ebiten.BlendFactorZero,
	stagegl.BlendFactorOne:              ebiten.BlendFactorOne,
	stagegl.BlendFactorSrcColor:         ebiten.BlendFactorSourceColor,
	stagegl.BlendFactorOneMinusSrcColor: ebiten.BlendFactorOneMinusSourceColor,
	stagegl.BlendFactorSrcAlpha:         ebiten.BlendFactorSourceAlpha,
	stagegl.BlendFactorOneMinusSrcAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
	stagegl.BlendFactorDstColor:         ebiten.BlendFactorDestinationColor,
	stagegl.BlendFactorOneMinusDstColor: ebiten.BlendFactorOneMinusDestinationColor,
	stagegl.BlendFactorDstAlpha:         ebiten.BlendFactorDestinationAlpha,
	stagegl.BlendFactorOneMinusDstAlpha: ebiten.BlendFactorOneMinusDestinationAlpha,
}

var blendOperations = [...]ebiten.BlendOperation{
	stagegl.BlendEquationAdd:             ebiten.BlendOperationAdd,
	stagegl.BlendEquationSubtract:        ebiten.BlendOperationSubtract,
	stagegl.BlendEquationReverseSubtract: ebiten.BlendOperationReverseSubtract,
}

func (d *Device) SetBlend(b stagegl.BlendState) {
	if b.Disable {
		d.blend = ebiten.BlendCopy
		return
	}
	op := blendOperations[b.Equation]
	d.blend = ebiten.Blend{
		BlendFactorSourceRGB:        blendFactors[b.SrcRGB],
		BlendFactorSourceAlpha:      blendFactors[b.SrcAlpha],
		BlendFactorDestinationRGB:   blendFactors[b.DstRGB],
		BlendFactorDestinationAlpha: blendFactors[b.DstAlpha],
		BlendOperationRGB:           op,
		BlendOperationAlpha:         op,
	}
}

// BindVertexAttrib keeps a reference to data until the next draw.
func (d *Device) BindVertexAttrib(loc, _ int, data []float32) {
	if loc >= 0 && loc < locCount {
		d.attribs[loc] = data
	}
}

func (d *Device) DrawTriangles(first, count int) {
	defer d.resetAttribs()
	p := d.current
	dst := d.target()
	if p == nil || dst == nil || count <= 0 {
		return
	}
	pos, uv, alpha := d.attribs[locPosition], d.attribs[locUV], d.attribs[locAlpha]
	if len(pos) < 2*(first+count) || len(uv) < 2*(first+count) {
		d.log.Warn("ebitenctx: draw exceeds bound attributes", "first", first, "count", count)
		return
	}
	proj, _ := p.values[stagegl.ProjectionUniform].(stagegl.Mat4)

	d.opts.Blend = d.blend
	d.opts.Uniforms = d.uniforms(p)

	if !p.indexed {
		d.opts.Images = [4]*ebiten.Image{d.unitImage(p, stagegl.SamplerUniform, 0), d.unitImage(p, stagegl.BackSamplerUniform, 1)}
		d.drawRun(dst, p, &proj, pos, uv, alpha, first, first+count)
		return
	}

	index := d.attribs[locTextureIndex]
	// Every card's six vertices share a slot, so runs end on triangle
	// boundaries.
	start := first
	for start < first+count {
		slot := slotAt(index, start)
		end := start + 3
		for end < first+count && slotAt(index, end) == slot {
			end += 3
		}
		img := d.units[0]
		if slot >= 0 && slot < len(d.units) {
			img = d.units[slot]
		}
		d.opts.Images = [4]*ebiten.Image{d.textures[img]}
		d.drawRun(dst, p, &proj, pos, uv, alpha, start, min(end, first+count))
		start = end
	}
}

func slotAt(index []float32, v int) int {
	if v < len(index) {
		return int(index[v] + 0.5)
	}
	return 0
}

// unitImage returns the image bound to the unit a sampler uniform names,
// or to fallback when the uniform is unset.
func (d *Device) unitImage(p *shaderProgram, uniform string, fallback int) *ebiten.Image {
	unit := fallback
	if v, ok := p.values[uniform].(int32); ok {
		unit = int(v)
	}
	if unit < 0 || unit >= len(d.units) {
		return nil
	}
	return d.textures[d.units[unit]]
}

// uniforms converts the program's values into Ebitengine uniforms,
// skipping the ones the device handles itself.
func (d *Device) uniforms(p *shaderProgram) map[string]any {
	u := make(map[string]any, len(p.values))
	for name, v := range p.values {
		switch name {
		case stagegl.ProjectionUniform, stagegl.SamplerUniform, stagegl.BackSamplerUniform:
			continue
		}
		switch v := v.(type) {
		case stagegl.Vec2:
			u[name] = v[:]
		case stagegl.Vec4:
			u[name] = v[:]
		case stagegl.Mat4:
			u[name] = v[:]
		default:
			u[name] = v
		}
	}
	return u
}

// drawRun draws vertices [start, end) with the images already set in opts.
// Clip-space positions are mapped back to target pixels through the
// viewport.
func (d *Device) drawRun(dst *ebiten.Image, p *shaderProgram, m *stagegl.Mat4, pos, uv, alpha []float32, start, end int) {
	var sw, sh float32 = 1, 1
	if src := d.opts.Images[0]; src != nil {
		b := src.Bounds()
		sw, sh = float32(b.Dx()), float32(b.Dy())
	}
	vx, vy := float32(d.viewport[0]), float32(d.viewport[1])
	vw, vh := float32(d.viewport[2]), float32(d.viewport[3])

	d.vertices = d.vertices[:0]
	d.indices = d.indices[:0]
	for i := start; i < end; i++ {
		x, y := pos[2*i], pos[2*i+1]
		cx := m[0]*x + m[4]*y + m[12]
		cy := m[1]*x + m[5]*y + m[13]
		a := float32(1)
		if i < len(alpha) {
			a = alpha[i]
		}
		d.vertices = append(d.vertices, ebiten.Vertex{
			DstX:   vx + (cx+1)/2*vw,
			DstY:   vy + (1-cy)/2*vh,
			SrcX:   uv[2*i] * sw,
			SrcY:   uv[2*i+1] * sh,
			ColorR: a,
			ColorG: a,
			ColorB: a,
			ColorA: a,
		})
		d.indices = append(d.indices, uint16(i-start))
	}
	dst.DrawTrianglesShader(d.vertices, d.indices, p.shader, &d.opts)
}

func (d *Device) resetAttribs() {
	for i := range d.attribs {
		d.attribs[i] = nil
	}
}

func (d *Device) Release() {
	for id := range d.programs {
		d.DeleteProgram(id)
	}
	for id := range d.textures {
		d.DeleteTexture(id)
	}
	clear(d.fbs)
	d.screen = nil
}

var _ stagegl.Device = (*Device)(nil)
