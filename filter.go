package stagegl

import (
	"fmt"
	"math"
)

// Filter is a pixel effect applied to a node's cached rendering. Each filter
// is drawn as one full-surface pass from the previous result into a fresh
// buffer. Filters are used as map keys and must be comparable; pointer
// types are.
type Filter interface {
	// FragmentBody returns the filter's fragment program for d. For GLSL it
	// is appended to a header declaring vTextureCoord, fragColor, the
	// uSampler input and uTexelSize. For Kage it is a complete shader whose
	// image 0 is the input.
	FragmentBody(d Dialect) string
}

// Padder is implemented by filters that draw outside their input bounds.
// The margins of a chain add up.
type Padder interface {
	Padding() Margins
}

// UniformSetter is implemented by filters with uniforms of their own.
type UniformSetter interface {
	SetUniforms(u *Uniforms)
}

// PixelFilter is implemented by filters with a CPU fallback, used when the
// filter program cannot be compiled. pix is premultiplied RGBA, row 0 at the
// top, of a w x h surface rendered at scale.
type PixelFilter interface {
	ApplyPixels(pix []byte, w, h int, scale float64)
}

// MultiPass is implemented by filters that need another pass after their
// own. NextPass must return the same value on every call.
type MultiPass interface {
	NextPass() Filter
}

// maxFilterPasses bounds the passes a single NextPass chain may add.
const maxFilterPasses = 16

// Uniforms sets uniforms on the program of the filter pass being drawn.
type Uniforms struct {
	dev  Device
	prog *program

	// Width and Height are the surface size in pixels.
	Width, Height int
	// Scale is the cache resolution scale.
	Scale float64
}

// Set assigns a uniform by name. Names the program does not use are
// ignored.
func (u *Uniforms) Set(name string, v any) {
	u.dev.SetUniform(u.prog.uniformLocation(u.dev, name), v)
}

// filterChain expands filters into the ordered list of passes.
func filterChain(filters []Filter) []Filter {
	var chain []Filter
	for _, f := range filters {
		for i := 0; f != nil && i < maxFilterPasses; i++ {
			chain = append(chain, f)
			mp, ok := f.(MultiPass)
			if !ok {
				break
			}
			f = mp.NextPass()
		}
	}
	return chain
}

// filterChainMargins returns the cumulative margins of a chain.
func filterChainMargins(chain []Filter) Margins {
	var m Margins
	for _, f := range chain {
		if p, ok := f.(Padder); ok {
			m = m.add(p.Padding())
		}
	}
	return m
}

func unpremultiplyPixel(p []byte) (r, g, b, a float64) {
	a = float64(p[3]) / 255
	if a == 0 {
		return 0, 0, 0, 0
	}
	return float64(p[0]) / 255 / a, float64(p[1]) / 255 / a, float64(p[2]) / 255 / a, a
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func toByte(v float64) byte {
	return byte(clamp01(v)*255 + 0.5)
}

// --- ColorMatrixFilter ---

const glslColorMatrixBody = `uniform float Matrix[20];

void main() {
	vec4 c = texture(uSampler, vTextureCoord);
	if (c.a > 0.0) {
		c.rgb /= c.a;
	}
	float r = Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4];
	float g = Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9];
	float b = Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14];
	float a = Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19];
	vec4 o = clamp(vec4(r, g, b, a), 0.0, 1.0);
	fragColor = vec4(o.rgb * o.a, o.a);
}
`

const kageColorMatrixSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	if c.a > 0 {
		c.rgb /= c.a
	}
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	o := clamp(vec4(r, g, b, a), 0, 1)
	return vec4(o.rgb*o.a, o.a)
}
`

// ColorMatrixFilter transforms colors with a 4x5 matrix in row-major order:
// [R_r, R_g, R_b, R_a, R_offset, G_r, ...]. It works on unpremultiplied
// color.
type ColorMatrixFilter struct {
	Matrix [20]float64
	buf    [20]float32
}

// NewColorMatrixFilter returns a filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{}
	f.Matrix[0], f.Matrix[6], f.Matrix[12], f.Matrix[18] = 1, 1, 1, 1
	return f
}

// SetBrightness offsets every channel by b in [-1, 1].
func (f *ColorMatrixFilter) SetBrightness(b float64) {
	f.Matrix = [20]float64{
		1, 0, 0, 0, b,
		0, 1, 0, 0, b,
		0, 0, 1, 0, b,
		0, 0, 0, 1, 0,
	}
}

// SetContrast scales contrast. 1 is unchanged, 0 is flat gray.
func (f *ColorMatrixFilter) SetContrast(c float64) {
	t := (1 - c) / 2
	f.Matrix = [20]float64{
		c, 0, 0, 0, t,
		0, c, 0, 0, t,
		0, 0, c, 0, t,
		0, 0, 0, 1, 0,
	}
}

// SetSaturation scales saturation. 1 is unchanged, 0 is grayscale.
func (f *ColorMatrixFilter) SetSaturation(s float64) {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	f.Matrix = [20]float64{
		sr + s, sg, sb, 0, 0,
		sr, sg + s, sb, 0, 0,
		sr, sg, sb + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

func (f *ColorMatrixFilter) FragmentBody(d Dialect) string {
	if d == DialectKage {
		return kageColorMatrixSrc
	}
	return glslColorMatrixBody
}

func (f *ColorMatrixFilter) SetUniforms(u *Uniforms) {
	for i, v := range f.Matrix {
		f.buf[i] = float32(v)
	}
	u.Set("Matrix", f.buf[:])
}

func (f *ColorMatrixFilter) ApplyPixels(pix []byte, w, h int, _ float64) {
	m := &f.Matrix
	for i := 0; i+3 < len(pix) && i < 4*w*h; i += 4 {
		r, g, b, a := unpremultiplyPixel(pix[i : i+4])
		nr := clamp01(m[0]*r + m[1]*g + m[2]*b + m[3]*a + m[4])
		ng := clamp01(m[5]*r + m[6]*g + m[7]*b + m[8]*a + m[9])
		nb := clamp01(m[10]*r + m[11]*g + m[12]*b + m[13]*a + m[14])
		na := clamp01(m[15]*r + m[16]*g + m[17]*b + m[18]*a + m[19])
		pix[i] = toByte(nr * na)
		pix[i+1] = toByte(ng * na)
		pix[i+2] = toByte(nb * na)
		pix[i+3] = toByte(na)
	}
}

// --- BlurFilter ---

// maxBlurRadius is the largest per-pass radius in pixels the blur programs
// sample.
const maxBlurRadius = 32

const glslBlurBody = `uniform vec2 Direction;
uniform float Radius;

void main() {
	vec4 sum = vec4(0.0);
	float n = 0.0;
	for (int i = -32; i <= 32; i++) {
		if (abs(float(i)) <= Radius) {
			sum += texture(uSampler, vTextureCoord + Direction * uTexelSize * float(i));
			n += 1.0;
		}
	}
	fragColor = sum / n;
}
`

const kageBlurSrc = `//kage:unit pixels
package main

var Direction vec2
var Radius float

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	sum := vec4(0)
	n := 0.0
	for i := -32; i <= 32; i++ {
		if abs(float(i)) <= Radius {
			sum += imageSrc0At(srcPos + Direction*float(i))
			n += 1
		}
	}
	return sum / n
}
`

// BlurFilter is a separable box blur: a horizontal pass followed by a
// vertical one. Radius is in local units and scales with the cache.
type BlurFilter struct {
	Radius   float64
	vertical *blurPass
}

// NewBlurFilter returns a blur of the given radius.
func NewBlurFilter(radius float64) *BlurFilter {
	if radius < 0 {
		radius = 0
	}
	f := &BlurFilter{Radius: radius}
	f.vertical = &blurPass{parent: f}
	return f
}

func (f *BlurFilter) FragmentBody(d Dialect) string { return blurBody(d) }

func (f *BlurFilter) Padding() Margins {
	return Margins{f.Radius, f.Radius, f.Radius, f.Radius}
}

func (f *BlurFilter) SetUniforms(u *Uniforms) {
	u.Set("Direction", Vec2{1, 0})
	u.Set("Radius", float32(blurPixels(f.Radius, u.Scale)))
}

func (f *BlurFilter) ApplyPixels(pix []byte, w, h int, scale float64) {
	boxBlur(pix, w, h, blurPixels(f.Radius, scale), true)
}

func (f *BlurFilter) NextPass() Filter {
	if f.vertical == nil {
		f.vertical = &blurPass{parent: f}
	}
	return f.vertical
}

// blurPass is the vertical half of a BlurFilter.
type blurPass struct {
	parent *BlurFilter
}

func (p *blurPass) FragmentBody(d Dialect) string { return blurBody(d) }

func (p *blurPass) SetUniforms(u *Uniforms) {
	u.Set("Direction", Vec2{0, 1})
	u.Set("Radius", float32(blurPixels(p.parent.Radius, u.Scale)))
}

func (p *blurPass) ApplyPixels(pix []byte, w, h int, scale float64) {
	boxBlur(pix, w, h, blurPixels(p.parent.Radius, scale), false)
}

func blurBody(d Dialect) string {
	if d == DialectKage {
		return kageBlurSrc
	}
	return glslBlurBody
}

func blurPixels(radius, scale float64) int {
	if scale <= 0 {
		scale = 1
	}
	return min(int(math.Round(radius*scale)), maxBlurRadius)
}

// boxBlur blurs premultiplied pixels along one axis. Samples outside the
// surface count as transparent.
func boxBlur(pix []byte, w, h, radius int, horizontal bool) {
	if radius <= 0 || w <= 0 || h <= 0 {
		return
	}
	n := w
	lines := h
	if !horizontal {
		n, lines = h, w
	}
	line := make([]int, 4*n)
	div := 2*radius + 1
	for l := 0; l < lines; l++ {
		idx := func(i int) int {
			if horizontal {
				return 4 * (l*w + i)
			}
			return 4 * (i*w + l)
		}
		for i := 0; i < n; i++ {
			p := idx(i)
			for c := 0; c < 4; c++ {
				line[4*i+c] = int(pix[p+c])
			}
		}
		var sum [4]int
		for i := -radius; i <= radius; i++ {
			if i >= 0 && i < n {
				for c := 0; c < 4; c++ {
					sum[c] += line[4*i+c]
				}
			}
		}
		for i := 0; i < n; i++ {
			p := idx(i)
			for c := 0; c < 4; c++ {
				pix[p+c] = byte(sum[c] / div)
			}
			if out := i - radius; out >= 0 {
				for c := 0; c < 4; c++ {
					sum[c] -= line[4*out+c]
				}
			}
			if in := i + radius + 1; in < n {
				for c := 0; c < 4; c++ {
					sum[c] += line[4*in+c]
				}
			}
		}
	}
}

// --- PixelOutlineFilter ---

const glslPixelOutlineBody = `uniform vec4 OutlineColor;

void main() {
	vec4 c = texture(uSampler, vTextureCoord);
	if (c.a > 0.0) {
		fragColor = c;
		return;
	}
	if (texture(uSampler, vTextureCoord + vec2(uTexelSize.x, 0.0)).a > 0.0 ||
		texture(uSampler, vTextureCoord - vec2(uTexelSize.x, 0.0)).a > 0.0 ||
		texture(uSampler, vTextureCoord + vec2(0.0, uTexelSize.y)).a > 0.0 ||
		texture(uSampler, vTextureCoord - vec2(0.0, uTexelSize.y)).a > 0.0) {
		fragColor = OutlineColor;
		return;
	}
	fragColor = vec4(0.0);
}
`

const kagePixelOutlineSrc = `//kage:unit pixels
package main

var OutlineColor vec4

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	c := imageSrc0At(srcPos)
	if c.a > 0 {
		return c
	}
	if imageSrc0At(srcPos+vec2(1, 0)).a > 0 ||
		imageSrc0At(srcPos+vec2(-1, 0)).a > 0 ||
		imageSrc0At(srcPos+vec2(0, 1)).a > 0 ||
		imageSrc0At(srcPos+vec2(0, -1)).a > 0 {
		return OutlineColor
	}
	return vec4(0)
}
`

// PixelOutlineFilter draws a one-pixel outline around every opaque pixel by
// testing its four neighbors.
type PixelOutlineFilter struct {
	Color Color
}

// NewPixelOutlineFilter returns an outline filter of color c.
func NewPixelOutlineFilter(c Color) *PixelOutlineFilter {
	return &PixelOutlineFilter{Color: c}
}

func (f *PixelOutlineFilter) FragmentBody(d Dialect) string {
	if d == DialectKage {
		return kagePixelOutlineSrc
	}
	return glslPixelOutlineBody
}

func (f *PixelOutlineFilter) Padding() Margins { return Margins{1, 1, 1, 1} }

func (f *PixelOutlineFilter) SetUniforms(u *Uniforms) {
	u.Set("OutlineColor", Vec4(f.Color.premultiplied()))
}

func (f *PixelOutlineFilter) ApplyPixels(pix []byte, w, h int, _ float64) {
	src := make([]byte, len(pix))
	copy(src, pix)
	opaque := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && src[4*(y*w+x)+3] > 0
	}
	oc := f.Color.premultiplied()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if opaque(x, y) {
				continue
			}
			p := 4 * (y*w + x)
			if opaque(x+1, y) || opaque(x-1, y) || opaque(x, y+1) || opaque(x, y-1) {
				for c := 0; c < 4; c++ {
					pix[p+c] = toByte(float64(oc[c]))
				}
			}
		}
	}
}

// --- ShaderFilter ---

// ShaderFilter runs user supplied fragment programs. GLSL is a body in the
// form FragmentBody describes; Kage is a complete shader. Uniform values
// must be types the device accepts.
type ShaderFilter struct {
	GLSL     string
	Kage     string
	Uniforms map[string]any
	Margins  Margins
}

func (f *ShaderFilter) FragmentBody(d Dialect) string {
	if d == DialectKage {
		return f.Kage
	}
	return f.GLSL
}

func (f *ShaderFilter) Padding() Margins { return f.Margins }

func (f *ShaderFilter) SetUniforms(u *Uniforms) {
	for name, v := range f.Uniforms {
		u.Set(name, v)
	}
}

func (f *ShaderFilter) String() string {
	return fmt.Sprintf("ShaderFilter(%d uniforms)", len(f.Uniforms))
}
