package stagegl

import (
	"fmt"
	"strings"
)

// --- GLSL sources ---

const glslVertexSrc = `#version 330 core
in vec2 vertexPosition;
in vec2 uvPosition;
in float textureIndex;
in float objectAlpha;

uniform mat4 pMatrix;

out vec2 vTextureCoord;
out float indexPicker;
out float alphaValue;

void main() {
	gl_Position = pMatrix * vec4(vertexPosition, 0.0, 1.0);
	vTextureCoord = uvPosition;
	indexPicker = textureIndex;
	alphaValue = objectAlpha;
}
`

const glslFragmentHeader = `#version 330 core
in vec2 vTextureCoord;
in float indexPicker;
in float alphaValue;

out vec4 fragColor;
`

// glslBatchFragment builds the batch fragment shader for n samplers. The
// sampler is chosen with an if-chain because sampler arrays may only be
// indexed by constants.
func glslBatchFragment(n int) string {
	var b strings.Builder
	b.WriteString(glslFragmentHeader)
	fmt.Fprintf(&b, "uniform sampler2D uSampler[%d];\n\nvoid main() {\n", n)
	b.WriteString("\tvec4 color = vec4(1.0, 0.0, 0.0, 1.0);\n")
	for i := 0; i < n; i++ {
		switch {
		case i == 0:
			b.WriteString("\tif (indexPicker <= 0.5) {\n")
		default:
			fmt.Fprintf(&b, "\t} else if (indexPicker <= %d.5) {\n", i)
		}
		fmt.Fprintf(&b, "\t\tcolor = texture(uSampler[%d], vTextureCoord);\n", i)
	}
	b.WriteString("\t}\n\tfragColor = color * alphaValue;\n}\n")
	return b.String()
}

const glslCoverHelpers = `uniform sampler2D uSampler;
uniform sampler2D uBackSampler;

vec3 unpremultiply(vec4 c) {
	if (c.a > 0.0) {
		return c.rgb / c.a;
	}
	return vec3(0.0);
}

float lum(vec3 c) {
	return dot(c, vec3(0.3, 0.59, 0.11));
}

vec3 clipColor(vec3 c) {
	float l = lum(c);
	float n = min(min(c.r, c.g), c.b);
	float x = max(max(c.r, c.g), c.b);
	vec3 r = c;
	if (n < 0.0) {
		r = vec3(l) + (r - vec3(l)) * l / (l - n);
	}
	if (x > 1.0) {
		r = vec3(l) + (r - vec3(l)) * (1.0 - l) / (x - l);
	}
	return r;
}

vec3 setLum(vec3 c, float l) {
	return clipColor(c + vec3(l - lum(c)));
}

float sat(vec3 c) {
	return max(max(c.r, c.g), c.b) - min(min(c.r, c.g), c.b);
}

vec3 setSat(vec3 c, float s) {
	float mx = max(max(c.r, c.g), c.b);
	float mn = min(min(c.r, c.g), c.b);
	if (mx <= mn) {
		return vec3(0.0);
	}
	return (c - vec3(mn)) * s / (mx - mn);
}

vec3 softLight(vec3 s, vec3 d) {
	vec3 dd = mix(sqrt(d), ((16.0 * d - vec3(12.0)) * d + vec3(4.0)) * d, step(d, vec3(0.25)));
	vec3 lo = d - (vec3(1.0) - 2.0 * s) * d * (vec3(1.0) - d);
	vec3 hi = d + (2.0 * s - vec3(1.0)) * (dd - d);
	return mix(lo, hi, step(vec3(0.5), s));
}
`

// glslFilterHeader is prepended to every GLSL filter body.
const glslFilterHeader = glslFragmentHeader + `uniform sampler2D uSampler;
uniform vec2 uTexelSize;
`

// --- Kage sources ---
// Kage has no vertex stage. Positions arrive in target pixels, texture
// coordinates in source pixels, and the per-vertex alpha in color.a.

const kageBatchSrc = `//kage:unit pixels
package main

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	return imageSrc0At(srcPos) * color.a
}
`

const kageCoverHelpers = `func unpremultiply(c vec4) vec3 {
	if c.a > 0 {
		return c.rgb / c.a
	}
	return vec3(0)
}

func lum(c vec3) float {
	return dot(c, vec3(0.3, 0.59, 0.11))
}

func clipColor(c vec3) vec3 {
	l := lum(c)
	n := min(min(c.r, c.g), c.b)
	x := max(max(c.r, c.g), c.b)
	r := c
	if n < 0 {
		r = vec3(l) + (r-vec3(l))*l/(l-n)
	}
	if x > 1 {
		r = vec3(l) + (r-vec3(l))*(1-l)/(x-l)
	}
	return r
}

func setLum(c vec3, l float) vec3 {
	return clipColor(c + vec3(l-lum(c)))
}

func sat(c vec3) float {
	return max(max(c.r, c.g), c.b) - min(min(c.r, c.g), c.b)
}

func setSat(c vec3, s float) vec3 {
	mx := max(max(c.r, c.g), c.b)
	mn := min(min(c.r, c.g), c.b)
	if mx <= mn {
		return vec3(0)
	}
	return (c - vec3(mn)) * s / (mx - mn)
}

func softLight(s vec3, d vec3) vec3 {
	dd := mix(sqrt(d), ((16.0*d-vec3(12.0))*d+vec3(4.0))*d, step(d, vec3(0.25)))
	lo := d - (vec3(1.0)-2.0*s)*d*(vec3(1.0)-d)
	hi := d + (2.0*s-vec3(1.0))*(dd-d)
	return mix(lo, hi, step(vec3(0.5), s))
}
`

// --- Cover mode expressions ---
// Expressions are written in the subset shared by GLSL and Kage. Porter-Duff
// modes combine the premultiplied src and dst directly; blend modes produce
// an un-premultiplied color from s and d which is then composited
// source-over.

var coverPorterDuff = map[BlendMode]string{
	BlendSourceIn:        "src * dst.a",
	BlendSourceOut:       "src * (1.0 - dst.a)",
	BlendDestinationIn:   "dst * src.a",
	BlendDestinationAtop: "dst * src.a + src * (1.0 - dst.a)",
	BlendCopy:            "src",
}

var coverBlend = map[BlendMode]string{
	BlendMultiply:   "s * d",
	BlendScreen:     "s + d - s * d",
	BlendOverlay:    "mix(2.0 * s * d, vec3(1.0) - 2.0 * (vec3(1.0) - s) * (vec3(1.0) - d), step(vec3(0.5), d))",
	BlendDarken:     "min(s, d)",
	BlendLighten:    "max(s, d)",
	BlendColorDodge: "min(vec3(1.0), d / max(vec3(1.0) - s, vec3(0.00001)))",
	BlendColorBurn:  "vec3(1.0) - min(vec3(1.0), (vec3(1.0) - d) / max(s, vec3(0.00001)))",
	BlendHardLight:  "mix(2.0 * s * d, vec3(1.0) - 2.0 * (vec3(1.0) - s) * (vec3(1.0) - d), step(vec3(0.5), s))",
	BlendSoftLight:  "softLight(s, d)",
	BlendDifference: "abs(s - d)",
	BlendExclusion:  "s + d - 2.0 * s * d",
	BlendHue:        "setLum(setSat(s, sat(d)), lum(d))",
	BlendSaturation: "setLum(setSat(d, sat(s)), lum(d))",
	BlendColor:      "setLum(s, lum(d))",
	BlendLuminosity: "setLum(d, lum(s))",
}

const compositeExpr = "vec4((1.0 - dst.a) * src.rgb + (1.0 - src.a) * dst.rgb + src.a * dst.a * clamp(b, vec3(0.0), vec3(1.0)), src.a + dst.a - src.a * dst.a)"

// coverFragment returns the fragment source for a cover mode.
func coverFragment(d Dialect, mode BlendMode) (string, error) {
	pd, isPD := coverPorterDuff[mode]
	bl, isBlend := coverBlend[mode]
	if !isPD && !isBlend {
		return "", fmt.Errorf("stagegl: %s is not a cover blend mode", mode)
	}

	var b strings.Builder
	switch d {
	case DialectKage:
		b.WriteString("//kage:unit pixels\npackage main\n\n")
		b.WriteString(kageCoverHelpers)
		b.WriteString("\nfunc Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {\n")
		b.WriteString("\tsrc := imageSrc0At(srcPos)\n\tdst := imageSrc1At(srcPos)\n")
		if isPD {
			fmt.Fprintf(&b, "\treturn %s\n}\n", pd)
		} else {
			b.WriteString("\ts := unpremultiply(src)\n\td := unpremultiply(dst)\n")
			fmt.Fprintf(&b, "\tb := %s\n\treturn %s\n}\n", bl, compositeExpr)
		}
	default:
		b.WriteString(glslFragmentHeader)
		b.WriteString(glslCoverHelpers)
		b.WriteString("\nvoid main() {\n")
		b.WriteString("\tvec4 src = texture(uSampler, vTextureCoord);\n")
		b.WriteString("\tvec4 dst = texture(uBackSampler, vTextureCoord);\n")
		if isPD {
			fmt.Fprintf(&b, "\tfragColor = %s;\n}\n", pd)
		} else {
			b.WriteString("\tvec3 s = unpremultiply(src);\n\tvec3 d = unpremultiply(dst);\n")
			fmt.Fprintf(&b, "\tvec3 b = %s;\n\tfragColor = %s;\n}\n", bl, compositeExpr)
		}
	}
	return b.String(), nil
}

// batchProgramSource returns the indexed batch program for n samplers.
func batchProgramSource(d Dialect, n int) ProgramSource {
	if d == DialectKage {
		return ProgramSource{Fragment: kageBatchSrc, Samplers: n, Indexed: true}
	}
	return ProgramSource{
		Vertex:   glslVertexSrc,
		Fragment: glslBatchFragment(n),
		Samplers: n,
		Indexed:  true,
	}
}

// coverProgramSource returns the two-sampler program for a cover mode.
func coverProgramSource(d Dialect, mode BlendMode) (ProgramSource, error) {
	frag, err := coverFragment(d, mode)
	if err != nil {
		return ProgramSource{}, err
	}
	src := ProgramSource{Fragment: frag, Samplers: 2}
	if d == DialectGLSL {
		src.Vertex = glslVertexSrc
	}
	return src, nil
}

const glslCopyBody = `
void main() {
	fragColor = texture(uSampler, vTextureCoord);
}
`

const kageCopySrc = `//kage:unit pixels
package main

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	return imageSrc0At(srcPos)
}
`

// copyProgramSource returns the single-sampler program that copies a
// render target onto another surface.
func copyProgramSource(d Dialect) ProgramSource {
	if d == DialectKage {
		return ProgramSource{Fragment: kageCopySrc, Samplers: 1}
	}
	return ProgramSource{Vertex: glslVertexSrc, Fragment: glslFilterHeader + glslCopyBody, Samplers: 1}
}

// filterProgramSource wraps a filter body into a complete program.
func filterProgramSource(d Dialect, f Filter) ProgramSource {
	body := f.FragmentBody(d)
	if d == DialectKage {
		return ProgramSource{Fragment: body, Samplers: 1}
	}
	return ProgramSource{
		Vertex:   glslVertexSrc,
		Fragment: glslFilterHeader + body,
		Samplers: 1,
	}
}
