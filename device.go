package stagegl

// TextureID, FramebufferID and ProgramID are device handles. The zero
// FramebufferID is the default framebuffer; zero texture and program IDs
// are never returned by a working device.
type (
	TextureID     uint32
	FramebufferID uint32
	ProgramID     uint32
)

// Dialect selects the shading language a Device compiles.
type Dialect uint8

const (
	DialectGLSL Dialect = iota // GLSL 330 core, vertex and fragment stages
	DialectKage                // Ebitengine Kage, fragment only, pixel units
)

// Caps describes what a Device can do.
type Caps struct {
	// BottomLeftOrigin is true when framebuffer row 0 is the bottom of the
	// image, as in OpenGL.
	BottomLeftOrigin bool
	MaxTextureSize   int
	// MaxTextureUnits is the number of samplers a fragment shader may use.
	MaxTextureUnits int
	Dialect         Dialect
}

// Standard attribute and uniform names shared by every program the renderer
// builds. Backends without a vertex stage use ProjectionUniform to map clip
// space back to target pixels.
const (
	AttribPosition     = "vertexPosition"
	AttribUV           = "uvPosition"
	AttribTextureIndex = "textureIndex"
	AttribAlpha        = "objectAlpha"

	ProjectionUniform  = "pMatrix"
	SamplerUniform     = "uSampler"
	BackSamplerUniform = "uBackSampler"
	TexelSizeUniform   = "uTexelSize"
)

// ProgramSource is the input to Device.NewProgram.
type ProgramSource struct {
	Vertex   string // empty for dialects without a vertex stage
	Fragment string
	// Samplers is the number of texture units the program reads.
	Samplers int
	// Indexed programs pick their texture unit per vertex from the
	// textureIndex attribute; otherwise all units are sampled together.
	Indexed bool
}

// BlendFactor is a fixed-function blend factor.
type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
)

// BlendEquation is a fixed-function blend equation.
type BlendEquation uint8

const (
	BlendEquationAdd BlendEquation = iota
	BlendEquationSubtract
	BlendEquationReverseSubtract
)

// BlendState configures fixed-function blending for subsequent draws.
// Colors are premultiplied.
type BlendState struct {
	Disable            bool
	SrcRGB, DstRGB     BlendFactor
	SrcAlpha, DstAlpha BlendFactor
	Equation           BlendEquation
}

// Vec2, Vec4 and Mat4 are uniform value types understood by SetUniform in
// addition to float32, int32, []float32 (float arrays) and []int32 (sampler
// arrays).
type (
	Vec2 [2]float32
	Vec4 [4]float32
	Mat4 [16]float32
)

// Device is the immediate-mode GPU surface the renderer drives. It is
// modeled on a WebGL context: state is set by calls, and draws consume the
// current state. Devices are not safe for concurrent use.
type Device interface {
	Caps() Caps

	NewTexture(width, height int) (TextureID, error)
	// UploadTexture replaces the texture's contents with premultiplied RGBA
	// pixels, reallocating it at the given size. A nil pix allocates
	// storage with undefined contents.
	UploadTexture(id TextureID, width, height int, pix []byte) error
	SetTextureFilter(id TextureID, linear bool)
	DeleteTexture(id TextureID)

	NewFramebuffer(tex TextureID) (FramebufferID, error)
	DeleteFramebuffer(id FramebufferID)
	BindFramebuffer(id FramebufferID)
	Viewport(x, y, width, height int)
	// Clear fills the bound framebuffer with c, premultiplied.
	Clear(c Color)

	NewProgram(src ProgramSource) (ProgramID, error)
	DeleteProgram(id ProgramID)
	UseProgram(id ProgramID)
	// AttribLocation and UniformLocation return -1 for unknown names.
	AttribLocation(p ProgramID, name string) int
	UniformLocation(p ProgramID, name string) int
	// SetUniform sets a uniform of the program in use. A negative location
	// is ignored.
	SetUniform(loc int, v any)

	BindTexture(unit int, id TextureID)
	SetBlend(b BlendState)
	// BindVertexAttrib uploads data for the attribute at loc with size
	// components per vertex.
	BindVertexAttrib(loc, size int, data []float32)
	DrawTriangles(first, count int)

	// ReadPixels reads premultiplied RGBA from the bound framebuffer into
	// dst with row 0 at the top.
	ReadPixels(x, y, width, height int, dst []byte) error

	Release()
}
