package stagegl

import "errors"

var (
	// ErrNoDevice is returned by New when no GPU device is available. The
	// caller is expected to fall back to a raster renderer.
	ErrNoDevice = errors.New("stagegl: no GPU device available")

	// ErrShaderCompile is returned when the batch program fails to compile
	// even with a single sampler.
	ErrShaderCompile = errors.New("stagegl: shader compilation failed")

	// ErrTextureCreate reports a failed texture allocation.
	ErrTextureCreate = errors.New("stagegl: texture creation failed")

	// ErrFramebufferIncomplete reports a framebuffer that cannot be rendered to.
	ErrFramebufferIncomplete = errors.New("stagegl: framebuffer incomplete")

	// ErrUnsupportedMimeType is returned by snapshot encoders for unknown types.
	ErrUnsupportedMimeType = errors.New("stagegl: unsupported mime type")

	// ErrSourceNotReady is returned when pixels are requested from a source
	// that has not finished loading.
	ErrSourceNotReady = errors.New("stagegl: image source not ready")
)
