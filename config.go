package stagegl

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"
)

// Options configures a Renderer.
type Options struct {
	// PreserveBuffer keeps the drawing buffer between frames so snapshots
	// can read it without re-rendering.
	PreserveBuffer bool `yaml:"preserve_buffer"`
	// Antialias enables linear filtering on power-of-two textures.
	Antialias bool `yaml:"antialias"`
	// Transparent clears to the clear color's alpha instead of opaque.
	Transparent bool `yaml:"transparent"`
	// DirectDraw renders straight into the default framebuffer. Blend
	// modes that need to read the destination fall back to source-over.
	DirectDraw bool `yaml:"direct_draw"`
	// MaxBatchSize is the number of cards a batch holds before it flushes.
	MaxBatchSize int `yaml:"max_batch_size"`
	// AutoPurge is the number of unused frames after which textures are
	// released. Zero selects DefaultAutoPurge; AutoPurgeDisabled turns it off.
	AutoPurge int `yaml:"auto_purge"`
	// MaxSamplers caps the sampler count of the batch program. Zero uses
	// the device limit.
	MaxSamplers int   `yaml:"max_samplers"`
	ClearColor  Color `yaml:"clear_color"`
	// Debug logs per-frame stats at debug level.
	Debug bool `yaml:"debug"`

	// Logger overrides the package logger for this renderer.
	Logger *slog.Logger `yaml:"-"`
	// Observer, when set, receives the stats of every rendered frame.
	Observer FrameObserver `yaml:"-"`
}

// DefaultOptions returns the options a renderer uses when none are given.
func DefaultOptions() Options {
	return Options{
		Antialias:    true,
		MaxBatchSize: DefaultMaxBatchSize,
		AutoPurge:    DefaultAutoPurge,
	}
}

// normalize clamps out-of-range values.
func (o Options) normalize() Options {
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = DefaultMaxBatchSize
	}
	switch {
	case o.AutoPurge == 0:
		o.AutoPurge = DefaultAutoPurge
	case o.AutoPurge != AutoPurgeDisabled && o.AutoPurge < MinAutoPurge:
		o.AutoPurge = MinAutoPurge
	}
	if o.MaxSamplers < 0 {
		o.MaxSamplers = 0
	}
	return o
}

// ParseOptions parses YAML into options, starting from DefaultOptions.
// Keys absent from the document keep their defaults.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("stagegl: parse options: %w", err)
	}
	return opts.normalize(), nil
}

// LoadOptions reads YAML options from a file.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultOptions(), fmt.Errorf("stagegl: read options %s: %w", path, err)
	}
	return ParseOptions(data)
}
