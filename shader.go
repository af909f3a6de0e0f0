package stagegl

import (
	"fmt"
	"log/slog"
)

// program is a compiled device program with its locations queried once.
type program struct {
	id       ProgramID
	samplers int
	indexed  bool

	attrPos, attrUV, attrIndex, attrAlpha int

	uProjection  int
	uSampler     int
	uBackSampler int
	uTexelSize   int

	// uniforms caches filter uniform locations by name.
	uniforms map[string]int
}

func newProgram(dev Device, src ProgramSource) (*program, error) {
	id, err := dev.NewProgram(src)
	if err != nil {
		return nil, err
	}
	return &program{
		id:           id,
		samplers:     src.Samplers,
		indexed:      src.Indexed,
		attrPos:      dev.AttribLocation(id, AttribPosition),
		attrUV:       dev.AttribLocation(id, AttribUV),
		attrIndex:    dev.AttribLocation(id, AttribTextureIndex),
		attrAlpha:    dev.AttribLocation(id, AttribAlpha),
		uProjection:  dev.UniformLocation(id, ProjectionUniform),
		uSampler:     dev.UniformLocation(id, SamplerUniform),
		uBackSampler: dev.UniformLocation(id, BackSamplerUniform),
		uTexelSize:   dev.UniformLocation(id, TexelSizeUniform),
	}, nil
}

func (p *program) uniformLocation(dev Device, name string) int {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	if p.uniforms == nil {
		p.uniforms = make(map[string]int)
	}
	loc := dev.UniformLocation(p.id, name)
	p.uniforms[name] = loc
	return loc
}

// shaderCache owns every program a renderer compiles: the indexed batch
// program, one cover program per cover blend mode and one program per
// filter.
type shaderCache struct {
	dev     Device
	dialect Dialect
	log     *slog.Logger

	batch    *program
	samplers int
	copy     *program

	cover   map[BlendMode]*program
	filters map[Filter]*program
	// failed remembers filters whose program did not compile.
	failed map[Filter]error
}

// newShaderCache compiles the batch program, halving the sampler count on
// each compile failure. Failing with a single sampler is fatal.
func newShaderCache(dev Device, dialect Dialect, log *slog.Logger, maxSamplers int) (*shaderCache, error) {
	c := &shaderCache{
		dev:     dev,
		dialect: dialect,
		log:     log,
		cover:   make(map[BlendMode]*program),
		filters: make(map[Filter]*program),
		failed:  make(map[Filter]error),
	}
	n := maxSamplers
	for {
		p, err := newProgram(dev, batchProgramSource(dialect, n))
		if err == nil {
			c.batch = p
			c.samplers = n
			break
		}
		if n <= 1 {
			return nil, fmt.Errorf("%w: %v", ErrShaderCompile, err)
		}
		log.Warn("stagegl: batch program failed to compile, reducing samplers",
			"samplers", n, "next", n/2, "err", err)
		n /= 2
	}

	samplers := make([]int32, c.samplers)
	for i := range samplers {
		samplers[i] = int32(i)
	}
	dev.UseProgram(c.batch.id)
	dev.SetUniform(c.batch.uSampler, samplers)
	return c, nil
}

// copyProgram returns the program used to blit render targets.
func (c *shaderCache) copyProgram() (*program, error) {
	if c.copy != nil {
		return c.copy, nil
	}
	p, err := newProgram(c.dev, copyProgramSource(c.dialect))
	if err != nil {
		return nil, fmt.Errorf("stagegl: copy program: %w", err)
	}
	c.copy = p
	return p, nil
}

// coverProgram returns the program for a cover blend mode, compiling it on
// first use.
func (c *shaderCache) coverProgram(mode BlendMode) (*program, error) {
	if p, ok := c.cover[mode]; ok {
		return p, nil
	}
	src, err := coverProgramSource(c.dialect, mode)
	if err != nil {
		return nil, err
	}
	p, err := newProgram(c.dev, src)
	if err != nil {
		return nil, fmt.Errorf("stagegl: %s program: %w", mode, err)
	}
	c.cover[mode] = p
	return p, nil
}

// filterProgram returns the program for f, compiling it once per renderer.
func (c *shaderCache) filterProgram(f Filter) (*program, error) {
	if p, ok := c.filters[f]; ok {
		return p, nil
	}
	if err, ok := c.failed[f]; ok {
		return nil, err
	}
	p, err := newProgram(c.dev, filterProgramSource(c.dialect, f))
	if err != nil {
		err = fmt.Errorf("stagegl: filter %T program: %w", f, err)
		c.failed[f] = err
		return nil, err
	}
	c.filters[f] = p
	return p, nil
}

// forgetFilter drops the program compiled for f.
func (c *shaderCache) forgetFilter(f Filter) {
	if p, ok := c.filters[f]; ok {
		c.dev.DeleteProgram(p.id)
		delete(c.filters, f)
	}
	delete(c.failed, f)
}

func (c *shaderCache) release() {
	c.dev.DeleteProgram(c.batch.id)
	if c.copy != nil {
		c.dev.DeleteProgram(c.copy.id)
		c.copy = nil
	}
	for m, p := range c.cover {
		c.dev.DeleteProgram(p.id)
		delete(c.cover, m)
	}
	for f, p := range c.filters {
		c.dev.DeleteProgram(p.id)
		delete(c.filters, f)
	}
}

// orthoProjection maps target pixels to clip space. With yDown, pixel row 0
// maps to the top of clip space.
func orthoProjection(w, h int, yDown bool) Mat4 {
	sy, ty := float32(2)/float32(h), float32(-1)
	if yDown {
		sy, ty = -sy, 1
	}
	return Mat4{
		2 / float32(w), 0, 0, 0,
		0, sy, 0, 0,
		0, 0, 1, 0,
		-1, ty, 0, 1,
	}
}
