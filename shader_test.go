package stagegl

import (
	"errors"
	"strings"
	"testing"
)

func TestSamplerCountHalvesOnCompileFailure(t *testing.T) {
	dev := newRecordingDevice(16)
	dev.failProgram = func(src ProgramSource) bool { return src.Indexed && src.Samplers > 4 }
	log, buf := captureLogger()
	r := newTestRenderer(t, dev, func(o *Options) { o.Logger = log })

	if r.Samplers() != 4 {
		t.Errorf("samplers = %d, want 4", r.Samplers())
	}
	if n := strings.Count(buf.String(), "reducing samplers"); n != 2 {
		t.Errorf("reduction warnings = %d, want 2", n)
	}
	if got := dev.uniform(r.shaders.batch.id, SamplerUniform); got == nil {
		t.Error("sampler array uniform was not set")
	} else if s := got.([]int32); len(s) != 4 || s[3] != 3 {
		t.Errorf("sampler uniform = %v, want [0 1 2 3]", s)
	}
}

func TestBatchProgramNeverCompiles(t *testing.T) {
	dev := newRecordingDevice(8)
	dev.failProgram = func(src ProgramSource) bool { return src.Indexed }
	_, err := New(dev, DefaultOptions())
	if !errors.Is(err, ErrShaderCompile) {
		t.Errorf("error = %v, want ErrShaderCompile", err)
	}
}

func TestGLSLBatchFragment(t *testing.T) {
	src := glslBatchFragment(3)
	for _, want := range []string{
		"uniform sampler2D uSampler[3];",
		"indexPicker <= 0.5",
		"indexPicker <= 2.5",
		"texture(uSampler[2], vTextureCoord)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("batch fragment missing %q", want)
		}
	}
	if strings.Contains(src, "uSampler[3],") {
		t.Error("batch fragment samples past the sampler array")
	}
}

func TestCoverProgramCompiledOnce(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	a, err := r.shaders.coverProgram(BlendScreen)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.shaders.coverProgram(BlendScreen)
	if a != b {
		t.Error("cover program should be cached per mode")
	}
	if a.samplers != 2 || a.indexed {
		t.Errorf("cover program samplers, indexed = %d, %v; want 2, false", a.samplers, a.indexed)
	}
	if _, err := r.shaders.coverProgram(BlendLighter); err == nil {
		t.Error("fixed-function mode should not have a cover program")
	}
}

func TestCoverFragments(t *testing.T) {
	for m := BlendSourceIn; m < blendModeCount; m++ {
		for _, d := range []Dialect{DialectGLSL, DialectKage} {
			if _, err := coverFragment(d, m); err != nil {
				t.Errorf("coverFragment(%v, %s): %v", d, m, err)
			}
		}
	}
}

func TestFilterProgramForget(t *testing.T) {
	dev := newRecordingDevice(4)
	r := newTestRenderer(t, dev, nil)
	f := NewPixelOutlineFilter(Color{A: 1})
	p, err := r.shaders.filterProgram(f)
	if err != nil {
		t.Fatal(err)
	}
	if again, _ := r.shaders.filterProgram(f); again != p {
		t.Error("filter program should be cached")
	}
	r.shaders.forgetFilter(f)
	if _, ok := dev.programs[p.id]; ok {
		t.Error("forgotten filter program still on the device")
	}
}

func TestOrthoProjection(t *testing.T) {
	apply := func(m Mat4, x, y float32) (float32, float32) {
		return m[0]*x + m[4]*y + m[12], m[1]*x + m[5]*y + m[13]
	}
	tests := []struct {
		name   string
		yDown  bool
		x, y   float32
		cx, cy float32
	}{
		{"y down origin", true, 0, 0, -1, 1},
		{"y down far corner", true, 256, 128, 1, -1},
		{"y up origin", false, 0, 0, -1, -1},
		{"y up far corner", false, 256, 128, 1, 1},
		{"center", true, 128, 64, 0, 0},
	}
	for _, tt := range tests {
		m := orthoProjection(256, 128, tt.yDown)
		cx, cy := apply(m, tt.x, tt.y)
		if cx != tt.cx || cy != tt.cy {
			t.Errorf("%s: (%v, %v) -> (%v, %v), want (%v, %v)", tt.name, tt.x, tt.y, cx, cy, tt.cx, tt.cy)
		}
	}
}
