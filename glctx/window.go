//go:build !js

package glctx

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/phanxgames/stagegl"
)

func init() {
	// GLFW event handling must run on the main thread.
	runtime.LockOSThread()
}

// Window is a GLFW window with a current OpenGL 3.3 core context and a
// Device drawing into it.
type Window struct {
	win    *glfw.Window
	Device *Device
}

// NewWindow initializes GLFW, opens a window and makes its context current.
// Call it from the main goroutine.
func NewWindow(title string, width, height int) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("%w: glfw: %v", stagegl.ErrNoDevice, err)
	}
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("%w: create window: %v", stagegl.ErrNoDevice, err)
	}
	win.MakeContextCurrent()
	glfw.SwapInterval(1)

	dev, err := New()
	if err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, err
	}
	return &Window{win: win, Device: dev}, nil
}

// ShouldClose reports whether the user asked to close the window.
func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

// FramebufferSize returns the drawable size in pixels.
func (w *Window) FramebufferSize() (int, int) { return w.win.GetFramebufferSize() }

// OnResize registers fn to be called with the new framebuffer size.
func (w *Window) OnResize(fn func(width, height int)) {
	w.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		fn(width, height)
	})
}

// Present swaps buffers and processes pending events.
func (w *Window) Present() {
	w.win.SwapBuffers()
	glfw.PollEvents()
}

// Close releases the device, destroys the window and terminates GLFW.
func (w *Window) Close() {
	w.Device.Release()
	w.win.Destroy()
	glfw.Terminate()
}
