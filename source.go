package stagegl

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageSource is anything a bitmap can draw: a decoded image, a canvas, or a
// video frame. Implementations must be comparable (pointer types); the
// renderer tracks them by SourceKey and never modifies them.
type ImageSource interface {
	// SourceKey identifies the pixels. Sources sharing a key share a texture.
	SourceKey() string
	Size() (width, height int)
	// Ready reports whether Pixels can be called. Sources that are not ready
	// are drawn as a transparent placeholder and polled every frame.
	Ready() bool
	// Pixels returns premultiplied RGBA, row 0 at the top.
	Pixels() ([]byte, error)
}

// Invalidating is implemented by sources whose pixels change after the
// first upload, such as canvases and video frames.
type Invalidating interface {
	NeedsUpload() bool
	MarkUploaded()
}

// toRGBA converts any image to a premultiplied RGBA image at the origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(dst, image.Point{}, img, b, xdraw.Src, nil)
	return dst
}

// --- Image ---

// Image is a static image source identified by its URL or path.
type Image struct {
	key   string
	w, h  int
	pix   []byte
	ready bool
}

// NewImage wraps a decoded image. The key is usually the image URL.
func NewImage(key string, img image.Image) *Image {
	rgba := toRGBA(img)
	return &Image{key: key, w: rgba.Rect.Dx(), h: rgba.Rect.Dy(), pix: rgba.Pix, ready: true}
}

// NewPendingImage returns a source of known size that is not ready until
// Resolve is called.
func NewPendingImage(key string, width, height int) *Image {
	return &Image{key: key, w: width, h: height}
}

// Resolve supplies the decoded pixels of a pending image.
func (im *Image) Resolve(img image.Image) {
	rgba := toRGBA(img)
	im.w, im.h = rgba.Rect.Dx(), rgba.Rect.Dy()
	im.pix = rgba.Pix
	im.ready = true
}

func (im *Image) SourceKey() string { return im.key }
func (im *Image) Size() (int, int)  { return im.w, im.h }
func (im *Image) Ready() bool       { return im.ready }

func (im *Image) Pixels() ([]byte, error) {
	if !im.ready {
		return nil, fmt.Errorf("%s: %w", im.key, ErrSourceNotReady)
	}
	return im.pix, nil
}

// LoadImageFile decodes a PNG, JPEG, GIF or WebP file into an Image keyed
// by its path.
func LoadImageFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stagegl: open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("stagegl: decode %s: %w", path, err)
	}
	return NewImage(path, img), nil
}

// --- Canvas ---

var canvasIDCounter uint32

// Canvas is a mutable RGBA surface. Call Invalidate after drawing into it so
// the next frame re-uploads its texture.
type Canvas struct {
	key   string
	img   *image.RGBA
	dirty bool
}

// NewCanvas creates a transparent canvas with a generated key.
func NewCanvas(width, height int) *Canvas {
	canvasIDCounter++
	return &Canvas{
		key:   "canvas_" + strconv.FormatUint(uint64(canvasIDCounter), 10),
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		dirty: true,
	}
}

// RGBA returns the backing image for drawing.
func (c *Canvas) RGBA() *image.RGBA { return c.img }

// DrawImage copies img onto the canvas at p and invalidates it.
func (c *Canvas) DrawImage(img image.Image, p image.Point) {
	xdraw.Copy(c.img, p, img, img.Bounds(), xdraw.Over, nil)
	c.dirty = true
}

// Invalidate marks the canvas contents as changed.
func (c *Canvas) Invalidate() { c.dirty = true }

func (c *Canvas) SourceKey() string       { return c.key }
func (c *Canvas) Size() (int, int)        { return c.img.Rect.Dx(), c.img.Rect.Dy() }
func (c *Canvas) Ready() bool             { return true }
func (c *Canvas) Pixels() ([]byte, error) { return c.img.Pix, nil }
func (c *Canvas) NeedsUpload() bool       { return c.dirty }
func (c *Canvas) MarkUploaded()           { c.dirty = false }
