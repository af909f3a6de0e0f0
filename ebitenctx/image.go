package ebitenctx

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/stagegl"
)

// Image adapts an *ebiten.Image, such as one produced by another part of
// a game, into a stagegl image source. Its pixels are read back on upload,
// so it must be drawn inside the game loop. Call Invalidate after drawing
// into the image.
type Image struct {
	img   *ebiten.Image
	key   string
	dirty bool
}

// NewImage wraps img.
func NewImage(img *ebiten.Image) *Image {
	return &Image{img: img, key: fmt.Sprintf("ebiten:%p", img), dirty: true}
}

// Ebiten returns the wrapped image.
func (im *Image) Ebiten() *ebiten.Image { return im.img }

func (im *Image) SourceKey() string { return im.key }

func (im *Image) Size() (int, int) {
	b := im.img.Bounds()
	return b.Dx(), b.Dy()
}

func (im *Image) Ready() bool { return im.img != nil }

func (im *Image) Pixels() ([]byte, error) {
	if im.img == nil {
		return nil, stagegl.ErrSourceNotReady
	}
	w, h := im.Size()
	pix := make([]byte, 4*w*h)
	im.img.ReadPixels(pix)
	return pix, nil
}

// Invalidate schedules a re-upload on the next draw.
func (im *Image) Invalidate() { im.dirty = true }

func (im *Image) NeedsUpload() bool { return im.dirty }

func (im *Image) MarkUploaded() { im.dirty = false }

var (
	_ stagegl.ImageSource  = (*Image)(nil)
	_ stagegl.Invalidating = (*Image)(nil)
)
