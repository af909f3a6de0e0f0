package stagegl

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultJPEGQuality is used when SnapshotToImage gets a quality outside
// [1, 100].
const DefaultJPEGQuality = 92

// readTargetInto reads the premultiplied pixels of rt, or of the default
// framebuffer when rt is nil, into pix. Row 0 is the top.
func (r *Renderer) readTargetInto(rt *RenderTarget, pix []byte) error {
	var w, h int
	if rt == nil {
		r.dev.BindFramebuffer(0)
		w, h = r.width, r.height
	} else {
		r.dev.BindFramebuffer(rt.fb)
		w, h = rt.width, rt.height
	}
	err := r.dev.ReadPixels(0, 0, w, h, pix)
	if r.textures.inFrame {
		r.ctx.apply()
	}
	if err != nil {
		return fmt.Errorf("stagegl: read pixels: %w", err)
	}
	return nil
}

// readTarget reads rt into a straight-alpha image.
func (r *Renderer) readTarget(rt *RenderTarget) (*image.NRGBA, error) {
	w, h := r.width, r.height
	if rt != nil {
		w, h = rt.width, rt.height
	}
	if w <= 0 || h <= 0 {
		return nil, errors.New("stagegl: nothing to read")
	}
	pix := make([]byte, 4*w*h)
	if err := r.readTargetInto(rt, pix); err != nil {
		return nil, err
	}
	return unpremultiplied(pix, w, h), nil
}

// unpremultiplied converts premultiplied RGBA to a straight-alpha image.
func unpremultiplied(pix []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+3 < len(pix) && i < len(img.Pix); i += 4 {
		r, g, b, a := pix[i], pix[i+1], pix[i+2], pix[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

// Snapshot returns the last rendered frame. Without PreserveBuffer the last
// root is rendered again first.
func (r *Renderer) Snapshot() (*image.NRGBA, error) {
	return r.snapshot(nil)
}

func (r *Renderer) snapshot(bg *Color) (*image.NRGBA, error) {
	r.checkUsable()
	if r.lastRoot == nil {
		return nil, errors.New("stagegl: snapshot before the first frame")
	}
	if !r.opts.PreserveBuffer || bg != nil {
		saved := r.opts
		if bg != nil {
			r.opts.ClearColor = *bg
			r.opts.Transparent = true
		}
		r.RenderFrame(r.lastRoot)
		r.opts = saved
	}
	if r.cacheControlled {
		if c := r.lastRoot.cache; c != nil && c.final != nil {
			return r.readTarget(c.final)
		}
		return nil, errors.New("stagegl: no cache to snapshot")
	}
	if out := r.ring.get(roleOutput); out != nil && !r.opts.DirectDraw {
		return r.readTarget(out)
	}
	return r.readTarget(nil)
}

// SnapshotToImage encodes the frame as mimeType: image/png, image/jpeg,
// image/bmp or image/tiff. A non-nil bg is drawn behind the frame. quality
// applies to JPEG only.
func (r *Renderer) SnapshotToImage(bg *Color, mimeType string, quality int) ([]byte, error) {
	encode, err := encoderFor(mimeType, quality)
	if err != nil {
		return nil, err
	}
	img, err := r.snapshot(bg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		return nil, fmt.Errorf("stagegl: encode %s: %w", mimeType, err)
	}
	return buf.Bytes(), nil
}

// SnapshotDataURL returns SnapshotToImage as a data URL.
func (r *Renderer) SnapshotDataURL(bg *Color, mimeType string, quality int) (string, error) {
	data, err := r.SnapshotToImage(bg, mimeType, quality)
	if err != nil {
		return "", err
	}
	return "data:" + strings.ToLower(mimeType) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

type encodeFunc func(*bytes.Buffer, image.Image) error

func encoderFor(mimeType string, quality int) (encodeFunc, error) {
	switch strings.ToLower(mimeType) {
	case "", "image/png":
		return func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }, nil
	case "image/jpeg", "image/jpg":
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return func(b *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(b, img, &jpeg.Options{Quality: quality})
		}, nil
	case "image/bmp":
		return func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) }, nil
	case "image/tiff":
		return func(b *bytes.Buffer, img image.Image) error {
			return tiff.Encode(b, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedMimeType, mimeType)
}

// SaveSnapshot writes the frame as a PNG in dir, named with a timestamp and
// the sanitized label. It returns the file path.
func (r *Renderer) SaveSnapshot(dir, label string) (string, error) {
	img, err := r.Snapshot()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("stagegl: mkdir %s: %w", dir, err)
	}
	stamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, stamp+"_"+sanitizeLabel(label)+".png")
	if err := writePNG(path, img); err != nil {
		return "", err
	}
	return path, nil
}

// writePNG encodes an image to a PNG file at the given path.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
