// sprites10k spawns 10,000 sprites that rotate, scale, fade, and bounce
// around the screen simultaneously. A stress test for the stagegl batcher:
// every sprite shares one texture, so the frame draws in a handful of
// flushes. A snapshot is saved after half a second.
package main

import (
	"image"
	"image/color"
	"log"
	"math"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/stagegl"
	"github.com/phanxgames/stagegl/ebitenctx"
)

const (
	screenW    = 1280
	screenH    = 720
	count      = 10_000
	spriteSize = 128
)

type sprite struct {
	node       *stagegl.Node
	dx, dy     float64
	rotSpeed   float64
	scaleSpeed float64
	scaleBase  float64
	scaleAmp   float64
	alphaSpeed float64
	phase      float64
}

type demo struct {
	dev     *ebitenctx.Device
	r       *stagegl.Renderer
	root    *stagegl.Node
	sprites []sprite
	frame   float64
}

// discImage draws a shaded disc.
func discImage() *stagegl.Image {
	img := image.NewNRGBA(image.Rect(0, 0, spriteSize, spriteSize))
	c := float64(spriteSize) / 2
	for y := 0; y < spriteSize; y++ {
		for x := 0; x < spriteSize; x++ {
			d := math.Hypot(float64(x)-c, float64(y)-c) / c
			if d > 1 {
				continue
			}
			shade := uint8(255 * (1 - 0.6*d))
			img.SetNRGBA(x, y, color.NRGBA{shade, uint8(180 * (1 - d)), 255 - shade/2, 255})
		}
	}
	return stagegl.NewImage("disc", img)
}

func (d *demo) Update() error {
	d.frame++
	t := d.frame / 60.0

	if d.frame == 30 {
		if path, err := d.r.SaveSnapshot("docs/demos/sprites10k", "thumbnail"); err != nil {
			log.Printf("snapshot: %v", err)
		} else {
			log.Printf("snapshot saved to %s", path)
		}
	}

	for i := range d.sprites {
		s := &d.sprites[i]
		n := s.node

		n.X += s.dx
		n.Y += s.dy

		size := s.scaleBase * spriteSize
		if n.X < -size/2 {
			n.X = -size / 2
			s.dx = -s.dx
		} else if n.X > screenW-size/2 {
			n.X = screenW - size/2
			s.dx = -s.dx
		}
		if n.Y < -size/2 {
			n.Y = -size / 2
			s.dy = -s.dy
		} else if n.Y > screenH-size/2 {
			n.Y = screenH - size/2
			s.dy = -s.dy
		}

		n.Rotation += s.rotSpeed

		sc := s.scaleBase + s.scaleAmp*math.Sin(t*s.scaleSpeed+s.phase)
		n.ScaleX = sc
		n.ScaleY = sc

		n.Alpha = 0.5 + 0.5*math.Sin(t*s.alphaSpeed+s.phase)
	}
	return nil
}

func (d *demo) Draw(screen *ebiten.Image) {
	d.dev.SetScreen(screen)
	d.r.RenderFrame(d.root)
	if int(d.frame)%120 == 0 {
		st := d.r.Stats()
		log.Printf("flushes=%d vertices=%d reasons=%v", st.Flushes, st.Vertices, st.FlushReasons)
	}
}

func (d *demo) Layout(int, int) (int, int) {
	d.r.ResizeViewport(screenW, screenH)
	return screenW, screenH
}

func main() {
	dev := ebitenctx.New()
	opts := stagegl.DefaultOptions()
	opts.ClearColor = stagegl.Color{R: 0.06, G: 0.06, B: 0.09, A: 1}
	opts.PreserveBuffer = true
	r, err := stagegl.New(dev, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Release()

	d := &demo{dev: dev, r: r, root: stagegl.NewContainer("root"), sprites: make([]sprite, count)}
	img := discImage()

	for i := range d.sprites {
		sp := stagegl.NewBitmap("disc", img)
		sp.X = rand.Float64() * screenW
		sp.Y = rand.Float64() * screenH
		sp.RegX = spriteSize / 2
		sp.RegY = spriteSize / 2

		base := 0.15 + rand.Float64()*0.2
		sp.ScaleX = base
		sp.ScaleY = base
		d.root.AddChild(sp)

		d.sprites[i] = sprite{
			node:       sp,
			dx:         (rand.Float64() - 0.5) * 4,
			dy:         (rand.Float64() - 0.5) * 4,
			rotSpeed:   (rand.Float64() - 0.5) * 0.08,
			scaleSpeed: 1 + rand.Float64()*2,
			scaleBase:  base,
			scaleAmp:   0.03 + rand.Float64()*0.07,
			alphaSpeed: 0.5 + rand.Float64()*2,
			phase:      rand.Float64() * math.Pi * 2,
		}
	}

	ebiten.SetWindowTitle("stagegl - 10k Sprites")
	ebiten.SetWindowSize(screenW, screenH)
	if err := ebiten.RunGame(d); err != nil {
		log.Fatal(err)
	}
}
