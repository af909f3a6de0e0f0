// Package stagegl is a retained-mode 2D display-tree renderer for
// OpenGL-class GPUs.
//
// Each frame, stagegl walks a tree of [Node] values, accumulates transforms
// and alpha, and packs every visible bitmap and sprite frame into as few draw
// calls as the device's texture units and the nodes' blend modes allow.
//
// # Quick start
//
// A [Renderer] drives a [Device]. Two devices ship with the module: glctx
// (OpenGL 3.3 core, windowed through GLFW) and ebitenctx (Ebitengine Kage
// shaders, for use inside an ebiten.Game).
//
//	dev := ebitenctx.New()
//	r, err := stagegl.New(dev, stagegl.DefaultOptions())
//	if err != nil {
//		// fall back to a raster renderer
//	}
//	r.ResizeViewport(640, 480)
//
//	root := stagegl.NewContainer("root")
//	hero := stagegl.NewBitmap("hero", img)
//	hero.SetPosition(100, 50)
//	root.AddChild(hero)
//
//	r.RenderFrame(root)
//
// # Display tree
//
// Every visual element is a [Node]: containers group children, bitmaps draw
// an [ImageSource] and sprites draw one frame of a [SpriteSheet]. Children
// inherit their parent's transform, alpha and blend mode. Nodes whose
// accumulated alpha falls below [AlphaEpsilon] are skipped along with their
// subtree.
//
// # Batching
//
// Textures are assigned to sampler slots round-robin. A batch is drawn when
// its vertex buffer fills, when a new texture finds no free slot, when the
// blend mode changes, or when the frame ends. [Renderer.Stats] reports the
// flushes of the last frame and why each happened.
//
// # Blend modes
//
// Fixed-function modes such as [BlendSourceOver] and [BlendLighter] batch
// like any other draw. Cover modes such as [BlendMultiply] read the
// destination: each object is drawn into a scratch target and combined with
// what is already drawn by a full-target shader pass. With
// Options.DirectDraw there is no scratch target and cover modes draw as
// source-over.
//
// # Caching and filters
//
// [Node.SetCache] renders a subtree once into a texture that is then drawn
// as a single card until [Node.UpdateCache] is called. A node with
// [Filter] values is cached automatically and rebuilt every frame. Filters
// run as shader passes; filters implementing [PixelFilter] fall back to the
// CPU when their program cannot be compiled.
//
// # Logging
//
// stagegl logs through [log/slog] and is silent by default. Call
// [SetLogger] to route its output, or set Options.Logger per renderer.
package stagegl
