package stagegl

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Frame describes one sprite frame within a sheet image.
type Frame struct {
	Image int // index into SpriteSheet.Images
	X, Y  int // top-left corner of the stored rect within the image
	// Width and Height are the displayed size. A rotated frame is stored
	// 90 degrees clockwise, occupying Height x Width pixels in the image.
	Width, Height int
	// RegX and RegY are the frame's registration point; the frame is
	// drawn from (-RegX, -RegY) in sprite space.
	RegX, RegY float64
	Rotated    bool
}

// SpriteSheet holds sheet images and the frames cut from them.
type SpriteSheet struct {
	Images []ImageSource
	Frames []Frame

	names      map[string]int
	animations map[string][]int
}

// NewSpriteSheet builds a sheet from explicit frames.
func NewSpriteSheet(images []ImageSource, frames []Frame) *SpriteSheet {
	return &SpriteSheet{
		Images:     images,
		Frames:     frames,
		names:      make(map[string]int),
		animations: make(map[string][]int),
	}
}

// NewGridSpriteSheet cuts img into frames of frameW x frameH, left to right
// and top to bottom.
func NewGridSpriteSheet(img ImageSource, frameW, frameH int) *SpriteSheet {
	if frameW <= 0 || frameH <= 0 {
		panic("stagegl: grid frame size must be positive")
	}
	w, h := img.Size()
	var frames []Frame
	for y := 0; y+frameH <= h; y += frameH {
		for x := 0; x+frameW <= w; x += frameW {
			frames = append(frames, Frame{X: x, Y: y, Width: frameW, Height: frameH})
		}
	}
	return NewSpriteSheet([]ImageSource{img}, frames)
}

// FrameIndex returns the index of the named frame, or -1.
func (s *SpriteSheet) FrameIndex(name string) int {
	if i, ok := s.names[name]; ok {
		return i
	}
	Logger().Debug("stagegl: sprite frame not found", "frame", name)
	return -1
}

// Animation returns the frame indices of a named animation.
func (s *SpriteSheet) Animation(name string) ([]int, bool) {
	a, ok := s.animations[name]
	return a, ok
}

// AddAnimation registers a named frame sequence.
func (s *SpriteSheet) AddAnimation(name string, frames []int) {
	s.animations[name] = frames
}

// frame returns frame i and reports whether it exists with a usable image.
func (s *SpriteSheet) frame(i int) (Frame, bool) {
	if s == nil || i < 0 || i >= len(s.Frames) {
		return Frame{}, false
	}
	f := s.Frames[i]
	if f.Image < 0 || f.Image >= len(s.Images) || s.Images[f.Image] == nil {
		return Frame{}, false
	}
	return f, true
}

// corners returns the frame's UVs for the TL, BL, TR, BR corners of the
// displayed frame, given the image size.
func (f Frame) corners(imgW, imgH int) [4][2]float32 {
	iw, ih := float64(imgW), float64(imgH)
	if !f.Rotated {
		l := float32(float64(f.X) / iw)
		t := float32(float64(f.Y) / ih)
		r := float32(float64(f.X+f.Width) / iw)
		b := float32(float64(f.Y+f.Height) / ih)
		return [4][2]float32{{l, t}, {l, b}, {r, t}, {r, b}}
	}
	// Stored rect spans Height pixels across and Width pixels down. The
	// displayed top-left sits at the stored top-right.
	l := float32(float64(f.X) / iw)
	t := float32(float64(f.Y) / ih)
	r := float32(float64(f.X+f.Height) / iw)
	b := float32(float64(f.Y+f.Width) / ih)
	return [4][2]float32{{r, t}, {l, t}, {r, b}, {l, b}}
}

// LoadSpriteSheet parses TexturePacker JSON data and associates the given
// images. Supports the hash format (a "frames" object), the array format
// (a "frames" list) and the multi-pack format (a "textures" array with one
// frame set per image). An optional top-level "animations" object maps
// names to frame-name lists.
func LoadSpriteSheet(jsonData []byte, images []ImageSource) (*SpriteSheet, error) {
	var top struct {
		Frames     json.RawMessage     `json:"frames"`
		Textures   json.RawMessage     `json:"textures"`
		Animations map[string][]string `json:"animations"`
	}
	if err := json.Unmarshal(jsonData, &top); err != nil {
		return nil, fmt.Errorf("stagegl: failed to parse sprite sheet JSON: %w", err)
	}

	sheet := NewSpriteSheet(images, nil)

	switch {
	case top.Textures != nil:
		if err := parsePackFormat(top.Textures, sheet); err != nil {
			return nil, err
		}
	case top.Frames != nil:
		if err := parseFrames(top.Frames, 0, sheet); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("stagegl: sprite sheet JSON has neither \"frames\" nor \"textures\" key")
	}

	for name, frameNames := range top.Animations {
		seq := make([]int, 0, len(frameNames))
		for _, fn := range frameNames {
			i, ok := sheet.names[fn]
			if !ok {
				return nil, fmt.Errorf("stagegl: animation %q references unknown frame %q", name, fn)
			}
			seq = append(seq, i)
		}
		sheet.animations[name] = seq
	}
	return sheet, nil
}

// --- JSON structure types ---

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type jsonFrame struct {
	Filename         string     `json:"filename"`
	Frame            jsonRect   `json:"frame"`
	Rotated          bool       `json:"rotated"`
	Trimmed          bool       `json:"trimmed"`
	SpriteSourceSize jsonRect   `json:"spriteSourceSize"`
	SourceSize       jsonSize   `json:"sourceSize"`
	Pivot            *jsonPoint `json:"pivot"`
}

type jsonTexturePage struct {
	Image  string          `json:"image"`
	Frames json.RawMessage `json:"frames"`
}

// parseFrames parses either {"name": {frame...}} or [{"filename": ...}].
// Hash entries are added in name order so frame indices are stable.
func parseFrames(raw json.RawMessage, image int, sheet *SpriteSheet) error {
	var list []jsonFrame
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, f := range list {
			sheet.addFrame(f.Filename, toFrame(f, image))
		}
		return nil
	}
	var frames map[string]jsonFrame
	if err := json.Unmarshal(raw, &frames); err != nil {
		return fmt.Errorf("stagegl: failed to parse sprite sheet frames: %w", err)
	}
	names := make([]string, 0, len(frames))
	for name := range frames {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sheet.addFrame(name, toFrame(frames[name], image))
	}
	return nil
}

// parsePackFormat parses [{"image":"...", "frames":...}, ...]
func parsePackFormat(raw json.RawMessage, sheet *SpriteSheet) error {
	var textures []jsonTexturePage
	if err := json.Unmarshal(raw, &textures); err != nil {
		return fmt.Errorf("stagegl: failed to parse sprite sheet textures array: %w", err)
	}
	for i, tex := range textures {
		if err := parseFrames(tex.Frames, i, sheet); err != nil {
			return err
		}
	}
	return nil
}

func (s *SpriteSheet) addFrame(name string, f Frame) {
	s.Frames = append(s.Frames, f)
	if name != "" {
		s.names[name] = len(s.Frames) - 1
	}
}

func toFrame(f jsonFrame, image int) Frame {
	fr := Frame{
		Image:   image,
		X:       f.Frame.X,
		Y:       f.Frame.Y,
		Width:   f.Frame.W,
		Height:  f.Frame.H,
		RegX:    -float64(f.SpriteSourceSize.X),
		RegY:    -float64(f.SpriteSourceSize.Y),
		Rotated: f.Rotated,
	}
	if f.Pivot != nil {
		fr.RegX += f.Pivot.X * float64(f.SourceSize.W)
		fr.RegY += f.Pivot.Y * float64(f.SourceSize.H)
	}
	return fr
}
