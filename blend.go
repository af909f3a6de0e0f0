package stagegl

import (
	"fmt"
	"strings"
)

// BlendMode selects how a node composites onto what is already drawn. The
// zero value inherits the parent's mode; the root inherits source-over.
type BlendMode uint8

const (
	BlendInherit BlendMode = iota

	// Fixed-function modes, batched like any other draw.
	BlendSourceOver
	BlendSourceAtop
	BlendDestinationOver
	BlendDestinationOut
	BlendLighter
	BlendXor

	// Cover modes read the destination and are drawn with a full-target
	// pass.
	BlendSourceIn
	BlendSourceOut
	BlendDestinationIn
	BlendDestinationAtop
	BlendCopy
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendHardLight
	BlendSoftLight
	BlendDifference
	BlendExclusion
	BlendHue
	BlendSaturation
	BlendColor
	BlendLuminosity

	blendModeCount
)

var blendModeNames = [blendModeCount]string{
	BlendInherit:         "inherit",
	BlendSourceOver:      "source-over",
	BlendSourceAtop:      "source-atop",
	BlendDestinationOver: "destination-over",
	BlendDestinationOut:  "destination-out",
	BlendLighter:         "lighter",
	BlendXor:             "xor",
	BlendSourceIn:        "source-in",
	BlendSourceOut:       "source-out",
	BlendDestinationIn:   "destination-in",
	BlendDestinationAtop: "destination-atop",
	BlendCopy:            "copy",
	BlendMultiply:        "multiply",
	BlendScreen:          "screen",
	BlendOverlay:         "overlay",
	BlendDarken:          "darken",
	BlendLighten:         "lighten",
	BlendColorDodge:      "color-dodge",
	BlendColorBurn:       "color-burn",
	BlendHardLight:       "hard-light",
	BlendSoftLight:       "soft-light",
	BlendDifference:      "difference",
	BlendExclusion:       "exclusion",
	BlendHue:             "hue",
	BlendSaturation:      "saturation",
	BlendColor:           "color",
	BlendLuminosity:      "luminosity",
}

func (b BlendMode) String() string {
	if b < blendModeCount {
		return blendModeNames[b]
	}
	return fmt.Sprintf("BlendMode(%d)", uint8(b))
}

// ParseBlendMode returns the mode with the given composite-operation name.
func ParseBlendMode(name string) (BlendMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range blendModeNames {
		if n == name {
			return BlendMode(i), nil
		}
	}
	return BlendInherit, fmt.Errorf("stagegl: unknown blend mode %q", name)
}

// IsCover reports whether the mode needs the cover pipeline.
func (b BlendMode) IsCover() bool {
	return b >= BlendSourceIn && b < blendModeCount
}

// resolve substitutes the inherited mode for BlendInherit.
func (b BlendMode) resolve(parent BlendMode) BlendMode {
	if b == BlendInherit {
		if parent == BlendInherit {
			return BlendSourceOver
		}
		return parent
	}
	return b
}

// fixedBlendStates maps fixed-function modes to premultiplied blend factors.
// Cover modes draw with blending disabled because their shader produces the
// final composite.
var fixedBlendStates = [...]BlendState{
	BlendSourceOver: {
		SrcRGB: BlendFactorOne, DstRGB: BlendFactorOneMinusSrcAlpha,
		SrcAlpha: BlendFactorOne, DstAlpha: BlendFactorOneMinusSrcAlpha,
	},
	BlendSourceAtop: {
		SrcRGB: BlendFactorDstAlpha, DstRGB: BlendFactorOneMinusSrcAlpha,
		SrcAlpha: BlendFactorDstAlpha, DstAlpha: BlendFactorOneMinusSrcAlpha,
	},
	BlendDestinationOver: {
		SrcRGB: BlendFactorOneMinusDstAlpha, DstRGB: BlendFactorOne,
		SrcAlpha: BlendFactorOneMinusDstAlpha, DstAlpha: BlendFactorOne,
	},
	BlendDestinationOut: {
		SrcRGB: BlendFactorZero, DstRGB: BlendFactorOneMinusSrcAlpha,
		SrcAlpha: BlendFactorZero, DstAlpha: BlendFactorOneMinusSrcAlpha,
	},
	BlendLighter: {
		SrcRGB: BlendFactorOne, DstRGB: BlendFactorOne,
		SrcAlpha: BlendFactorOne, DstAlpha: BlendFactorOne,
	},
	BlendXor: {
		SrcRGB: BlendFactorOneMinusDstAlpha, DstRGB: BlendFactorOneMinusSrcAlpha,
		SrcAlpha: BlendFactorOneMinusDstAlpha, DstAlpha: BlendFactorOneMinusSrcAlpha,
	},
}

// blendState returns the fixed-function state used while drawing in mode b.
func (b BlendMode) blendState() BlendState {
	if b.IsCover() {
		return BlendState{Disable: true}
	}
	if int(b) < len(fixedBlendStates) && b != BlendInherit {
		return fixedBlendStates[b]
	}
	return fixedBlendStates[BlendSourceOver]
}
