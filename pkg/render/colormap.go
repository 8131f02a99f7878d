package render

import (
	"fmt"
	"image/color"
	"math"
)

// Colormap maps a value in [0, 1] to a colour
type Colormap func(v float64) color.RGBA

// viridisAnchors are evenly spaced samples of the viridis colour map
var viridisAnchors = []color.RGBA{
	{68, 1, 84, 255},
	{72, 40, 120, 255},
	{62, 74, 137, 255},
	{49, 104, 142, 255},
	{38, 130, 142, 255},
	{31, 158, 137, 255},
	{53, 183, 121, 255},
	{109, 205, 89, 255},
	{180, 222, 44, 255},
	{253, 231, 37, 255},
}

var grayAnchors = []color.RGBA{
	{0, 0, 0, 255},
	{255, 255, 255, 255},
}

// Viridis is a perceptually uniform dark-blue to yellow map
func Viridis(v float64) color.RGBA { return interpolate(viridisAnchors, v) }

// Gray maps 0 to black and 1 to white
func Gray(v float64) color.RGBA { return interpolate(grayAnchors, v) }

// ColormapByName looks up a colormap
func ColormapByName(name string) (Colormap, error) {
	switch name {
	case "", "viridis":
		return Viridis, nil
	case "gray", "grey":
		return Gray, nil
	default:
		return nil, fmt.Errorf("unknown colormap %q (want viridis or gray)", name)
	}
}

func interpolate(anchors []color.RGBA, v float64) color.RGBA {
	if math.IsNaN(v) || v <= 0 {
		return anchors[0]
	}
	if v >= 1 {
		return anchors[len(anchors)-1]
	}

	pos := v * float64(len(anchors)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := anchors[i], anchors[i+1]

	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + frac*(float64(y)-float64(x))))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}
