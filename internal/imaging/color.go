package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// quantStep groups colours whose 8-bit components fall in the same 16-wide bucket.
const quantStep = 16

// BorderColor estimates the backdrop colour of a photographed object.
//
// Parameters:
//   - img: The raw object photo.
//   - band: Width in pixels of the border strip that is sampled. Values < 1 use 1.
//
// Returns the mean colour of the most frequent quantised colour bucket found in the
// border strip. Raw object photos are expected to be framed on a roughly uniform
// backdrop, which dominates the border.
//
// # Color Quantization
//
// Components are bucketed as (c / 16) * 16, the same grouping used for dominant
// colour palettes. Averaging the actual pixels of the winning bucket removes the
// quantisation bias.
func BorderColor(img image.Image, band int) colorful.Color {
	if band < 1 {
		band = 1
	}
	b := img.Bounds()

	type bucket struct {
		count   int
		r, g, b float64
	}
	buckets := make(map[[3]uint8]*bucket)
	var best *bucket

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if x >= b.Min.X+band && x < b.Max.X-band && y >= b.Min.Y+band && y < b.Max.Y-band {
				continue
			}
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			key := [3]uint8{c.R / quantStep * quantStep, c.G / quantStep * quantStep, c.B / quantStep * quantStep}
			bk, ok := buckets[key]
			if !ok {
				bk = &bucket{}
				buckets[key] = bk
			}
			bk.count++
			bk.r += float64(c.R)
			bk.g += float64(c.G)
			bk.b += float64(c.B)
			if best == nil || bk.count > best.count {
				best = bk
			}
		}
	}

	if best == nil {
		return colorful.Color{}
	}
	n := float64(best.count) * 255
	return colorful.Color{R: best.r / n, G: best.g / n, B: best.b / n}
}

// ParseColor parses a "#RRGGBB" hex colour into an opaque color.NRGBA.
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
