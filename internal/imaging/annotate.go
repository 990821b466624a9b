package imaging

import (
	"image"
	"image/color"
	"strconv"

	"github.com/ironsheep/composite-gen/internal/scene"
)

// outlineWidth is the stroke width of annotation rectangles in pixels.
const outlineWidth = 2

// Annotate draws each box outline and its 0-based index onto a copy of img. The
// result is a review aid for checking that labels still match the objects after
// rotation, cropping and lens distortion; it is never uploaded.
//
// Parameters:
//   - img: The composite to annotate.
//   - boxes: Boxes in the coordinate space of img.
//   - outline: Stroke colour.
func Annotate(img image.Image, boxes []scene.PlacedObject, outline color.NRGBA) *image.NRGBA {
	result := Clone(img)
	labelColor := color.NRGBA{255, 255, 255, 255}
	bgColor := color.NRGBA{0, 0, 0, 180}

	for i, box := range boxes {
		r := box.Rect().Intersect(result.Rect)
		if r.Empty() {
			continue
		}
		strokeRect(result, r, outline)
		drawLabel(result, r.Min.X+outlineWidth+1, r.Min.Y+outlineWidth+1, strconv.Itoa(i), labelColor, bgColor)
	}
	return result
}

// strokeRect draws the inside border of r.
func strokeRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if x < r.Min.X+outlineWidth || x >= r.Max.X-outlineWidth ||
				y < r.Min.Y+outlineWidth || y >= r.Max.Y-outlineWidth {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

// drawLabel draws a digits-only label with a 3x5 pixel font. Characters without a
// glyph advance the cursor and are left blank.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	// Simple 3x5 pixel font for digits and comma
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	// Draw background
	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.SetNRGBA(px, py, bg)
			}
		}
	}

	// Draw text
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
						img.SetNRGBA(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
