package imaging

import "image"

// Mask is a binary per-pixel mask with its origin at (0,0).
type Mask struct {
	Width  int
	Height int
	bits   []bool
}

// NewMask returns an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, bits: make([]bool, width*height)}
}

// AlphaMask marks every pixel of img whose alpha is above threshold.
func AlphaMask(img *image.NRGBA, threshold uint8) *Mask {
	b := img.Rect
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if img.Pix[img.PixOffset(x+b.Min.X, y+b.Min.Y)+3] > threshold {
				m.bits[y*m.Width+x] = true
			}
		}
	}
	return m
}

// At reports the mask value at (x, y); out-of-range coordinates are false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

// Set assigns the mask value at (x, y).
func (m *Mask) Set(x, y int, v bool) {
	m.bits[y*m.Width+x] = v
}

// Bounds returns the bounding rectangle of the set pixels, or the empty rectangle.
func (m *Mask) Bounds() image.Rectangle {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.bits[y*m.Width+x] {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// LargestRectangle finds the axis-aligned rectangle of greatest area containing only
// set pixels.
//
// # Algorithm
//
// Each row is treated as the base of a histogram whose bar heights are the run of set
// pixels ending at that row in each column. The largest rectangle under every
// histogram is found with a monotonic stack in O(width); the best over all rows wins,
// giving O(width·height) overall. Ties keep the first rectangle found scanning
// top-down.
func LargestRectangle(m *Mask) image.Rectangle {
	heights := make([]int, m.Width+1) // trailing 0 sentinel flushes the stack
	stack := make([]int, 0, m.Width+1)
	var best image.Rectangle
	bestArea := 0

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.bits[y*m.Width+x] {
				heights[x]++
			} else {
				heights[x] = 0
			}
		}

		stack = stack[:0]
		for x := 0; x <= m.Width; x++ {
			for len(stack) > 0 && heights[stack[len(stack)-1]] >= heights[x] {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				left := 0
				if len(stack) > 0 {
					left = stack[len(stack)-1] + 1
				}
				h := heights[top]
				if area := h * (x - left); area > bestArea {
					bestArea = area
					best = image.Rect(left, y-h+1, x, y+1)
				}
			}
			stack = append(stack, x)
		}
	}
	return best
}
