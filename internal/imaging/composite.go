package imaging

import "image"

// NewLayer returns a fully transparent width x height raster. Objects are composited
// onto a layer when the scene needs to distort them independently of the background.
func NewLayer(width, height int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

// Composite blends src over dst with its top-left corner at (x, y) and returns the
// result. Pixels of dst outside src are preserved, src pixels falling outside dst are
// clipped, and dst itself is not modified.
//
// The same operation serves both compositing paths: sprites directly onto the
// background, and sprites onto a transparent layer that is later composited onto the
// background at (0, 0).
//
// # Blending
//
// Straight (non-premultiplied) alpha-over, per pixel with alphas in [0,1]:
//
//	outA = srcA + dstA·(1 - srcA)
//	outC = (srcC·srcA + dstC·dstA·(1 - srcA)) / outA
//
// A pixel where both alphas are 0 stays fully transparent.
func Composite(dst, src image.Image, x, y int) *image.NRGBA {
	out := Clone(dst)
	s, ok := src.(*image.NRGBA)
	if !ok || s.Rect.Min != (image.Point{}) {
		s = Clone(src)
	}

	paste := s.Rect.Add(image.Pt(x, y))
	inter := paste.Intersect(out.Rect)
	if inter.Empty() {
		return out
	}

	for py := inter.Min.Y; py < inter.Max.Y; py++ {
		for px := inter.Min.X; px < inter.Max.X; px++ {
			si := s.PixOffset(px-x, py-y)
			sa := float64(s.Pix[si+3]) / 255
			if sa == 0 {
				continue
			}
			di := out.PixOffset(px, py)
			d := out.Pix[di : di+4 : di+4]
			if sa == 1 {
				copy(d, s.Pix[si:si+4])
				continue
			}

			da := float64(d[3]) / 255
			keep := da * (1 - sa)
			outA := sa + keep
			for c := 0; c < 3; c++ {
				d[c] = clampByte((float64(s.Pix[si+c])*sa + float64(d[c])*keep) / outA)
			}
			d[3] = clampByte(outA * 255)
		}
	}
	return out
}
