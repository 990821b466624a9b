package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/composite-gen/internal/lens"
)

// ErrDegenerateRegion is returned when a distorted raster has no usable region to
// crop, for example when the strength maps every output pixel outside the source.
var ErrDegenerateRegion = errors.New("distorted raster has no valid region")

// sampleEpsilon absorbs floating point noise in the identity model at the raster edge.
const sampleEpsilon = 1e-6

// Remap applies the camera's lens distortion to a raster.
//
// Every output pixel p samples the source at cam.Distort(p) using bilinear
// interpolation in premultiplied space, so transparent object layers do not grow dark
// fringes. Output pixels whose sample lies outside the source are left fully
// transparent.
//
// Parameters:
//   - src: Source raster. Its size must match the camera's.
//   - cam: The lens model; the same camera must be used for the paired layer and for
//     the bounding-box tracker.
//
// Returns:
//   - *image.NRGBA: The distorted raster, same size as src.
//   - error: Non-nil if src and cam disagree on size.
func Remap(src image.Image, cam *lens.Camera) (*image.NRGBA, error) {
	b := src.Bounds()
	if b.Dx() != cam.Width || b.Dy() != cam.Height {
		return nil, fmt.Errorf("raster %dx%d does not match camera %dx%d", b.Dx(), b.Dy(), cam.Width, cam.Height)
	}

	in, ok := src.(*image.NRGBA)
	if !ok || in.Rect.Min != (image.Point{}) {
		in = Clone(src)
	}

	out := image.NewNRGBA(image.Rect(0, 0, cam.Width, cam.Height))
	for v := 0; v < cam.Height; v++ {
		for u := 0; u < cam.Width; u++ {
			sx, sy := cam.Distort(float64(u)+0.5, float64(v)+0.5)
			if !insideSource(sx, sy, cam.Width, cam.Height) {
				continue
			}
			i := out.PixOffset(u, v)
			copy(out.Pix[i:i+4], bilinear(in, sx-0.5, sy-0.5))
		}
	}
	return out, nil
}

// ValidMask reports, per output pixel, whether the remap samples inside the source.
// It depends only on geometry, so background and object layers of one scene share it.
func ValidMask(cam *lens.Camera) *Mask {
	m := NewMask(cam.Width, cam.Height)
	for v := 0; v < cam.Height; v++ {
		for u := 0; u < cam.Width; u++ {
			sx, sy := cam.Distort(float64(u)+0.5, float64(v)+0.5)
			if insideSource(sx, sy, cam.Width, cam.Height) {
				m.Set(u, v, true)
			}
		}
	}
	return m
}

// CropRegion returns the largest axis-aligned rectangle of the distorted raster that
// contains no unfilled pixels. The identity camera yields the full raster.
func CropRegion(cam *lens.Camera) (image.Rectangle, error) {
	r := LargestRectangle(ValidMask(cam))
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: strength %v on %dx%d", ErrDegenerateRegion, cam.Strength, cam.Width, cam.Height)
	}
	return r, nil
}

func insideSource(x, y float64, width, height int) bool {
	return x >= -sampleEpsilon && y >= -sampleEpsilon &&
		x <= float64(width)+sampleEpsilon && y <= float64(height)+sampleEpsilon
}

// bilinear samples img at continuous pixel-index coordinates (x, y), clamping to the
// edge, and returns straight-alpha RGBA bytes.
func bilinear(img *image.NRGBA, x, y float64) []uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	x = math.Max(0, math.Min(x, float64(w-1)))
	y = math.Max(0, math.Min(y, float64(h-1)))

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	var acc [4]float64
	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	points := [4][2]int{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}}
	for n, p := range points {
		i := img.PixOffset(p[0], p[1])
		a := float64(img.Pix[i+3]) * weights[n]
		acc[0] += float64(img.Pix[i]) * a
		acc[1] += float64(img.Pix[i+1]) * a
		acc[2] += float64(img.Pix[i+2]) * a
		acc[3] += a
	}

	if acc[3] == 0 {
		return []uint8{0, 0, 0, 0}
	}
	return []uint8{
		clampByte(acc[0] / acc[3]),
		clampByte(acc[1] / acc[3]),
		clampByte(acc[2] / acc[3]),
		clampByte(acc[3]),
	}
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
