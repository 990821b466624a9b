package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
)

// Clone returns an independent NRGBA copy of img. Sprites taken from the asset store
// are cloned before any per-scene mutation.
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Rotate rotates img counter-clockwise by angle degrees. The output bounds grow to
// the bounding rectangle of the rotated raster and the uncovered corners are
// transparent, so the returned extent is the one placement must use.
func Rotate(img image.Image, angle float64) *image.NRGBA {
	return imaging.Rotate(img, angle, color.Transparent)
}

// MotionBlur applies a directional blur that simulates linear motion.
//
// Parameters:
//   - img: Source image. Alpha is blurred together with colour so sprite edges streak.
//   - sigma: Blur intensity. Values <= 0 return an unmodified copy.
//   - angle: Direction of motion in degrees, 0 pointing right and 90 pointing down.
//
// # Algorithm
//
// The kernel is a one-sided line of length 2·sigma starting at the kernel centre and
// running along the motion direction, weighted by a Gaussian of the given sigma and
// normalised to sum 1. The image is convolved with edge extension, so dimensions are
// unchanged.
func MotionBlur(img image.Image, sigma int, angle float64) *image.NRGBA {
	if sigma <= 0 {
		return imaging.Clone(img)
	}

	k := motionKernel(sigma, angle)
	blurred := convolution.Convolve(img, k.Normalized(), &convolution.Options{
		Bias:      0,
		Wrap:      false,
		KeepAlpha: false,
	})
	return imaging.Clone(blurred)
}

// motionKernel rasterises the weighted motion line into a square kernel.
func motionKernel(sigma int, angle float64) *convolution.Kernel {
	radius := 2 * sigma
	size := 2*radius + 1
	k := convolution.NewKernel(size, size)

	rad := angle * math.Pi / 180
	dx, dy := math.Cos(rad), math.Sin(rad)
	s := float64(sigma)

	// Half-pixel steps so steep angles do not leave gaps in the line.
	for t := 0.0; t <= float64(radius); t += 0.5 {
		x := radius + int(math.Round(t*dx))
		y := radius + int(math.Round(t*dy))
		k.Matrix[y*size+x] += math.Exp(-(t * t) / (2 * s * s))
	}
	return k
}
