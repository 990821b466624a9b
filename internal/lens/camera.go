// Package lens implements the radial lens-distortion camera model shared by the
// fisheye raster remap and the bounding-box tracker.
//
// # Model
//
// A Camera is a pinhole camera with intrinsic matrix
//
//	K = | f 0 cx |
//	    | 0 f cy |
//	    | 0 0  1 |
//
// where f = max(width, height)/2 and (cx, cy) is the raster centre, plus two radial
// coefficients derived from a single strength s >= 0: k1 = s, k2 = s/2.
//
// A pixel-space point p is normalised with K⁻¹, scaled radially by
// 1 + k1·r² + k2·r⁴, and mapped back with K. That forward point mapping is Distort.
// Undistort is its exact inverse, solved numerically on the radius.
//
// # Raster vs Point Mapping
//
// The fisheye remap samples its source at Distort(p) for every output pixel p, so a
// feature located at s in the source appears at Undistort(s) in the output. Boxes are
// therefore carried into the distorted scene with Undistort. Both directions read the
// same K and coefficients; using any other parameterisation for one of them puts the
// boxes off by a scale factor.
//
// Coordinates are continuous: pixel i covers [i, i+1) and its centre is i+0.5.
package lens

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidCamera is returned for non-positive raster sizes or invalid strengths.
var ErrInvalidCamera = errors.New("invalid camera parameters")

const (
	newtonIterations = 32
	newtonTolerance  = 1e-12
)

// Camera is an immutable radial-distortion model for one raster size. It is safe for
// concurrent use.
type Camera struct {
	Width    int
	Height   int
	Strength float64

	k    *mat.Dense
	kInv *mat.Dense
	k1   float64
	k2   float64

	// cached entries of K and K⁻¹ for the per-pixel path
	fx, fy, cx, cy     float64
	ifx, ify, icx, icy float64
}

// NewCamera builds the camera for a width x height raster and a distortion strength.
// Strength 0 is the identity model.
func NewCamera(width, height int, strength float64) (*Camera, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: raster %dx%d", ErrInvalidCamera, width, height)
	}
	if strength < 0 || math.IsNaN(strength) || math.IsInf(strength, 0) {
		return nil, fmt.Errorf("%w: strength %v must be a finite value >= 0", ErrInvalidCamera, strength)
	}

	f := float64(max(width, height)) / 2
	cx := float64(width) / 2
	cy := float64(height) / 2

	k := mat.NewDense(3, 3, []float64{
		f, 0, cx,
		0, f, cy,
		0, 0, 1,
	})
	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return nil, fmt.Errorf("%w: singular intrinsic matrix: %v", ErrInvalidCamera, err)
	}

	return &Camera{
		Width:    width,
		Height:   height,
		Strength: strength,
		k:        k,
		kInv:     &kInv,
		k1:       strength,
		k2:       strength / 2,
		fx:       k.At(0, 0),
		fy:       k.At(1, 1),
		cx:       k.At(0, 2),
		cy:       k.At(1, 2),
		ifx:      kInv.At(0, 0),
		ify:      kInv.At(1, 1),
		icx:      kInv.At(0, 2),
		icy:      kInv.At(1, 2),
	}, nil
}

// Intrinsics returns a copy of the intrinsic matrix K.
func (c *Camera) Intrinsics() *mat.Dense {
	return mat.DenseCopyOf(c.k)
}

// Coefficients returns the radial distortion coefficients (k1, k2).
func (c *Camera) Coefficients() (k1, k2 float64) {
	return c.k1, c.k2
}

// Identity reports whether the camera leaves every point unchanged.
func (c *Camera) Identity() bool {
	return c.k1 == 0 && c.k2 == 0
}

// Distort maps a pixel-space point through the forward radial model. It is the
// sampling function of the raster remap.
func (c *Camera) Distort(x, y float64) (float64, float64) {
	nx := c.ifx*x + c.icx
	ny := c.ify*y + c.icy
	r2 := nx*nx + ny*ny
	scale := 1 + c.k1*r2 + c.k2*r2*r2
	return c.fx*nx*scale + c.cx, c.fy*ny*scale + c.cy
}

// Undistort is the inverse of Distort. It is the point mapping used for boxes.
func (c *Camera) Undistort(x, y float64) (float64, float64) {
	var n mat.VecDense
	n.MulVec(c.kInv, mat.NewVecDense(3, []float64{x, y, 1}))
	nx, ny := n.AtVec(0)/n.AtVec(2), n.AtVec(1)/n.AtVec(2)

	rd := math.Hypot(nx, ny)
	if rd == 0 || c.Identity() {
		return x, y
	}

	r := c.solveRadius(rd)
	ratio := r / rd

	var p mat.VecDense
	p.MulVec(c.k, mat.NewVecDense(3, []float64{nx * ratio, ny * ratio, 1}))
	return p.AtVec(0) / p.AtVec(2), p.AtVec(1) / p.AtVec(2)
}

// solveRadius finds r >= 0 with r + k1·r³ + k2·r⁵ = rd. The left side is strictly
// increasing and convex for r > 0 when both coefficients are non-negative, so Newton
// started at rd converges monotonically from above.
func (c *Camera) solveRadius(rd float64) float64 {
	r := rd
	for i := 0; i < newtonIterations; i++ {
		r2 := r * r
		f := r*(1+c.k1*r2+c.k2*r2*r2) - rd
		df := 1 + 3*c.k1*r2 + 5*c.k2*r2*r2
		step := f / df
		r -= step
		if math.Abs(step) < newtonTolerance {
			break
		}
	}
	return r
}
