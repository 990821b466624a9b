// Package bbox re-derives object bounding boxes after a scene-level lens distortion.
//
// Radial distortion is nonlinear and does not map axis-aligned rectangles to
// axis-aligned rectangles, so a box cannot be scaled by one global factor. Instead
// the box outline is sampled as points, each point is carried through the same
// camera model and crop/rescale the raster went through, and the new box is the
// axis-aligned bounding rectangle of the transformed points.
package bbox

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/composite-gen/internal/lens"
	"github.com/ironsheep/composite-gen/internal/scene"
)

// ErrDegenerateBox is returned when a box collapses to zero width or height. It
// means the point mapping disagrees with the raster transform and is never recoverable
// by skipping the box.
var ErrDegenerateBox = errors.New("degenerate bounding box")

// Transform describes the geometry applied to the object layer of one scene.
type Transform struct {
	// Camera is the lens model used for the raster remap.
	Camera *lens.Camera
	// Crop is the rectangle the distorted raster was cropped to. The zero value
	// means no crop.
	Crop image.Rectangle
	// TargetWidth and TargetHeight are the dimensions the crop was rescaled to.
	TargetWidth  int
	TargetHeight int
}

// MapPoint carries one scene point through the transform: undistort, then translate
// by the crop origin and scale by the crop-to-target factors.
func (t Transform) MapPoint(x, y float64) (float64, float64) {
	ux, uy := t.Camera.Undistort(x, y)
	if t.Crop.Empty() {
		return ux, uy
	}
	sx := float64(t.TargetWidth) / float64(t.Crop.Dx())
	sy := float64(t.TargetHeight) / float64(t.Crop.Dy())
	return (ux - float64(t.Crop.Min.X)) * sx, (uy - float64(t.Crop.Min.Y)) * sy
}

func (t Transform) bounds() image.Rectangle {
	return image.Rect(0, 0, t.TargetWidth, t.TargetHeight)
}

// Tracker maps placed-object boxes through a Transform.
type Tracker struct {
	// EdgeSamples is the number of extra points sampled along each box edge between
	// the corners. 0 uses the four corners only.
	EdgeSamples int
}

// NewTracker returns a tracker sampling edgeSamples interior points per edge.
func NewTracker(edgeSamples int) *Tracker {
	if edgeSamples < 0 {
		edgeSamples = 0
	}
	return &Tracker{EdgeSamples: edgeSamples}
}

// Box returns the axis-aligned box of b after the transform.
//
// # Algorithm
//
//  1. Build the outline points: (x,y), (x+w,y), (x,y+h), (x+w,y+h), plus
//     EdgeSamples evenly spaced points on each edge.
//  2. Map every point with Transform.MapPoint.
//  3. The result is x' = min(px), y' = min(py), w' = max(px)-x', h' = max(py)-y',
//     with the extremes rounded to the nearest pixel edge.
//
// An input box without positive extent, or a result with zero width or height, is
// reported as ErrDegenerateBox.
func (tr *Tracker) Box(b scene.PlacedObject, t Transform) (scene.PlacedObject, error) {
	if !b.Valid() {
		return scene.PlacedObject{}, fmt.Errorf("%w: input %v", ErrDegenerateBox, b)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range tr.outline(b) {
		x, y := t.MapPoint(p[0], p[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	if math.IsNaN(minX) || math.IsNaN(minY) || math.IsNaN(maxX) || math.IsNaN(maxY) {
		return scene.PlacedObject{}, fmt.Errorf("%w: %v mapped to non-finite points", ErrDegenerateBox, b)
	}

	x0, y0 := int(math.Round(minX)), int(math.Round(minY))
	out := scene.PlacedObject{
		Label:  b.Label,
		X:      x0,
		Y:      y0,
		Width:  int(math.Round(maxX)) - x0,
		Height: int(math.Round(maxY)) - y0,
	}
	if !out.Valid() {
		return scene.PlacedObject{}, fmt.Errorf("%w: %v mapped to %v (strength %v, crop %v)",
			ErrDegenerateBox, b, out, t.Camera.Strength, t.Crop)
	}
	return out, nil
}

// Apply maps every box, clips the results to the target raster and drops boxes that
// end up entirely outside it, which happens when the crop removes an object near the
// border. Order is preserved. It returns the kept boxes and the number dropped.
func (tr *Tracker) Apply(boxes []scene.PlacedObject, t Transform) ([]scene.PlacedObject, int, error) {
	kept := make([]scene.PlacedObject, 0, len(boxes))
	dropped := 0
	bounds := t.bounds()

	for i, b := range boxes {
		mapped, err := tr.Box(b, t)
		if err != nil {
			return nil, 0, fmt.Errorf("box %d: %w", i, err)
		}

		r := mapped.Rect().Intersect(bounds)
		if r.Empty() {
			dropped++
			continue
		}
		kept = append(kept, scene.PlacedObject{
			Label:  mapped.Label,
			X:      r.Min.X,
			Y:      r.Min.Y,
			Width:  r.Dx(),
			Height: r.Dy(),
		})
	}
	return kept, dropped, nil
}

// outline returns the sample points of box b in continuous coordinates.
func (tr *Tracker) outline(b scene.PlacedObject) [][2]float64 {
	x0, y0 := float64(b.X), float64(b.Y)
	x1, y1 := float64(b.X+b.Width), float64(b.Y+b.Height)

	points := [][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}}
	n := tr.EdgeSamples
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n+1)
		x := x0 + f*(x1-x0)
		y := y0 + f*(y1-y0)
		points = append(points, [2]float64{x, y0}, [2]float64{x, y1}, [2]float64{x0, y}, [2]float64{x1, y})
	}
	return points
}
