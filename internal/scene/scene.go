// Package scene defines the records shared by every stage of composite synthesis:
// placed-object boxes, placement rectangles, and the per-scene parameters that are
// drawn once and handed to each transform.
//
// # Coordinate System
//
// Coordinates are 0-based pixels with the origin at the top-left corner, X increasing
// rightward and Y increasing downward. A box (X, Y, Width, Height) covers the
// half-open region [X, X+Width) x [Y, Y+Height).
package scene

import (
	"fmt"
	"image"
)

// PlacedObject is the axis-aligned bounding box of one placed sprite in the current
// coordinate space of its scene. The JSON form is the one written to the manifest and
// sent in upload headers.
type PlacedObject struct {
	Label  string `json:"label"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Overlaps reports whether two boxes intersect with positive area. Boxes that only
// share an edge do not overlap.
func (p PlacedObject) Overlaps(o PlacedObject) bool {
	return p.X < o.X+o.Width &&
		p.X+p.Width > o.X &&
		p.Y < o.Y+o.Height &&
		p.Y+p.Height > o.Y
}

// Rect returns the box as an image.Rectangle.
func (p PlacedObject) Rect() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
}

// Valid reports whether the box has positive extent.
func (p PlacedObject) Valid() bool {
	return p.Width > 0 && p.Height > 0
}

func (p PlacedObject) String() string {
	return fmt.Sprintf("%s{x:%d,y:%d,w:%d,h:%d}", p.Label, p.X, p.Y, p.Width, p.Height)
}

// Rect is a sub-rectangle of a scene given by its top-left corner and extent.
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether box lies fully inside r.
func (r Rect) Contains(box PlacedObject) bool {
	return box.X >= r.Left && box.Y >= r.Top &&
		box.X+box.Width <= r.Left+r.Width &&
		box.Y+box.Height <= r.Top+r.Height
}

// FromImageRect converts an image.Rectangle to a Rect.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{Left: r.Min.X, Top: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// PlacementArea restricts where object anchors may be chosen, as inclusive-exclusive
// corners (X1,Y1)-(X2,Y2). Whole disables the restriction.
type PlacementArea struct {
	Whole bool
	X1    int
	Y1    int
	X2    int
	Y2    int
}

// WholeImage is the sentinel area that expands to the full background.
var WholeImage = PlacementArea{Whole: true}

// Resolve returns the placement rectangle for a background of the given size. A
// configured area is clipped to the background so every accepted box stays inside
// the raster.
func (a PlacementArea) Resolve(width, height int) Rect {
	bounds := image.Rect(0, 0, width, height)
	if a.Whole {
		return FromImageRect(bounds)
	}
	return FromImageRect(image.Rect(a.X1, a.Y1, a.X2, a.Y2).Intersect(bounds))
}

func (a PlacementArea) String() string {
	if a.Whole {
		return "-1"
	}
	return fmt.Sprintf("%d,%d,%d,%d", a.X1, a.Y1, a.X2, a.Y2)
}

// FisheyeMode selects which layers a scene-level lens distortion is applied to.
type FisheyeMode string

const (
	FisheyeNone       FisheyeMode = "none"
	FisheyeBackground FisheyeMode = "background"
	FisheyeObjects    FisheyeMode = "objects"
	FisheyeBoth       FisheyeMode = "both"
)

// DistortsBackground reports whether the background layer is remapped.
func (m FisheyeMode) DistortsBackground() bool {
	return m == FisheyeBackground || m == FisheyeBoth
}

// DistortsObjects reports whether the object layer is remapped. When it is, the
// object boxes must be re-derived after the remap.
func (m FisheyeMode) DistortsObjects() bool {
	return m == FisheyeObjects || m == FisheyeBoth
}

// Params holds the values drawn once at scene start and passed into every per-object
// and per-image transform of that scene.
type Params struct {
	// BlurAmount is the motion blur sigma; 0 disables blur for the scene.
	BlurAmount int
	// BlurAngle is the motion blur direction in degrees.
	BlurAngle float64
	// Fisheye is the set of layers distorted with Strength.
	Fisheye  FisheyeMode
	Strength float64
	// Crop requests cropping the distorted raster to its largest valid rectangle.
	Crop bool
}

// Scene is one output composite: the final raster and the ordered boxes of the
// objects it contains.
type Scene struct {
	Index    int
	Filename string
	Image    image.Image
	Objects  []PlacedObject
	Params   Params
	// Dropped counts boxes removed because a crop moved them fully out of frame.
	Dropped int
}
