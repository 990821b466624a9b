package engine

import (
	"image"

	"github.com/ironsheep/composite-gen/internal/bbox"
	"github.com/ironsheep/composite-gen/internal/imaging"
	"github.com/ironsheep/composite-gen/internal/lens"
)

// Distortion is the scene-level fisheye of one scene. One value is built per scene
// and applied to every distorted layer, so all layers share the camera and the crop.
type Distortion struct {
	Camera *lens.Camera
	// Crop is empty when cropping is disabled.
	Crop          image.Rectangle
	Width, Height int
}

// NewDistortion builds the camera for a width x height scene and, when crop is set,
// the largest valid rectangle of its remap. It returns imaging.ErrDegenerateRegion
// when cropping is requested but no valid region exists.
func NewDistortion(width, height int, strength float64, crop bool) (*Distortion, error) {
	cam, err := lens.NewCamera(width, height, strength)
	if err != nil {
		return nil, err
	}
	d := &Distortion{Camera: cam, Width: width, Height: height}
	if crop {
		r, err := imaging.CropRegion(cam)
		if err != nil {
			return nil, err
		}
		d.Crop = r
	}
	return d, nil
}

// Apply remaps img and, when cropping, crops it to the shared region and rescales it
// to the scene size.
func (d *Distortion) Apply(img image.Image) (*image.NRGBA, error) {
	out, err := imaging.Remap(img, d.Camera)
	if err != nil {
		return nil, err
	}
	if d.Crop.Empty() {
		return out, nil
	}
	return imaging.CropAndRescale(out, d.Crop, d.Width, d.Height)
}

// Transform returns the point mapping matching Apply.
func (d *Distortion) Transform() bbox.Transform {
	return bbox.Transform{
		Camera:       d.Camera,
		Crop:         d.Crop,
		TargetWidth:  d.Width,
		TargetHeight: d.Height,
	}
}
