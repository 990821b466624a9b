package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropAndRescale extracts region from img and resizes it back to width x height.
//
// This is the second half of the fisheye transform: the distorted raster is cropped
// to its largest valid rectangle and stretched to the original dimensions. Object
// boxes must be carried through the same translation and the same per-axis scale
// factors (width/region.Dx(), height/region.Dy()).
//
// Parameters:
//   - img: Source raster with its origin at (0,0).
//   - region: Crop rectangle; must be non-empty and inside img.
//   - width, height: Target dimensions.
//
// Returns:
//   - *image.NRGBA: The cropped and rescaled raster.
//   - error: Non-nil if region is empty or outside img.
func CropAndRescale(img image.Image, region image.Rectangle, width, height int) (*image.NRGBA, error) {
	bounds := img.Bounds()

	if !region.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", region, bounds)
	}
	if region.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: must have positive area", region)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	cropped := imaging.Crop(img, region)
	if region.Dx() == width && region.Dy() == height {
		return cropped, nil
	}
	return imaging.Resize(cropped, width, height, imaging.Linear), nil
}

// Trim crops img to the bounding rectangle of its non-transparent pixels.
// It returns ErrDegenerateRegion when img is fully transparent.
func Trim(img *image.NRGBA) (*image.NRGBA, error) {
	r := AlphaMask(img, 0).Bounds()
	if r.Empty() {
		return nil, ErrDegenerateRegion
	}
	return imaging.Crop(img, r.Add(img.Rect.Min)), nil
}
