// Package imaging provides the raster operations of composite synthesis.
//
// This package implements the transform pipeline and the compositor: sprite rotation
// and motion blur, straight alpha-over compositing, the fisheye remap with its
// largest-valid-rectangle crop, and asset decoding. All operations work with standard
// Go image.Image types and return *image.NRGBA rasters whose bounds start at (0,0).
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// The lens remap uses continuous coordinates in which pixel i spans [i, i+1), matching
// the point mapping of package lens.
//
// # Ownership
//
// No function in this package mutates its input raster. Rasters returned by
// ImageCache are shared: clone them before handing them to code that writes pixels.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual operations are stateless
// and can be called concurrently on different images.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Crop regions outside the image or with no area
//   - Rasters whose size disagrees with the lens model
//   - Distortions that leave no valid region (ErrDegenerateRegion)
//   - File I/O and decode errors during loading
package imaging
