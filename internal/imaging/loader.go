package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
	_ "golang.org/x/image/bmp" // Register BMP format decoder
)

// supportedExtensions lists the file extensions accepted as background and object
// assets. Matching is case-insensitive.
var supportedExtensions = map[string]bool{
	".png":  true,
	".bmp":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsSupported reports whether a file name has an extension the loader can decode.
func IsSupported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ImageCache provides thread-safe caching of decoded images to avoid redundant disk
// reads and decodes.
//
// The cache stores *image.NRGBA rasters keyed by their file path and never expires
// entries on its own. The rasters it returns are shared master copies: callers must
// clone before mutating them.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.Load("/data/object/cup_01.png")
//	if err != nil {
//	    return err
//	}
//	working := imaging.Clone(img)
type ImageCache struct {
	items *cache.Cache
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		items: cache.New(cache.NoExpiration, 0),
	}
}

// Load retrieves an image from the cache or decodes it from disk if not cached.
//
// Parameters:
//   - path: File path to the image. Supported formats are PNG, BMP and JPEG.
//
// Returns:
//   - *image.NRGBA: The decoded image normalised to non-premultiplied RGBA with its
//     bounds starting at (0,0).
//   - error: Non-nil if the file cannot be opened or decoded.
//
// The image is cached using the exact path string provided.
func (c *ImageCache) Load(path string) (*image.NRGBA, error) {
	if v, ok := c.items.Get(path); ok {
		return v.(*image.NRGBA), nil
	}

	img, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	c.items.Set(path, img, cache.NoExpiration)
	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return c.items.ItemCount()
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.items.Flush()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.items.Delete(path)
}

// LoadFile opens and decodes one image file without caching.
func LoadFile(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Decode reads any registered image format and converts it to *image.NRGBA.
func Decode(r io.Reader) (*image.NRGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return imaging.Clone(img), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
