package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestCropAndRescale(t *testing.T) {
	img := createPatternImage(100, 100)

	// Top-left quadrant stretched back to full size is entirely red.
	result, err := CropAndRescale(img, image.Rect(0, 0, 50, 50), 100, 100)
	if err != nil {
		t.Fatalf("CropAndRescale failed: %v", err)
	}

	if result.Bounds().Dx() != 100 || result.Bounds().Dy() != 100 {
		t.Errorf("dimensions: got %dx%d, want 100x100", result.Bounds().Dx(), result.Bounds().Dy())
	}
	if c := result.NRGBAAt(50, 50); c.R < 250 || c.G > 5 || c.B > 5 {
		t.Errorf("centre pixel: got %v, want red", c)
	}
}

func TestCropAndRescale_SameSize(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := CropAndRescale(img, image.Rect(50, 0, 100, 50), 50, 50)
	if err != nil {
		t.Fatalf("CropAndRescale failed: %v", err)
	}
	if c := result.NRGBAAt(0, 0); c != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("pixel (0,0): got %v, want green", c)
	}
}

func TestCropAndRescale_Invalid(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name          string
		region        image.Rectangle
		width, height int
	}{
		{"x1 negative", image.Rect(-1, 0, 50, 50), 100, 100},
		{"x2 too large", image.Rect(0, 0, 101, 50), 100, 100},
		{"y2 too large", image.Rect(0, 0, 50, 101), 100, 100},
		{"empty region", image.Rect(10, 10, 10, 20), 100, 100},
		{"zero target", image.Rect(0, 0, 50, 50), 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CropAndRescale(img, tt.region, tt.width, tt.height); err == nil {
				t.Error("CropAndRescale should fail")
			}
		})
	}
}

func TestTrim(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 5; y < 12; y++ {
		for x := 3; x < 9; x++ {
			img.SetNRGBA(x, y, color.NRGBA{10, 20, 30, 255})
		}
	}

	trimmed, err := Trim(img)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if trimmed.Bounds().Dx() != 6 || trimmed.Bounds().Dy() != 7 {
		t.Errorf("trimmed size: got %dx%d, want 6x7", trimmed.Bounds().Dx(), trimmed.Bounds().Dy())
	}
	if c := trimmed.NRGBAAt(0, 0); c.A != 255 {
		t.Errorf("trimmed corner alpha: got %d, want 255", c.A)
	}
}

func TestTrim_FullyTransparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	if _, err := Trim(img); !errors.Is(err, ErrDegenerateRegion) {
		t.Errorf("Trim: got %v, want ErrDegenerateRegion", err)
	}
}
