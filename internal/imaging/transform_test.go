package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestClone_Independent(t *testing.T) {
	img := createPatternImage(10, 10)
	c := Clone(img)
	c.SetNRGBA(0, 0, color.NRGBA{1, 2, 3, 4})

	if img.NRGBAAt(0, 0) == c.NRGBAAt(0, 0) {
		t.Error("mutating the clone changed the source")
	}
}

func TestRotate_RightAngle(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 20))

	rotated := Rotate(img, 90)
	if rotated.Bounds().Dx() != 20 || rotated.Bounds().Dy() != 10 {
		t.Errorf("rotated size: got %dx%d, want 20x10", rotated.Bounds().Dx(), rotated.Bounds().Dy())
	}
}

func TestRotate_GrowsBoundsWithTransparentCorners(t *testing.T) {
	img := createFramedImage(20, 20, 0, color.NRGBA{255, 0, 0, 255}, color.NRGBA{255, 0, 0, 255})

	rotated := Rotate(img, 45)
	w, h := rotated.Bounds().Dx(), rotated.Bounds().Dy()
	if w <= 20 || h <= 20 {
		t.Fatalf("rotated size: got %dx%d, want both > 20", w, h)
	}
	if a := rotated.NRGBAAt(0, 0).A; a != 0 {
		t.Errorf("corner alpha: got %d, want 0", a)
	}
	if a := rotated.NRGBAAt(w/2, h/2).A; a != 255 {
		t.Errorf("centre alpha: got %d, want 255", a)
	}
}

func TestRotate_DoesNotMutateSource(t *testing.T) {
	img := createPatternImage(10, 10)
	before := img.NRGBAAt(0, 0)
	_ = Rotate(img, 33)
	if img.NRGBAAt(0, 0) != before || img.Bounds().Dx() != 10 {
		t.Error("Rotate modified its input")
	}
}

func TestMotionBlur_ZeroSigma(t *testing.T) {
	img := createPatternImage(20, 20)
	out := MotionBlur(img, 0, 90)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if out.NRGBAAt(x, y) != img.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) changed with sigma 0", x, y)
			}
		}
	}
}

func TestMotionBlur_UniformImageUnchanged(t *testing.T) {
	img := createInMemoryImage(24, 24, color.RGBA{200, 100, 50, 255})
	out := MotionBlur(img, 3, -90)

	if out.Bounds().Dx() != 24 || out.Bounds().Dy() != 24 {
		t.Fatalf("size changed: %v", out.Bounds())
	}
	c := out.NRGBAAt(12, 12)
	if absDiff(c.R, 200) > 1 || absDiff(c.G, 100) > 1 || absDiff(c.B, 50) > 1 || c.A != 255 {
		t.Errorf("centre pixel: got %v, want ~(200,100,50,255)", c)
	}
}

func TestMotionBlur_Directional(t *testing.T) {
	// A single white row on black: a horizontal blur keeps it inside its row, a
	// vertical blur spreads it into neighbouring rows.
	img := image.NewNRGBA(image.Rect(0, 0, 30, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			c := color.NRGBA{0, 0, 0, 255}
			if y == 15 {
				c = color.NRGBA{255, 255, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	horizontal := MotionBlur(img, 2, 0)
	if c := horizontal.NRGBAAt(15, 13); c.R > 1 {
		t.Errorf("horizontal blur leaked vertically: %v", c)
	}

	vertical := MotionBlur(img, 2, 90)
	spread := false
	for y := 10; y < 20; y++ {
		if y != 15 && vertical.NRGBAAt(15, y).R > 0 {
			spread = true
		}
	}
	if !spread {
		t.Error("vertical blur did not spread the row")
	}
	if c := vertical.NRGBAAt(15, 15); c.R == 255 {
		t.Error("vertical blur left the row at full intensity")
	}
}

func TestMotionKernel_OneSided(t *testing.T) {
	k := motionKernel(2, 0)
	size := k.Width
	if size != 9 || k.Height != 9 {
		t.Fatalf("kernel size: got %dx%d, want 9x9", k.Width, k.Height)
	}

	centre := size / 2
	for x := 0; x < size; x++ {
		v := k.Matrix[centre*size+x]
		if x < centre && v != 0 {
			t.Errorf("weight left of centre at x=%d: %v", x, v)
		}
		if x >= centre && v <= 0 {
			t.Errorf("missing weight at x=%d", x)
		}
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
