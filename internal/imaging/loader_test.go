package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/bmp"
)

// createTestImage writes a solid-colour PNG into dir and returns its path.
func createTestImage(t *testing.T, dir, name string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.png", true},
		{"a.PNG", true},
		{"a.bmp", true},
		{"a.jpg", true},
		{"a.jpeg", true},
		{"a.gif", false},
		{"a.txt", false},
		{"png", false},
	}

	for _, tt := range tests {
		if got := IsSupported(tt.name); got != tt.want {
			t.Errorf("IsSupported(%q): got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestImageCache_Load(t *testing.T) {
	path := createTestImage(t, t.TempDir(), "cup_1.png", 30, 20, color.RGBA{255, 0, 0, 255})
	cache := NewImageCache()

	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", img.Bounds().Dx(), img.Bounds().Dy())
	}
	if c := img.NRGBAAt(0, 0); c != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("pixel: got %v, want red", c)
	}

	again, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again != img {
		t.Error("second Load should return the cached raster")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestImageCache_EvictAndClear(t *testing.T) {
	dir := t.TempDir()
	p1 := createTestImage(t, dir, "a.png", 4, 4, color.White)
	p2 := createTestImage(t, dir, "b.png", 4, 4, color.Black)
	cache := NewImageCache()

	for _, p := range []string{p1, p2} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s) failed: %v", p, err)
		}
	}

	cache.Evict(p1)
	if cache.Len() != 1 {
		t.Errorf("Len after Evict: got %d, want 1", cache.Len())
	}
	cache.Evict("/not/cached")

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", cache.Len())
	}
}

func TestImageCache_Errors(t *testing.T) {
	dir := t.TempDir()
	cache := NewImageCache()

	if _, err := cache.Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Load should fail for a missing file")
	}

	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(bad); err == nil {
		t.Error("Load should fail for an undecodable file")
	}
	if cache.Len() != 0 {
		t.Errorf("failed loads must not be cached, Len = %d", cache.Len())
	}
}

func TestImageCache_Concurrent(t *testing.T) {
	path := createTestImage(t, t.TempDir(), "a.png", 8, 8, color.White)
	cache := NewImageCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestLoadFile_BMP(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 6, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 6; x++ {
			src.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, src); err != nil {
		t.Fatalf("bmp.Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bg.bmp")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 3 {
		t.Errorf("dimensions: got %v, want 6x3", img.Bounds())
	}
	if c := img.NRGBAAt(2, 1); c != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("pixel: got %v, want blue", c)
	}
}

func TestEncodePNG(t *testing.T) {
	img := createPatternImage(16, 16)
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	decoded, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.NRGBAAt(15, 15) != img.NRGBAAt(15, 15) {
		t.Error("decoded pixel does not match source")
	}
}
