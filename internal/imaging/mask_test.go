package imaging

import (
	"image"
	"image/color"
	"testing"
)

func maskFromRows(rows ...string) *Mask {
	m := NewMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, ch := range row {
			if ch == '#' {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

func TestLargestRectangle(t *testing.T) {
	tests := []struct {
		name string
		mask *Mask
		want image.Rectangle
	}{
		{
			"all set",
			maskFromRows("#####", "#####", "#####"),
			image.Rect(0, 0, 5, 3),
		},
		{
			"none set",
			maskFromRows("....", "...."),
			image.Rectangle{},
		},
		{
			"single pixel",
			maskFromRows("...", ".#.", "..."),
			image.Rect(1, 1, 2, 2),
		},
		{
			// Ties keep the first rectangle completed scanning top-down.
			"hole splits the mask",
			maskFromRows(
				"######",
				"######",
				"###.##",
				"######",
			),
			image.Rect(0, 0, 6, 2),
		},
		{
			"barrel shape",
			maskFromRows(
				"..####..",
				".######.",
				"########",
				"########",
				".######.",
				"..####..",
			),
			image.Rect(1, 1, 7, 5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LargestRectangle(tt.mask); got != tt.want {
				t.Errorf("LargestRectangle: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMask_Bounds(t *testing.T) {
	m := maskFromRows(
		"......",
		"..#...",
		"....#.",
		"......",
	)
	if got := m.Bounds(); got != image.Rect(2, 1, 5, 3) {
		t.Errorf("Bounds: got %v, want (2,1)-(5,3)", got)
	}
	if got := NewMask(3, 3).Bounds(); !got.Empty() {
		t.Errorf("Bounds of empty mask: got %v", got)
	}
}

func TestMask_AtOutOfRange(t *testing.T) {
	m := maskFromRows("##", "##")
	if m.At(-1, 0) || m.At(0, 2) || m.At(2, 0) {
		t.Error("out-of-range At should be false")
	}
}

func TestAlphaMask(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 2, color.NRGBA{0, 0, 0, 10})
	img.SetNRGBA(3, 3, color.NRGBA{0, 0, 0, 200})

	m := AlphaMask(img, 50)
	if m.At(1, 2) {
		t.Error("alpha below threshold should not be set")
	}
	if !m.At(3, 3) {
		t.Error("alpha above threshold should be set")
	}
}
