package imaging

import (
	"image/color"
	"testing"

	"github.com/ironsheep/composite-gen/internal/scene"
)

func TestAnnotate(t *testing.T) {
	bg := solidNRGBA(50, 50, color.NRGBA{0, 0, 0, 255})
	red := color.NRGBA{255, 0, 0, 255}
	boxes := []scene.PlacedObject{
		{Label: "cup", X: 5, Y: 5, Width: 20, Height: 20},
		{Label: "fork", X: 40, Y: 40, Width: 30, Height: 30}, // partly outside
	}

	out := Annotate(bg, boxes, red)

	if c := out.NRGBAAt(5, 5); c != red {
		t.Errorf("box corner: got %v, want outline colour", c)
	}
	if c := out.NRGBAAt(24, 15); c != red {
		t.Errorf("right edge: got %v, want outline colour", c)
	}
	if c := out.NRGBAAt(15, 20); c != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("box interior: got %v, want untouched", c)
	}
	if c := out.NRGBAAt(49, 45); c != red {
		t.Errorf("clipped box edge: got %v, want outline colour", c)
	}
	if c := bg.NRGBAAt(5, 5); c == red {
		t.Error("Annotate modified its input")
	}
}

func TestAnnotate_NoBoxes(t *testing.T) {
	bg := createPatternImage(10, 10)
	out := Annotate(bg, nil, color.NRGBA{255, 0, 0, 255})
	if out.NRGBAAt(9, 9) != bg.NRGBAAt(9, 9) {
		t.Error("Annotate without boxes changed pixels")
	}
}
