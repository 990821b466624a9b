package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/composite-gen/internal/imaging"
)

// ErrEmptyMask is returned when background removal leaves no visible pixels.
var ErrEmptyMask = errors.New("background removal left an empty mask")

// Remover cuts the object out of a raw photograph.
type Remover interface {
	Remove(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error)
}

// Defaults for KeyRemover.
const (
	DefaultTolerance = 0.12
	DefaultFeather   = 0.06
	DefaultBand      = 4
)

// KeyRemover makes the estimated backdrop colour transparent.
type KeyRemover struct {
	// Tolerance is the CIE Lab distance (go-colorful scale, where 1.0 is roughly
	// black to white) under which a pixel counts as backdrop.
	Tolerance float64
	// Feather is the width of the distance band above Tolerance over which alpha
	// ramps from 0 back to the pixel's own alpha.
	Feather float64
	// Band is the border strip width sampled for the backdrop colour.
	Band int
}

// NewKeyRemover returns a KeyRemover with the default parameters.
func NewKeyRemover() *KeyRemover {
	return &KeyRemover{Tolerance: DefaultTolerance, Feather: DefaultFeather, Band: DefaultBand}
}

// Remove returns a trimmed copy of img with its backdrop keyed out.
func (k *KeyRemover) Remove(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error) {
	backdrop := imaging.BorderColor(img, k.Band)
	out := imaging.Clone(img)

	w, h := out.Rect.Dx(), out.Rect.Dy()
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+4 : x*4+4]
			if p[3] == 0 {
				continue
			}
			c := colorful.Color{R: float64(p[0]) / 255, G: float64(p[1]) / 255, B: float64(p[2]) / 255}
			p[3] = uint8(float64(p[3]) * k.keep(c.DistanceLab(backdrop)))
		}
	}

	return trim(out)
}

// keep returns the alpha factor for a pixel at Lab distance d from the backdrop.
func (k *KeyRemover) keep(d float64) float64 {
	switch {
	case d < k.Tolerance:
		return 0
	case k.Feather <= 0 || d >= k.Tolerance+k.Feather:
		return 1
	default:
		return (d - k.Tolerance) / k.Feather
	}
}

// CommandRemover runs an external segmentation program. The program receives the raw
// photo as PNG on stdin and must write an RGBA PNG with a transparent backdrop to
// stdout. A non-zero exit status is an error that includes the program's stderr.
type CommandRemover struct {
	Path string
	Args []string
}

// ParseCommand splits a command line on whitespace into a CommandRemover.
func ParseCommand(line string) (*CommandRemover, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty background removal command")
	}
	return &CommandRemover{Path: fields[0], Args: fields[1:]}, nil
}

// FromCommand returns a CommandRemover for line, or the built-in KeyRemover when line
// is blank.
func FromCommand(line string) (Remover, error) {
	if strings.TrimSpace(line) == "" {
		return NewKeyRemover(), nil
	}
	return ParseCommand(line)
}

// Remove pipes img through the external program and trims the result.
func (c *CommandRemover) Remove(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error) {
	in, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(in)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("background removal command failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("background removal command failed: %w", err)
	}

	out, err := imaging.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode background removal output: %w", err)
	}
	return trim(out)
}

func trim(img *image.NRGBA) (*image.NRGBA, error) {
	out, err := imaging.Trim(img)
	if errors.Is(err, imaging.ErrDegenerateRegion) {
		return nil, ErrEmptyMask
	}
	return out, err
}
