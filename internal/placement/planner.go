// Package placement decides which objects go into a scene and where.
//
// Placement is greedy and single-pass. Each candidate gets one random position; a
// candidate that does not fit the placement area or that overlaps an accepted box is
// dropped, never retried.
package placement

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"

	"github.com/ironsheep/composite-gen/internal/assets"
	"github.com/ironsheep/composite-gen/internal/imaging"
	"github.com/ironsheep/composite-gen/internal/scene"
)

// ErrTooLarge is reported for a sprite whose extent exceeds the placement area. It is
// absorbed by Plan: the candidate is dropped and planning continues.
var ErrTooLarge = errors.New("sprite larger than placement area")

// MaxBlurAmount is the exclusive upper bound of the per-scene motion blur sigma.
const MaxBlurAmount = 8

// RandomDirection selects a blur direction of -90 or +90 degrees per scene.
const RandomDirection = -1

// Options configures a Planner.
type Options struct {
	// MaxObjects is k: each scene holds a uniform count in [0, k) of candidates.
	MaxObjects   int
	AllowOverlap bool
	AllowRotate  bool
}

// SceneOptions configures the per-scene parameters drawn by DrawParams.
type SceneOptions struct {
	MotionBlur bool
	// BlurDirection is a fixed angle in degrees, or RandomDirection.
	BlurDirection int
	Fisheye       scene.FisheyeMode
	Strength      float64
	Crop          bool
}

// DrawParams draws the values shared by all transforms of one scene.
func DrawParams(rng *rand.Rand, o SceneOptions) scene.Params {
	p := scene.Params{
		Fisheye:  o.Fisheye,
		Strength: o.Strength,
		Crop:     o.Crop,
	}
	if p.Fisheye == "" {
		p.Fisheye = scene.FisheyeNone
	}
	if o.MotionBlur {
		p.BlurAmount = rng.IntN(MaxBlurAmount)
		p.BlurAngle = float64(o.BlurDirection)
		if o.BlurDirection == RandomDirection {
			p.BlurAngle = []float64{-90, 90}[rng.IntN(2)]
		}
	}
	return p
}

// Placement is one accepted candidate: its box in scene coordinates and the
// transformed working copy of its sprite.
type Placement struct {
	Box   scene.PlacedObject
	Image *image.NRGBA
}

// Planner places sprites drawn from a fixed pool. It holds no per-scene state and is
// safe for concurrent use with distinct random sources.
type Planner struct {
	objects []assets.Sprite
	opts    Options
	log     *slog.Logger
}

// NewPlanner returns a planner drawing from objects.
func NewPlanner(objects []assets.Sprite, opts Options, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{objects: objects, opts: opts, log: log}
}

// Plan produces the accepted placements of one scene.
//
// Parameters:
//   - rng: The scene's random source.
//   - area: The resolved placement rectangle.
//   - params: Per-scene values; BlurAmount and BlurAngle are applied to every sprite.
//
// # Algorithm
//
//  1. Draw the candidate count n uniformly from [0, MaxObjects).
//  2. For each candidate, pick a sprite with replacement and clone it.
//  3. Rotate the clone by a uniform angle in [0, 360) when rotation is allowed and
//     measure its extent afterwards. Apply the scene motion blur.
//  4. Drop the candidate if its extent exceeds the area in either dimension.
//  5. Draw x in [left, left+areaWidth-w] and y in [top, top+areaHeight-h].
//  6. When overlap is disallowed, drop the candidate if it intersects any accepted box.
//
// Accepted placements keep draw order. The result may be empty.
func (p *Planner) Plan(rng *rand.Rand, area scene.Rect, params scene.Params) []Placement {
	if len(p.objects) == 0 || p.opts.MaxObjects <= 0 {
		return nil
	}

	return p.place(rng, area, params, rng.IntN(p.opts.MaxObjects))
}

// place runs steps 2 to 6 of Plan for exactly n candidates.
func (p *Planner) place(rng *rand.Rand, area scene.Rect, params scene.Params, n int) []Placement {
	accepted := make([]Placement, 0, n)

	for i := 0; i < n; i++ {
		sprite := p.objects[rng.IntN(len(p.objects))]
		img := imaging.Clone(sprite.Image)
		if p.opts.AllowRotate {
			img = imaging.Rotate(img, rng.Float64()*360)
		}
		if params.BlurAmount > 0 {
			img = imaging.MotionBlur(img, params.BlurAmount, params.BlurAngle)
		}

		box, err := position(rng, area, img.Rect.Dx(), img.Rect.Dy())
		if err != nil {
			p.log.Debug("dropping candidate", "candidate", i, "sprite", sprite.Name, "error", err)
			continue
		}
		box.Label = sprite.Label

		if !p.opts.AllowOverlap && overlapsAny(box, accepted) {
			p.log.Debug("dropping overlapping candidate", "candidate", i, "box", box.String())
			continue
		}
		accepted = append(accepted, Placement{Box: box, Image: img})
	}
	return accepted
}

// position draws a uniformly random anchor for a w x h sprite inside area.
func position(rng *rand.Rand, area scene.Rect, w, h int) (scene.PlacedObject, error) {
	if w <= 0 || h <= 0 {
		return scene.PlacedObject{}, fmt.Errorf("sprite has no extent (%dx%d)", w, h)
	}
	if w > area.Width || h > area.Height {
		return scene.PlacedObject{}, fmt.Errorf("%w: %dx%d in %dx%d", ErrTooLarge, w, h, area.Width, area.Height)
	}
	return scene.PlacedObject{
		X:      area.Left + rng.IntN(area.Width-w+1),
		Y:      area.Top + rng.IntN(area.Height-h+1),
		Width:  w,
		Height: h,
	}, nil
}

func overlapsAny(box scene.PlacedObject, accepted []Placement) bool {
	for _, a := range accepted {
		if box.Overlaps(a.Box) {
			return true
		}
	}
	return false
}
