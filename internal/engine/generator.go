// Package engine runs a composite generation job: it builds each scene, persists and
// uploads it, and records its boxes in the run manifest.
//
// # Failure Policy
//
//   - A candidate that does not fit or overlaps is dropped inside the planner.
//   - A scene whose distortion leaves no valid region (imaging.ErrDegenerateRegion)
//     is skipped with a warning naming the image and its parameters.
//   - A degenerate bounding box (bbox.ErrDegenerateBox), a write failure or an upload
//     failure aborts the run. The manifest is then only written when
//     FlushPartialManifest is set.
//
// # Concurrency
//
// Scenes are independent. With Workers > 1 they are built concurrently; each scene
// owns its random source, seeded from the run seed and its index, so a run's output
// does not depend on scheduling. The asset store is read-only during generation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/composite-gen/internal/assets"
	"github.com/ironsheep/composite-gen/internal/bbox"
	"github.com/ironsheep/composite-gen/internal/config"
	"github.com/ironsheep/composite-gen/internal/imaging"
	"github.com/ironsheep/composite-gen/internal/ingest"
	"github.com/ironsheep/composite-gen/internal/manifest"
	"github.com/ironsheep/composite-gen/internal/placement"
	"github.com/ironsheep/composite-gen/internal/scene"
)

// AnnotatedDir is the output subdirectory for annotated review copies.
const AnnotatedDir = "annotated"

var annotateColor = color.NRGBA{0, 255, 0, 255}

// Uploader sends one generated image to the ingestion service.
type Uploader interface {
	Upload(ctx context.Context, u ingest.Upload) error
}

// Options wires a Generator.
type Options struct {
	Config *config.Config
	Store  *assets.Store
	// Uploader is built from Config when nil and uploads are enabled.
	Uploader Uploader
	Logger   *slog.Logger
	// Now defaults to time.Now. The run epoch in output names comes from it.
	Now func() time.Time
}

// Generator produces the scenes of one run.
type Generator struct {
	cfg      *config.Config
	store    *assets.Store
	planner  *placement.Planner
	tracker  *bbox.Tracker
	uploader Uploader
	area     scene.PlacementArea
	sceneOpt placement.SceneOptions
	log      *slog.Logger
	now      func() time.Time
}

// Result summarises a run.
type Result struct {
	Epoch     int64
	Seed      uint64
	Generated int
	Skipped   int
	Manifest  *manifest.Manifest
	// ManifestPath is empty when no manifest was written.
	ManifestPath string
}

// New validates the configuration and returns a generator.
func New(opts Options) (*Generator, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Store == nil || len(opts.Store.Backgrounds) == 0 {
		return nil, fmt.Errorf("%w: no background images loaded", config.ErrInvalidConfig)
	}
	if cfg.Images > 0 && len(opts.Store.Objects) == 0 {
		return nil, fmt.Errorf("%w: no object images loaded", config.ErrInvalidConfig)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	uploader := opts.Uploader
	if uploader == nil && !cfg.SkipUpload {
		c, err := ingest.New(ingest.Options{
			Host:     cfg.IngestionHost,
			APIKey:   cfg.APIKey,
			Category: cfg.UploadCategory,
			Timeout:  cfg.UploadTimeout,
			Rate:     cfg.UploadRate,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		uploader = c
	}
	if cfg.SkipUpload {
		uploader = nil
	}

	return &Generator{
		cfg:   cfg,
		store: opts.Store,
		planner: placement.NewPlanner(opts.Store.Objects, placement.Options{
			MaxObjects:   cfg.Objects,
			AllowOverlap: cfg.AllowOverlap,
			AllowRotate:  cfg.AllowRotate,
		}, log),
		tracker:  bbox.NewTracker(cfg.EdgeSamples),
		uploader: uploader,
		area:     cfg.Area(),
		sceneOpt: placement.SceneOptions{
			MotionBlur:    cfg.AllowMotionBlur,
			BlurDirection: cfg.MotionBlurDirection,
			Fisheye:       cfg.Fisheye.Mode,
			Strength:      cfg.Fisheye.Strength,
			Crop:          cfg.Fisheye.Crop,
		},
		log: log,
		now: now,
	}, nil
}

// Run generates cfg.Images scenes. The manifest is written to the output directory
// after the last image, or on abort when FlushPartialManifest is set. The returned
// Result is valid on error and describes the work done before the failure.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	if err := g.prepareOutput(); err != nil {
		return nil, err
	}

	epoch := g.now().Unix()
	seed := g.cfg.Seed
	if seed == 0 {
		seed = uint64(epoch)
	}
	res := &Result{Epoch: epoch, Seed: seed, Manifest: manifest.New()}

	g.log.Info("starting generation",
		"images", g.cfg.Images,
		"objects", g.cfg.Objects,
		"allow_overlap", g.cfg.AllowOverlap,
		"object_area", g.area.String(),
		"fisheye", string(g.cfg.Fisheye.Mode),
		"workers", g.cfg.Workers,
		"seed", seed)

	var generated, skipped atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)

	for i := 0; i < g.cfg.Images; i++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			sc, err := g.BuildScene(i, epoch, newSceneRand(seed, i))
			if errors.Is(err, imaging.ErrDegenerateRegion) {
				skipped.Add(1)
				g.log.Warn("skipping image", "index", i, "error", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}

			if err := g.emit(egCtx, sc, res.Manifest); err != nil {
				return err
			}
			n := generated.Add(1)
			g.log.Info("created image",
				"n", n,
				"of", g.cfg.Images,
				"filename", sc.Filename,
				"objects", len(sc.Objects),
				"dropped", sc.Dropped)
			return nil
		})
	}

	runErr := eg.Wait()
	res.Generated = int(generated.Load())
	res.Skipped = int(skipped.Load())

	if runErr != nil && !g.cfg.FlushPartialManifest {
		return res, runErr
	}

	path := filepath.Join(g.cfg.OutDirectory, manifest.FileName)
	if err := res.Manifest.WriteFile(path); err != nil {
		return res, errors.Join(runErr, err)
	}
	res.ManifestPath = path
	if runErr != nil {
		g.log.Warn("wrote partial manifest", "path", path, "images", res.Manifest.Len())
		return res, runErr
	}

	g.log.Info("generation complete",
		"generated", res.Generated,
		"skipped", res.Skipped,
		"manifest", path)
	return res, nil
}

// emit saves the scene, uploads it and records it in m. The manifest entry is only
// added once the image is both on disk and accepted by the service.
func (g *Generator) emit(ctx context.Context, sc *scene.Scene, m *manifest.Manifest) error {
	data, err := imaging.EncodePNG(sc.Image)
	if err != nil {
		return fmt.Errorf("image %d: %w", sc.Index, err)
	}
	if err := os.WriteFile(filepath.Join(g.cfg.OutDirectory, sc.Filename), data, 0o644); err != nil {
		return fmt.Errorf("failed to save %s: %w", sc.Filename, err)
	}

	if g.cfg.Annotate {
		if err := g.writeAnnotated(sc); err != nil {
			return err
		}
	}

	if g.uploader != nil {
		err := g.uploader.Upload(ctx, ingest.Upload{
			Filename: sc.Filename,
			PNG:      data,
			Metadata: g.cfg.Metadata(),
			JobID:    g.cfg.SyntheticDataJobID,
			Boxes:    sc.Objects,
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", sc.Filename, err)
		}
	}

	m.Add(sc.Filename, sc.Objects)
	return nil
}

func (g *Generator) writeAnnotated(sc *scene.Scene) error {
	data, err := imaging.EncodePNG(imaging.Annotate(sc.Image, sc.Objects, annotateColor))
	if err != nil {
		return fmt.Errorf("image %d: %w", sc.Index, err)
	}
	path := filepath.Join(g.cfg.OutDirectory, AnnotatedDir, sc.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save annotated %s: %w", sc.Filename, err)
	}
	return nil
}

// prepareOutput creates the output directory, emptying it first when CleanOutput is
// set.
func (g *Generator) prepareOutput() error {
	dir := g.cfg.OutDirectory
	if g.cfg.CleanOutput {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clean output directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if g.cfg.Annotate {
		if err := os.MkdirAll(filepath.Join(dir, AnnotatedDir), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return nil
}

// Filename returns the output name of image index in the run started at epoch.
func Filename(epoch int64, index int) string {
	return fmt.Sprintf("composite.%d.%d.png", epoch, index)
}

func newSceneRand(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(index)))
}

// BuildScene composes image index.
//
// # Pipeline
//
//  1. Pick a background and clone it. Resolve the placement area against its size.
//  2. Draw the scene parameters and blur the background with them.
//  3. Plan placements.
//  4. Composite the sprites directly onto the background, or onto a transparent
//     object layer when ObjectLayer is set or the objects are distorted.
//  5. Apply the fisheye to the configured layers with one shared Distortion and
//     re-derive the boxes when the object layer was distorted.
//  6. Composite the object layer onto the background.
func (g *Generator) BuildScene(index int, epoch int64, rng *rand.Rand) (*scene.Scene, error) {
	bg := g.store.Backgrounds[rng.IntN(len(g.store.Backgrounds))]
	base := imaging.Clone(bg.Image)
	w, h := base.Rect.Dx(), base.Rect.Dy()
	area := g.area.Resolve(w, h)

	params := placement.DrawParams(rng, g.sceneOpt)
	if params.BlurAmount > 0 {
		base = imaging.MotionBlur(base, params.BlurAmount, params.BlurAngle)
	}

	placed := g.planner.Plan(rng, area, params)
	boxes := make([]scene.PlacedObject, len(placed))
	for i, p := range placed {
		boxes[i] = p.Box
	}

	useLayer := g.cfg.ObjectLayer || params.Fisheye.DistortsObjects()
	var layer *image.NRGBA
	if useLayer {
		layer = imaging.NewLayer(w, h)
	}
	for _, p := range placed {
		if useLayer {
			layer = imaging.Composite(layer, p.Image, p.Box.X, p.Box.Y)
		} else {
			base = imaging.Composite(base, p.Image, p.Box.X, p.Box.Y)
		}
	}

	dropped := 0
	if params.Fisheye != scene.FisheyeNone {
		d, err := NewDistortion(w, h, params.Strength, params.Crop)
		if err != nil {
			return nil, fmt.Errorf("background %s, fisheye %s strength %v: %w", bg.Name, params.Fisheye, params.Strength, err)
		}
		if params.Fisheye.DistortsBackground() {
			if base, err = d.Apply(base); err != nil {
				return nil, fmt.Errorf("background %s: %w", bg.Name, err)
			}
		}
		if params.Fisheye.DistortsObjects() {
			if layer, err = d.Apply(layer); err != nil {
				return nil, fmt.Errorf("object layer: %w", err)
			}
			if boxes, dropped, err = g.tracker.Apply(boxes, d.Transform()); err != nil {
				return nil, fmt.Errorf("background %s, strength %v, crop %v: %w", bg.Name, params.Strength, d.Crop, err)
			}
		}
	}

	if useLayer {
		base = imaging.Composite(base, layer, 0, 0)
	}

	return &scene.Scene{
		Index:    index,
		Filename: Filename(epoch, index),
		Image:    base,
		Objects:  boxes,
		Params:   params,
		Dropped:  dropped,
	}, nil
}
