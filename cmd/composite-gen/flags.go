package main

import (
	"github.com/spf13/pflag"

	"github.com/ironsheep/composite-gen/internal/config"
	"github.com/ironsheep/composite-gen/internal/scene"
)

// bindFlags registers the generation flags on fs, writing straight into cfg. The
// current cfg values become the flag defaults.
func bindFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.CompositeDir, "composite-dir", cfg.CompositeDir, "directory containing background/ and object/ subdirectories")
	fs.StringVar(&cfg.Labels, "labels", cfg.Labels, `"all" or a comma-separated list of object labels to use`)
	fs.IntVar(&cfg.Images, "images", cfg.Images, "number of images to generate")
	fs.IntVar(&cfg.Objects, "objects", cfg.Objects, "each image holds a random number of candidate objects in [0, objects)")

	fs.BoolVar(&cfg.AllowOverlap, "allow-overlap", cfg.AllowOverlap, "keep objects that overlap earlier ones")
	fs.BoolVar(&cfg.AllowRotate, "allow-rotate", cfg.AllowRotate, "rotate each object by a random angle")
	fs.BoolVar(&cfg.AllowMotionBlur, "allow-motion-blur", cfg.AllowMotionBlur, "apply a random motion blur to each scene")
	fs.IntVar(&cfg.MotionBlurDirection, "motion-blur-direction", cfg.MotionBlurDirection, "motion blur direction in degrees, -1 for random up or down")
	fs.StringVar(&cfg.ObjectArea, "object-area", cfg.ObjectArea, `placement area "x1,y1,x2,y2", or -1 for the whole image`)

	fs.Var((*fisheyeModeValue)(&cfg.Fisheye.Mode), "fisheye-mode", "layers to lens-distort: none, background, objects or both")
	fs.Float64Var(&cfg.Fisheye.Strength, "fisheye-strength", cfg.Fisheye.Strength, "lens distortion strength (>= 0)")
	fs.BoolVar(&cfg.Fisheye.Crop, "fisheye-crop", cfg.Fisheye.Crop, "crop distorted images to their largest valid rectangle")
	fs.BoolVar(&cfg.ObjectLayer, "object-layer", cfg.ObjectLayer, "composite objects on a separate layer even without distortion")
	fs.IntVar(&cfg.EdgeSamples, "edge-samples", cfg.EdgeSamples, "extra points sampled along each box edge when tracking distorted boxes")

	fs.StringVar(&cfg.RawObjectDir, "raw-object-dir", cfg.RawObjectDir, "directory of raw object photos to cut out and add to the objects")
	fs.StringVar(&cfg.BgRemovalCommand, "bg-removal-command", cfg.BgRemovalCommand, "command reading a PNG on stdin and writing the cut-out PNG on stdout (default built-in colour key)")

	fs.StringVar(&cfg.OutDirectory, "out-directory", cfg.OutDirectory, "output directory")
	fs.BoolVar(&cfg.CleanOutput, "clean-output", cfg.CleanOutput, "remove the output directory contents first")
	fs.BoolVar(&cfg.FlushPartialManifest, "flush-partial-manifest", cfg.FlushPartialManifest, "write the manifest of completed images when a run aborts")
	fs.BoolVar(&cfg.Annotate, "annotate", cfg.Annotate, "also write copies with the boxes drawn to the annotated/ subdirectory")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "images built concurrently")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed, 0 to derive it from the start time")

	fs.StringVar(&cfg.UploadCategory, "upload-category", cfg.UploadCategory, "split, training or testing")
	fs.StringVar(&cfg.SyntheticDataJobID, "synthetic-data-job-id", cfg.SyntheticDataJobID, "job id sent with every upload")
	fs.BoolVar(&cfg.SkipUpload, "skip-upload", cfg.SkipUpload, "generate locally without uploading")
	fs.DurationVar(&cfg.UploadTimeout, "upload-timeout", cfg.UploadTimeout, "deadline for each upload request")
	fs.Float64Var(&cfg.UploadRate, "upload-rate", cfg.UploadRate, "maximum uploads per second, 0 for unlimited")
}

// fisheyeModeValue adapts scene.FisheyeMode to pflag.Value.
type fisheyeModeValue scene.FisheyeMode

func (v *fisheyeModeValue) String() string { return string(*v) }

func (v *fisheyeModeValue) Set(s string) error {
	m, err := config.ParseFisheyeMode(s)
	if err != nil {
		return err
	}
	*v = fisheyeModeValue(m)
	return nil
}

func (v *fisheyeModeValue) Type() string { return "mode" }
