// Package config holds the settings of a generation run.
//
// Settings come from three layers, later ones winning: Default, an optional YAML
// file (LoadFile), and explicitly set command-line flags. Credentials are read from
// the environment only (ApplyEnv).
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/composite-gen/internal/ingest"
	"github.com/ironsheep/composite-gen/internal/scene"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables.
const (
	EnvAPIKey        = "EI_PROJECT_API_KEY"
	EnvIngestionHost = "EI_INGESTION_HOST"
	EnvLogLevel      = "COMPOSITE_LOG_LEVEL"
)

// Defaults.
const (
	DefaultImages          = 10
	DefaultObjects         = 5
	DefaultOutDirectory    = "output"
	DefaultUploadCategory  = "split"
	DefaultFisheyeStrength = 0.3
	DefaultWorkers         = 1
)

// WholeImageArea is the object area value that disables the placement restriction.
const WholeImageArea = "-1"

// Fisheye configures the scene-level lens distortion.
type Fisheye struct {
	Mode     scene.FisheyeMode `yaml:"mode"`
	Strength float64           `yaml:"strength"`
	Crop     bool              `yaml:"crop"`
}

// Config is the complete run configuration.
type Config struct {
	CompositeDir string `yaml:"composite_dir"`
	// Labels is "all" or a comma-separated label list.
	Labels  string `yaml:"labels"`
	Images  int    `yaml:"images"`
	Objects int    `yaml:"objects"`

	AllowOverlap        bool `yaml:"allow_overlap"`
	AllowRotate         bool `yaml:"allow_rotate"`
	AllowMotionBlur     bool `yaml:"allow_motion_blur"`
	MotionBlurDirection int  `yaml:"motion_blur_direction"`
	// ObjectArea is "x1,y1,x2,y2" or WholeImageArea.
	ObjectArea string `yaml:"object_area"`

	Fisheye     Fisheye `yaml:"fisheye"`
	ObjectLayer bool    `yaml:"object_layer"`
	EdgeSamples int     `yaml:"edge_samples"`

	RawObjectDir     string `yaml:"raw_object_dir"`
	BgRemovalCommand string `yaml:"bg_removal_command"`

	OutDirectory         string `yaml:"out_directory"`
	CleanOutput          bool   `yaml:"clean_output"`
	FlushPartialManifest bool   `yaml:"flush_partial_manifest"`
	Annotate             bool   `yaml:"annotate"`
	Workers              int    `yaml:"workers"`
	// Seed makes a run reproducible. 0 derives the seed from the run epoch.
	Seed uint64 `yaml:"seed"`

	UploadCategory     string        `yaml:"upload_category"`
	SyntheticDataJobID string        `yaml:"synthetic_data_job_id"`
	SkipUpload         bool          `yaml:"skip_upload"`
	UploadTimeout      time.Duration `yaml:"upload_timeout"`
	UploadRate         float64       `yaml:"upload_rate"`
	IngestionHost      string        `yaml:"ingestion_host"`

	APIKey string `yaml:"-"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Labels:              "all",
		Images:              DefaultImages,
		Objects:             DefaultObjects,
		MotionBlurDirection: -1,
		ObjectArea:          WholeImageArea,
		Fisheye: Fisheye{
			Mode:     scene.FisheyeNone,
			Strength: DefaultFisheyeStrength,
			Crop:     true,
		},
		OutDirectory:   DefaultOutDirectory,
		Workers:        DefaultWorkers,
		UploadCategory: DefaultUploadCategory,
		UploadTimeout:  ingest.DefaultTimeout,
		IngestionHost:  ingest.DefaultHost,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// ApplyEnv fills credentials and the ingestion host from the environment. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok {
		c.APIKey = v
	}
	if v, ok := lookup(EnvIngestionHost); ok && v != "" {
		c.IngestionHost = v
	}
}

// Validate checks every setting before any work starts.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.CompositeDir == "" {
		add("composite directory is required")
	}
	if c.Images < 0 {
		add("images must be >= 0 (was %d)", c.Images)
	}
	if c.Objects < 0 {
		add("objects must be >= 0 (was %d)", c.Objects)
	}
	if _, err := parseObjectArea(c.ObjectArea); err != nil {
		add("%v", err)
	}
	if _, err := parseFisheyeMode(string(c.Fisheye.Mode)); err != nil {
		add("%v", err)
	}
	if c.Fisheye.Strength < 0 || math.IsNaN(c.Fisheye.Strength) || math.IsInf(c.Fisheye.Strength, 0) {
		add("fisheye strength must be a finite value >= 0 (was %v)", c.Fisheye.Strength)
	}
	if c.EdgeSamples < 0 {
		add("edge samples must be >= 0 (was %d)", c.EdgeSamples)
	}
	if c.Workers < 1 {
		add("workers must be >= 1 (was %d)", c.Workers)
	}
	if c.OutDirectory == "" {
		add("output directory is required")
	}
	if !ingest.ValidCategory(c.UploadCategory) {
		add(`invalid value for "upload-category", should be "split", "training" or "testing" (was: %q)`, c.UploadCategory)
	}
	if c.UploadRate < 0 {
		add("upload rate must be >= 0 (was %v)", c.UploadRate)
	}
	if c.UploadTimeout < 0 {
		add("upload timeout must be >= 0 (was %v)", c.UploadTimeout)
	}
	if !c.SkipUpload && c.APIKey == "" {
		add("%s is not set (use --skip-upload to generate locally)", EnvAPIKey)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Area returns the parsed placement area. Call after Validate.
func (c *Config) Area() scene.PlacementArea {
	a, err := parseObjectArea(c.ObjectArea)
	if err != nil {
		return scene.WholeImage
	}
	return a
}

// Metadata returns the run parameters sent with every upload.
func (c *Config) Metadata() map[string]string {
	return map[string]string{
		"generated_by":          "composite-image-generator",
		"allow_overlap":         boolFlag(c.AllowOverlap),
		"allow_rotate":          boolFlag(c.AllowRotate),
		"allow_motion_blur":     boolFlag(c.AllowMotionBlur),
		"motion_blur_direction": strconv.Itoa(c.MotionBlurDirection),
		"object_area":           c.ObjectArea,
		"fisheye_mode":          string(c.Fisheye.Mode),
		"fisheye_strength":      strconv.FormatFloat(c.Fisheye.Strength, 'g', -1, 64),
		"fisheye_crop":          boolFlag(c.Fisheye.Crop),
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ParseObjectArea parses "x1,y1,x2,y2" or WholeImageArea.
func ParseObjectArea(s string) (scene.PlacementArea, error) {
	a, err := parseObjectArea(s)
	if err != nil {
		return scene.PlacementArea{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return a, nil
}

func parseObjectArea(s string) (scene.PlacementArea, error) {
	s = strings.TrimSpace(s)
	if s == WholeImageArea || s == "" {
		return scene.WholeImage, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return scene.PlacementArea{}, fmt.Errorf(`invalid value for "object-area", should be "x1,y1,x2,y2" (was: %q)`, s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return scene.PlacementArea{}, fmt.Errorf(`invalid value for "object-area", should be "x1,y1,x2,y2" (was: %q)`, s)
		}
		v[i] = n
	}
	if v[0] < 0 || v[1] < 0 || v[2] <= v[0] || v[3] <= v[1] {
		return scene.PlacementArea{}, fmt.Errorf("object area %q must satisfy 0 <= x1 < x2 and 0 <= y1 < y2", s)
	}
	return scene.PlacementArea{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

// ParseFisheyeMode parses a fisheye mode name. Empty means none.
func ParseFisheyeMode(s string) (scene.FisheyeMode, error) {
	m, err := parseFisheyeMode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return m, nil
}

func parseFisheyeMode(s string) (scene.FisheyeMode, error) {
	switch m := scene.FisheyeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return scene.FisheyeNone, nil
	case scene.FisheyeNone, scene.FisheyeBackground, scene.FisheyeObjects, scene.FisheyeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("invalid fisheye mode %q, should be none, background, objects or both", s)
	}
}
