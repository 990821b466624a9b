// Package assets loads the background and object images of a composite directory.
//
// A composite directory contains two subfolders:
//
//	<dir>/background/   scene backgrounds
//	<dir>/object/       cut-out object sprites with an alpha channel
//
// Object files carry their label as the part of the file name before the first
// underscore, so "cup_03.png" has label "cup". A name without an underscore uses the
// name without its extension. Files are visited in lexical order, which makes a load
// independent of file system iteration order.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/composite-gen/internal/imaging"
	"github.com/ironsheep/composite-gen/internal/segment"
)

// Subdirectory names inside a composite directory.
const (
	BackgroundDir = "background"
	ObjectDir     = "object"
)

// AllLabels is the label filter value that keeps every object.
const AllLabels = "all"

var (
	// ErrMissingDir is returned when a required asset directory does not exist.
	ErrMissingDir = errors.New("asset directory not found")
	// ErrNoBackgrounds is returned when no background image could be loaded.
	ErrNoBackgrounds = errors.New("no background images")
	// ErrNoObjects is returned when no object matches the label filter.
	ErrNoObjects = errors.New("no object images match the label filter")
)

// Sprite is a decoded master image. It is shared by every scene and must be cloned
// before any transform touches its pixels.
type Sprite struct {
	Label string
	Name  string
	Image *image.NRGBA
}

// Width returns the sprite width in pixels.
func (s Sprite) Width() int { return s.Image.Rect.Dx() }

// Height returns the sprite height in pixels.
func (s Sprite) Height() int { return s.Image.Rect.Dy() }

// Store holds the assets of a run. It is populated once by Load and read-only
// afterwards, so it can be shared by concurrent scene workers.
type Store struct {
	Backgrounds []Sprite
	Objects     []Sprite
}

// Labels returns the distinct object labels in sorted order.
func (s *Store) Labels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range s.Objects {
		if !seen[o.Label] {
			seen[o.Label] = true
			out = append(out, o.Label)
		}
	}
	sort.Strings(out)
	return out
}

// Options controls Load.
type Options struct {
	// Dir is the composite directory.
	Dir string
	// Labels filters objects by label. Empty, or a single AllLabels entry, keeps all.
	Labels []string
	// RawDir optionally names a directory of raw object photos. Each one is passed
	// through Remover and added to the objects.
	RawDir  string
	Remover segment.Remover
	// Cache is used for decoding when set.
	Cache  *imaging.ImageCache
	Logger *slog.Logger
}

// Load reads the backgrounds and the label-filtered objects of opts.Dir.
//
// Returns ErrMissingDir when a required directory is absent, ErrNoBackgrounds or
// ErrNoObjects when nothing usable was found, or the first decode error.
func Load(ctx context.Context, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cache := opts.Cache
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	filter := newLabelFilter(opts.Labels)

	bgDir := filepath.Join(opts.Dir, BackgroundDir)
	objDir := filepath.Join(opts.Dir, ObjectDir)
	for _, d := range []string{bgDir, objDir} {
		if err := requireDir(d); err != nil {
			return nil, err
		}
	}

	store := &Store{}

	bgNames, err := imageFiles(bgDir)
	if err != nil {
		return nil, err
	}
	for _, name := range bgNames {
		img, err := cache.Load(filepath.Join(bgDir, name))
		if err != nil {
			return nil, err
		}
		store.Backgrounds = append(store.Backgrounds, Sprite{Name: name, Image: img})
		log.Debug("loaded background image", "file", name, "width", img.Rect.Dx(), "height", img.Rect.Dy())
	}
	if len(store.Backgrounds) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoBackgrounds, bgDir)
	}

	objNames, err := imageFiles(objDir)
	if err != nil {
		return nil, err
	}
	for _, name := range objNames {
		label := LabelOf(name)
		if !filter.keep(label) {
			continue
		}
		img, err := cache.Load(filepath.Join(objDir, name))
		if err != nil {
			return nil, err
		}
		store.Objects = append(store.Objects, Sprite{Label: label, Name: name, Image: img})
		log.Debug("loaded object image", "file", name, "label", label)
	}

	if opts.RawDir != "" {
		raw, err := loadRaw(ctx, opts.RawDir, opts.Remover, filter, log)
		if err != nil {
			return nil, err
		}
		store.Objects = append(store.Objects, raw...)
	}

	if len(store.Objects) == 0 {
		return nil, fmt.Errorf("%w (labels %v)", ErrNoObjects, opts.Labels)
	}

	log.Info("loaded assets",
		"backgrounds", len(store.Backgrounds),
		"objects", len(store.Objects),
		"labels", store.Labels())
	return store, nil
}

// loadRaw cuts out every raw photo in dir. Photos that leave an empty mask are
// logged and skipped; any other remover failure aborts the load.
func loadRaw(ctx context.Context, dir string, remover segment.Remover, filter labelFilter, log *slog.Logger) ([]Sprite, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}
	if remover == nil {
		remover = segment.NewKeyRemover()
	}

	names, err := imageFiles(dir)
	if err != nil {
		return nil, err
	}

	var out []Sprite
	for _, name := range names {
		label := LabelOf(name)
		if !filter.keep(label) {
			continue
		}
		raw, err := imaging.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		cut, err := remover.Remove(ctx, raw)
		if errors.Is(err, segment.ErrEmptyMask) {
			log.Warn("skipping raw object", "file", name, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to remove background from %s: %w", name, err)
		}
		out = append(out, Sprite{Label: label, Name: name, Image: cut})
		log.Debug("prepared raw object", "file", name, "label", label,
			"width", cut.Rect.Dx(), "height", cut.Rect.Dy())
	}
	return out, nil
}

// LabelOf returns the label encoded in an object file name.
func LabelOf(name string) string {
	base := filepath.Base(name)
	if i := strings.Index(base, "_"); i >= 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseLabels splits a comma-separated label list. "all" yields nil.
func ParseLabels(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == AllLabels {
		return nil
	}
	var out []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

type labelFilter map[string]bool

func newLabelFilter(labels []string) labelFilter {
	if len(labels) == 0 || (len(labels) == 1 && labels[0] == AllLabels) {
		return nil
	}
	f := make(labelFilter, len(labels))
	for _, l := range labels {
		f[l] = true
	}
	return f
}

func (f labelFilter) keep(label string) bool {
	return f == nil || f[label]
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissingDir, dir)
		}
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrMissingDir, dir)
	}
	return nil
}

// imageFiles returns the decodable files of dir in lexical order.
func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && imaging.IsSupported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
