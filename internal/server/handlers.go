package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/composite-gen/internal/assets"
	"github.com/ironsheep/composite-gen/internal/bbox"
	"github.com/ironsheep/composite-gen/internal/config"
	"github.com/ironsheep/composite-gen/internal/engine"
	"github.com/ironsheep/composite-gen/internal/manifest"
	"github.com/ironsheep/composite-gen/internal/scene"
	"github.com/ironsheep/composite-gen/internal/segment"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "composite_generate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "composite_load_assets":
		return s.handleLoadAssets(ctx, args)
	case "composite_generate":
		return s.handleGenerate(ctx, args)
	case "composite_distort_boxes":
		return s.handleDistortBoxes(args)
	case "composite_parse_area":
		return s.handleParseArea(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Asset Handlers ===

type loadAssetsArgs struct {
	CompositeDir     string `json:"composite_dir"`
	Labels           string `json:"labels"`
	RawObjectDir     string `json:"raw_object_dir"`
	BgRemovalCommand string `json:"bg_removal_command"`
	Reload           bool   `json:"reload"`
}

type spriteInfo struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type loadAssetsResult struct {
	CompositeDir string       `json:"composite_dir"`
	Labels       []string     `json:"labels"`
	Backgrounds  []spriteInfo `json:"backgrounds"`
	Objects      []spriteInfo `json:"objects"`
}

func (s *Server) handleLoadAssets(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a loadAssetsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.CompositeDir == "" {
		return nil, fmt.Errorf("composite_dir is required")
	}

	store, err := s.loadStore(ctx, a)
	if err != nil {
		return nil, err
	}

	res := loadAssetsResult{CompositeDir: a.CompositeDir, Labels: store.Labels()}
	for _, b := range store.Backgrounds {
		res.Backgrounds = append(res.Backgrounds, spriteInfo{Name: b.Name, Width: b.Width(), Height: b.Height()})
	}
	for _, o := range store.Objects {
		res.Objects = append(res.Objects, spriteInfo{Name: o.Name, Label: o.Label, Width: o.Width(), Height: o.Height()})
	}
	return res, nil
}

// loadStore returns the cached store for the directory and filter in a, loading it
// on a miss or when a.Reload is set.
func (s *Server) loadStore(ctx context.Context, a loadAssetsArgs) (*assets.Store, error) {
	if a.Labels == "" {
		a.Labels = assets.AllLabels
	}
	key := strings.Join([]string{a.CompositeDir, a.Labels, a.RawObjectDir, a.BgRemovalCommand}, "\x00")
	if v, ok := s.stores.Get(key); ok {
		cached := v.(*assets.Store)
		if !a.Reload {
			s.log.Debug("asset store cache hit", "dir", a.CompositeDir, "labels", a.Labels)
			return cached, nil
		}
		s.evict(a.CompositeDir, cached)
	}

	remover, err := segment.FromCommand(a.BgRemovalCommand)
	if err != nil {
		return nil, err
	}
	store, err := assets.Load(ctx, assets.Options{
		Dir:     a.CompositeDir,
		Labels:  assets.ParseLabels(a.Labels),
		RawDir:  a.RawObjectDir,
		Remover: remover,
		Cache:   s.images,
		Logger:  s.log,
	})
	if err != nil {
		return nil, err
	}
	s.stores.SetDefault(key, store)
	return store, nil
}

// evict drops the decoded images of store so a reload reads changed files.
func (s *Server) evict(dir string, store *assets.Store) {
	for _, b := range store.Backgrounds {
		s.images.Evict(filepath.Join(dir, assets.BackgroundDir, b.Name))
	}
	for _, o := range store.Objects {
		s.images.Evict(filepath.Join(dir, assets.ObjectDir, o.Name))
	}
}

// === Generation Handlers ===

type generateArgs struct {
	ConfigFile string `json:"config_file"`
}

type generateResult struct {
	Epoch        int64              `json:"epoch"`
	Seed         uint64             `json:"seed"`
	Generated    int                `json:"generated"`
	Skipped      int                `json:"skipped"`
	ManifestPath string             `json:"manifest_path"`
	Manifest     *manifest.Manifest `json:"manifest"`
}

// handleGenerate builds a configuration from the defaults, the optional config file
// and then the arguments themselves, which use the file's keys. JSON arguments are
// valid YAML, so the same decoder serves both.
func (s *Server) handleGenerate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a generateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	cfg := config.Default()
	cfg.SkipUpload = true
	if a.ConfigFile != "" {
		if err := config.LoadFile(a.ConfigFile, cfg); err != nil {
			return nil, err
		}
	}
	if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := yaml.Unmarshal(trimmed, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
	}
	cfg.ApplyEnv(s.lookup)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := s.loadStore(ctx, loadAssetsArgs{
		CompositeDir:     cfg.CompositeDir,
		Labels:           cfg.Labels,
		RawObjectDir:     cfg.RawObjectDir,
		BgRemovalCommand: cfg.BgRemovalCommand,
	})
	if err != nil {
		return nil, err
	}

	g, err := engine.New(engine.Options{Config: cfg, Store: store, Logger: s.log})
	if err != nil {
		return nil, err
	}
	res, err := g.Run(ctx)
	if err != nil {
		return nil, err
	}
	return generateResult{
		Epoch:        res.Epoch,
		Seed:         res.Seed,
		Generated:    res.Generated,
		Skipped:      res.Skipped,
		ManifestPath: res.ManifestPath,
		Manifest:     res.Manifest,
	}, nil
}

// === Geometry Handlers ===

type distortBoxesArgs struct {
	Width       int                  `json:"width"`
	Height      int                  `json:"height"`
	Strength    float64              `json:"strength"`
	Crop        *bool                `json:"crop"`
	EdgeSamples int                  `json:"edge_samples"`
	Boxes       []scene.PlacedObject `json:"boxes"`
}

type distortBoxesResult struct {
	Crop    *scene.Rect          `json:"crop,omitempty"`
	Boxes   []scene.PlacedObject `json:"boxes"`
	Dropped int                  `json:"dropped"`
}

func (s *Server) handleDistortBoxes(args json.RawMessage) (interface{}, error) {
	var a distortBoxesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, fmt.Errorf("invalid scene size %dx%d", a.Width, a.Height)
	}
	if a.EdgeSamples < 0 {
		return nil, fmt.Errorf("edge_samples must be >= 0 (was %d)", a.EdgeSamples)
	}
	crop := a.Crop == nil || *a.Crop

	d, err := engine.NewDistortion(a.Width, a.Height, a.Strength, crop)
	if err != nil {
		return nil, err
	}
	boxes, dropped, err := bbox.NewTracker(a.EdgeSamples).Apply(a.Boxes, d.Transform())
	if err != nil {
		return nil, err
	}

	res := distortBoxesResult{Boxes: boxes, Dropped: dropped}
	if !d.Crop.Empty() {
		r := scene.FromImageRect(d.Crop)
		res.Crop = &r
	}
	return res, nil
}

type parseAreaArgs struct {
	Area   string `json:"area"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type parseAreaResult struct {
	Whole bool       `json:"whole"`
	Area  string     `json:"area"`
	Rect  scene.Rect `json:"rect"`
}

func (s *Server) handleParseArea(args json.RawMessage) (interface{}, error) {
	var a parseAreaArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, fmt.Errorf("invalid background size %dx%d", a.Width, a.Height)
	}

	area, err := config.ParseObjectArea(a.Area)
	if err != nil {
		return nil, err
	}
	r := area.Resolve(a.Width, a.Height)
	if r.Empty() {
		return nil, fmt.Errorf("object area %s lies outside a %v background", area, image.Pt(a.Width, a.Height))
	}
	return parseAreaResult{Whole: area.Whole, Area: area.String(), Rect: r}, nil
}
