package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/composite-gen/internal/config"
	"github.com/ironsheep/composite-gen/internal/manifest"
	"github.com/ironsheep/composite-gen/internal/scene"
)

// createTestImageFile writes a solid width x height PNG to dir/name.
func createTestImageFile(t *testing.T, dir, name string, width, height int, c color.Color) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
}

// createCompositeDir builds a composite directory with one background and objects
// labelled cup and pen.
func createCompositeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	createTestImageFile(t, filepath.Join(dir, "background"), "floor.png", 120, 90, color.NRGBA{80, 80, 80, 255})
	createTestImageFile(t, filepath.Join(dir, "object"), "cup_1.png", 12, 10, color.NRGBA{200, 0, 0, 255})
	createTestImageFile(t, filepath.Join(dir, "object"), "pen_1.png", 4, 16, color.NRGBA{0, 0, 200, 255})
	return dir
}

// callTool runs a tools/call request and returns the decoded text payload or the
// error response.
func callTool(t *testing.T, s *Server, name string, args interface{}) (string, *MCPError) {
	t.Helper()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: argsJSON})

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	return content[0]["text"].(string), nil
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	_, mcpErr := callTool(t, newTestServer(nil, nil), "image_load", map[string]string{})
	if mcpErr == nil || mcpErr.Code != -32000 {
		t.Fatalf("got %+v, want code -32000", mcpErr)
	}
	if !strings.Contains(mcpErr.Data.(string), "unknown tool") {
		t.Errorf("data: got %v", mcpErr.Data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	resp := newTestServer(nil, nil).handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("got %+v, want code -32602", resp.Error)
	}
}

func TestHandleLoadAssets(t *testing.T) {
	s := newTestServer(nil, nil)
	dir := createCompositeDir(t)

	text, mcpErr := callTool(t, s, "composite_load_assets", map[string]interface{}{"composite_dir": dir})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %+v", mcpErr)
	}

	var res loadAssetsResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if len(res.Backgrounds) != 1 || res.Backgrounds[0].Width != 120 {
		t.Errorf("backgrounds: got %+v", res.Backgrounds)
	}
	if len(res.Objects) != 2 || strings.Join(res.Labels, ",") != "cup,pen" {
		t.Errorf("objects: got %+v labels %v", res.Objects, res.Labels)
	}
}

func TestHandleLoadAssets_LabelFilterAndCache(t *testing.T) {
	s := newTestServer(nil, nil)
	dir := createCompositeDir(t)
	args := map[string]interface{}{"composite_dir": dir, "labels": "pen"}

	text, mcpErr := callTool(t, s, "composite_load_assets", args)
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %+v", mcpErr)
	}
	var res loadAssetsResult
	json.Unmarshal([]byte(text), &res)
	if len(res.Objects) != 1 || res.Objects[0].Label != "pen" {
		t.Errorf("filtered objects: got %+v", res.Objects)
	}

	// A new object on disk is only seen after a reload.
	createTestImageFile(t, filepath.Join(dir, "object"), "pen_2.png", 5, 5, color.NRGBA{0, 0, 255, 255})
	text, _ = callTool(t, s, "composite_load_assets", args)
	json.Unmarshal([]byte(text), &res)
	if len(res.Objects) != 1 {
		t.Errorf("cached load: got %d objects, want 1", len(res.Objects))
	}
	if s.stores.ItemCount() != 1 {
		t.Errorf("cache entries: got %d, want 1", s.stores.ItemCount())
	}

	args["reload"] = true
	text, _ = callTool(t, s, "composite_load_assets", args)
	json.Unmarshal([]byte(text), &res)
	if len(res.Objects) != 2 {
		t.Errorf("reloaded: got %d objects, want 2", len(res.Objects))
	}
}

func TestHandleLoadAssets_Errors(t *testing.T) {
	s := newTestServer(nil, nil)
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"no dir", map[string]interface{}{}, "composite_dir"},
		{"missing dir", map[string]interface{}{"composite_dir": filepath.Join(t.TempDir(), "nope")}, "not found"},
		{"no matching label", map[string]interface{}{"composite_dir": createCompositeDir(t), "labels": "car"}, "no object images"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mcpErr := callTool(t, s, "composite_load_assets", tt.args)
			if mcpErr == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(mcpErr.Data.(string), tt.want) {
				t.Errorf("data %q should mention %q", mcpErr.Data, tt.want)
			}
		})
	}
}

func TestHandleGenerate(t *testing.T) {
	s := newTestServer(nil, nil)
	out := t.TempDir()

	text, mcpErr := callTool(t, s, "composite_generate", map[string]interface{}{
		"composite_dir": createCompositeDir(t),
		"images":        3,
		"objects":       4,
		"seed":          5,
		"out_directory": out,
		"fisheye":       map[string]interface{}{"mode": "both", "strength": 0.2},
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %+v", mcpErr)
	}

	var res struct {
		Seed         uint64             `json:"seed"`
		Generated    int                `json:"generated"`
		ManifestPath string             `json:"manifest_path"`
		Manifest     *manifest.Manifest `json:"manifest"`
	}
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if res.Seed != 5 || res.Generated != 3 {
		t.Errorf("seed=%d generated=%d", res.Seed, res.Generated)
	}
	if res.ManifestPath != filepath.Join(out, manifest.FileName) {
		t.Errorf("manifest path: got %s", res.ManifestPath)
	}
	if res.Manifest == nil || res.Manifest.Len() != 3 {
		t.Fatalf("manifest: got %+v", res.Manifest)
	}
	if _, err := os.Stat(filepath.Join(out, res.Manifest.Filenames()[0])); err != nil {
		t.Errorf("generated image missing: %v", err)
	}
}

func TestHandleGenerate_ConfigFile(t *testing.T) {
	s := newTestServer(nil, nil)
	out := t.TempDir()
	path := filepath.Join(t.TempDir(), "job.yaml")
	content := "composite_dir: " + createCompositeDir(t) + "\nimages: 2\nout_directory: " + out + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Arguments override the file.
	text, mcpErr := callTool(t, s, "composite_generate", map[string]interface{}{"config_file": path, "images": 1})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %+v", mcpErr)
	}
	var res generateResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if res.Generated != 1 {
		t.Errorf("generated: got %d, want 1", res.Generated)
	}
}

func TestHandleGenerate_Errors(t *testing.T) {
	s := newTestServer(nil, nil)
	dir := createCompositeDir(t)
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing dir", map[string]interface{}{}, "composite directory"},
		{"upload without key", map[string]interface{}{"composite_dir": dir, "skip_upload": false}, config.EnvAPIKey},
		{"bad area", map[string]interface{}{"composite_dir": dir, "object_area": "1,2"}, "object-area"},
		{"bad type", map[string]interface{}{"composite_dir": dir, "images": "many"}, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mcpErr := callTool(t, s, "composite_generate", tt.args)
			if mcpErr == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(mcpErr.Data.(string), tt.want) {
				t.Errorf("data %q should mention %q", mcpErr.Data, tt.want)
			}
		})
	}
}

func TestHandleDistortBoxes_Identity(t *testing.T) {
	boxes := []scene.PlacedObject{{Label: "cup", X: 5, Y: 6, Width: 20, Height: 10}}
	text, mcpErr := callTool(t, newTestServer(nil, nil), "composite_distort_boxes", map[string]interface{}{
		"width": 100, "height": 80, "strength": 0, "boxes": boxes,
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %+v", mcpErr)
	}

	var res distortBoxesResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if len(res.Boxes) != 1 || res.Boxes[0] != boxes[0] {
		t.Errorf("identity distortion moved box: got %v", res.Boxes)
	}
	if res.Crop == nil || *res.Crop != (scene.Rect{Width: 100, Height: 80}) {
		t.Errorf("crop: got %+v", res.Crop)
	}
}

func TestHandleDistortBoxes_Distorted(t *testing.T) {
	boxes := []scene.PlacedObject{
		{Label: "a", X: 40, Y: 30, Width: 20, Height: 20},
		{Label: "b", X: 0, Y: 0, Width: 3, Height: 3},
	}
	text, mcpErr := callTool(t, newTestServer(nil, nil), "composite_distort_boxes", map[string]interface{}{
		"width": 100, "height": 80, "strength": 0.5, "edge_samples": 2, "boxes": boxes,
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %+v", mcpErr)
	}

	var res distortBoxesResult
	json.Unmarshal([]byte(text), &res)
	if len(res.Boxes)+res.Dropped != len(boxes) {
		t.Fatalf("kept %d + dropped %d != %d", len(res.Boxes), res.Dropped, len(boxes))
	}
	frame := scene.Rect{Width: 100, Height: 80}
	for _, b := range res.Boxes {
		if !b.Valid() || !frame.Contains(b) {
			t.Errorf("box %v invalid or out of frame", b)
		}
	}
	if res.Crop == nil || res.Crop.Width >= 100 {
		t.Errorf("crop should shrink the frame: %+v", res.Crop)
	}
}

func TestHandleDistortBoxes_NoCrop(t *testing.T) {
	text, mcpErr := callTool(t, newTestServer(nil, nil), "composite_distort_boxes", map[string]interface{}{
		"width": 64, "height": 64, "strength": 0.3, "crop": false,
		"boxes": []scene.PlacedObject{{Label: "a", X: 30, Y: 30, Width: 4, Height: 4}},
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %+v", mcpErr)
	}
	var res distortBoxesResult
	json.Unmarshal([]byte(text), &res)
	if res.Crop != nil {
		t.Errorf("crop reported without cropping: %+v", res.Crop)
	}
}

func TestHandleDistortBoxes_Errors(t *testing.T) {
	s := newTestServer(nil, nil)
	for _, args := range []map[string]interface{}{
		{"width": 0, "height": 10, "strength": 0.1},
		{"width": 10, "height": 10, "strength": -1},
		{"width": 10, "height": 10, "strength": 0.1, "edge_samples": -1},
	} {
		if _, mcpErr := callTool(t, s, "composite_distort_boxes", args); mcpErr == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestHandleParseArea(t *testing.T) {
	s := newTestServer(nil, nil)
	tests := []struct {
		name    string
		area    string
		want    scene.Rect
		whole   bool
		wantErr bool
	}{
		{"whole image", "-1", scene.Rect{Width: 60, Height: 40}, true, false},
		{"inside", "10,5,30,25", scene.Rect{Left: 10, Top: 5, Width: 20, Height: 20}, false, false},
		{"clipped", "50,30,100,100", scene.Rect{Left: 50, Top: 30, Width: 10, Height: 10}, false, false},
		{"outside", "70,50,80,60", scene.Rect{}, false, true},
		{"malformed", "1,2,3", scene.Rect{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, mcpErr := callTool(t, s, "composite_parse_area", map[string]interface{}{
				"area": tt.area, "width": 60, "height": 40,
			})
			if tt.wantErr {
				if mcpErr == nil {
					t.Fatal("expected error")
				}
				return
			}
			if mcpErr != nil {
				t.Fatalf("Unexpected error: %+v", mcpErr)
			}
			var res parseAreaResult
			json.Unmarshal([]byte(text), &res)
			if res.Rect != tt.want || res.Whole != tt.whole {
				t.Errorf("got %+v, want rect %+v whole %v", res, tt.want, tt.whole)
			}
		})
	}
}
