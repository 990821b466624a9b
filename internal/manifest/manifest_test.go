package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ironsheep/composite-gen/internal/scene"
)

func TestManifest_AddKeepsOrder(t *testing.T) {
	m := New()
	m.Add("composite.1.2.png", nil)
	m.Add("composite.1.0.png", []scene.PlacedObject{{Label: "cup", X: 1, Y: 2, Width: 3, Height: 4}})
	m.Add("composite.1.1.png", nil)

	got := m.Filenames()
	want := []string{"composite.1.2.png", "composite.1.0.png", "composite.1.1.png"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Filenames: got %v, want %v", got, want)
	}
}

func TestManifest_AddOverwrites(t *testing.T) {
	m := New()
	m.Add("a.png", []scene.PlacedObject{{Label: "x", Width: 1, Height: 1}})
	m.Add("b.png", nil)
	m.Add("a.png", []scene.PlacedObject{{Label: "y", Width: 2, Height: 2}, {Label: "z", Width: 3, Height: 3}})

	if m.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", m.Len())
	}
	if m.Filenames()[0] != "a.png" {
		t.Errorf("overwritten entry moved: %v", m.Filenames())
	}
	boxes, ok := m.Boxes("a.png")
	if !ok || len(boxes) != 2 || boxes[0].Label != "y" {
		t.Errorf("Boxes(a.png): got %v, %v", boxes, ok)
	}
}

func TestManifest_AddCopiesInput(t *testing.T) {
	m := New()
	in := []scene.PlacedObject{{Label: "cup", X: 5, Width: 1, Height: 1}}
	m.Add("a.png", in)
	in[0].X = 99

	boxes, _ := m.Boxes("a.png")
	if boxes[0].X != 5 {
		t.Errorf("manifest aliased caller slice: got x=%d", boxes[0].X)
	}
}

func TestManifest_MarshalJSON(t *testing.T) {
	m := New()
	m.Add("b.png", []scene.PlacedObject{{Label: "cup", X: 10, Y: 10, Width: 20, Height: 20}})
	m.Add("a.png", nil)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"version":1,"type":"bounding-box-labels","boundingBoxes":{"b.png":[{"label":"cup","x":10,"y":10,"width":20,"height":20}],"a.png":[]}}`
	if string(data) != want {
		t.Errorf("Marshal:\n got %s\nwant %s", data, want)
	}
}

func TestManifest_WriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	m := New()
	for i := 0; i < 3; i++ {
		m.Add(fmt.Sprintf("composite.7.%d.png", i), []scene.PlacedObject{{Label: "obj", X: i, Y: i, Width: 4, Height: 4}})
	}
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(raw), "\n    \"version\": 1") {
		t.Errorf("manifest not indented with four spaces:\n%s", raw)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}

	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.Join(back.Filenames(), ",") != strings.Join(m.Filenames(), ",") {
		t.Errorf("round trip order: got %v, want %v", back.Filenames(), m.Filenames())
	}
	boxes, _ := back.Boxes("composite.7.2.png")
	if len(boxes) != 1 || boxes[0].X != 2 {
		t.Errorf("round trip boxes: got %v", boxes)
	}
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "nope"},
		{"wrong type", `{"version":1,"type":"classification","boundingBoxes":{}}`},
		{"boxes not object", `{"version":1,"type":"bounding-box-labels","boundingBoxes":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadFile(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := ReadFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestManifest_ConcurrentAdd(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Add(fmt.Sprintf("img-%d.png", i), []scene.PlacedObject{{Label: "o", Width: 1, Height: 1}})
		}(i)
	}
	wg.Wait()

	if m.Len() != 50 {
		t.Errorf("Len: got %d, want 50", m.Len())
	}
}
