// Package manifest accumulates the per-image bounding-box records of a run into the
// dataset-level label file.
//
// The on-disk form is:
//
//	{
//	    "version": 1,
//	    "type": "bounding-box-labels",
//	    "boundingBoxes": {
//	        "composite.1700000000.0.png": [
//	            {"label": "cup", "x": 10, "y": 12, "width": 40, "height": 38}
//	        ]
//	    }
//	}
//
// Keys of boundingBoxes keep the order in which images were added.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ironsheep/composite-gen/internal/scene"
)

const (
	// FileName is the name of the manifest file inside the output directory.
	FileName = "bounding_boxes.labels"

	// Version is the manifest format version.
	Version = 1

	// Type identifies the label format.
	Type = "bounding-box-labels"
)

// Manifest is safe for concurrent use. The zero value is not usable; call New.
type Manifest struct {
	mu    sync.Mutex
	order []string
	boxes map[string][]scene.PlacedObject
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{boxes: make(map[string][]scene.PlacedObject)}
}

// Add records the boxes of one generated image. Adding a filename that is already
// present replaces its boxes and keeps its original position.
func (m *Manifest) Add(filename string, boxes []scene.PlacedObject) {
	cp := make([]scene.PlacedObject, len(boxes))
	copy(cp, boxes)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boxes[filename]; !ok {
		m.order = append(m.order, filename)
	}
	m.boxes[filename] = cp
}

// Len returns the number of images recorded.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Filenames returns the recorded filenames in insertion order.
func (m *Manifest) Filenames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Boxes returns a copy of the boxes recorded for filename.
func (m *Manifest) Boxes(filename string) ([]scene.PlacedObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[filename]
	if !ok {
		return nil, false
	}
	out := make([]scene.PlacedObject, len(b))
	copy(out, b)
	return out, true
}

// MarshalJSON encodes the manifest with boundingBoxes in insertion order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"version":%d,"type":%q,"boundingBoxes":{`, Version, Type)
	for i, name := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		boxes, err := json.Marshal(m.boxes[name])
		if err != nil {
			return nil, fmt.Errorf("failed to encode boxes for %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(boxes)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a manifest, keeping the file order of boundingBoxes.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version       int             `json:"version"`
		Type          string          `json:"type"`
		BoundingBoxes json.RawMessage `json:"boundingBoxes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != Type {
		return fmt.Errorf("unexpected manifest type %q", raw.Type)
	}

	order, boxes, err := decodeOrdered(raw.BoundingBoxes)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = order
	m.boxes = boxes
	return nil
}

func decodeOrdered(data []byte) ([]string, map[string][]scene.PlacedObject, error) {
	boxes := make(map[string][]scene.PlacedObject)
	var order []string
	if len(bytes.TrimSpace(data)) == 0 {
		return order, boxes, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("boundingBoxes must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, _ := tok.(string)
		var list []scene.PlacedObject
		if err := dec.Decode(&list); err != nil {
			return nil, nil, fmt.Errorf("failed to decode boxes for %s: %w", name, err)
		}
		if _, ok := boxes[name]; !ok {
			order = append(order, name)
		}
		boxes[name] = list
	}
	return order, boxes, nil
}

// WriteFile persists the manifest to path. The file is written to a temporary
// sibling and renamed into place, so readers never see a partial manifest.
func (m *Manifest) WriteFile(path string) error {
	compact, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "    "); err != nil {
		return fmt.Errorf("failed to format manifest: %w", err)
	}
	out.WriteByte('\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if _, err := tmp.Write(out.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadFile loads a manifest written by WriteFile.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filepath.Base(path), err)
	}
	return m, nil
}
