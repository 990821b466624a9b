package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

var boxSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"label":  prop("string", "Object label"),
		"x":      prop("integer", "Left edge (0-based)"),
		"y":      prop("integer", "Top edge (0-based)"),
		"width":  prop("integer", "Box width in pixels"),
		"height": prop("integer", "Box height in pixels"),
	},
	"required": []string{"x", "y", "width", "height"},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "composite_load_assets",
			Description: "Load the background and object images of a composite directory and report what was found. The loaded store is cached and reused by composite_generate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"composite_dir":      prop("string", "Directory containing background/ and object/ subdirectories"),
					"labels":             prop("string", "\"all\" or a comma-separated list of labels to keep. Default all"),
					"raw_object_dir":     prop("string", "Optional directory of raw object photos to cut out"),
					"bg_removal_command": prop("string", "Optional command that reads a PNG on stdin and writes the cut-out PNG on stdout"),
					"reload":             prop("boolean", "Read the directory again even if it is cached"),
				},
				"required": []string{"composite_dir"},
			},
		},
		{
			Name:        "composite_generate",
			Description: "Run a generation job. Arguments use the configuration file keys (composite_dir, images, objects, allow_overlap, object_area, fisheye, workers, seed, ...). Uploading is off unless skip_upload is false and EI_PROJECT_API_KEY is set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"config_file":           prop("string", "Optional YAML configuration applied before the other arguments"),
					"composite_dir":         prop("string", "Directory containing background/ and object/ subdirectories"),
					"labels":                prop("string", "\"all\" or a comma-separated list of labels"),
					"images":                prop("integer", "Number of images to generate"),
					"objects":               prop("integer", "Each image holds a random number of candidates in [0, objects)"),
					"allow_overlap":         prop("boolean", "Keep candidates that overlap earlier ones"),
					"allow_rotate":          prop("boolean", "Rotate each object by a random angle"),
					"allow_motion_blur":     prop("boolean", "Apply a per-scene motion blur"),
					"motion_blur_direction": prop("integer", "Blur direction in degrees, -1 for random up or down"),
					"object_area":           prop("string", "\"x1,y1,x2,y2\" or \"-1\" for the whole image"),
					"fisheye": map[string]interface{}{
						"type":        "object",
						"description": "Lens distortion: mode (none, background, objects, both), strength, crop",
					},
					"out_directory": prop("string", "Output directory"),
					"clean_output":  prop("boolean", "Empty the output directory first"),
					"annotate":      prop("boolean", "Also write copies with the boxes drawn"),
					"workers":       prop("integer", "Scenes built concurrently"),
					"seed":          prop("integer", "Random seed, 0 for time based"),
					"skip_upload":   prop("boolean", "Default true"),
				},
				"required": []string{"composite_dir"},
			},
		},
		{
			Name:        "composite_distort_boxes",
			Description: "Map bounding boxes through the fisheye distortion and crop a scene of the given size would receive. Boxes that leave the frame are dropped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width":        prop("integer", "Scene width"),
					"height":       prop("integer", "Scene height"),
					"strength":     prop("number", "Distortion strength (>= 0)"),
					"crop":         prop("boolean", "Crop to the largest valid rectangle and rescale. Default true"),
					"edge_samples": prop("integer", "Extra points sampled along each box edge. Default 0"),
					"boxes": map[string]interface{}{
						"type":        "array",
						"description": "Boxes in undistorted scene coordinates",
						"items":       boxSchema,
					},
				},
				"required": []string{"width", "height", "strength", "boxes"},
			},
		},
		{
			Name:        "composite_parse_area",
			Description: "Parse an object area setting and resolve it against a background size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"area":   prop("string", "\"x1,y1,x2,y2\" or \"-1\""),
					"width":  prop("integer", "Background width"),
					"height": prop("integer", "Background height"),
				},
				"required": []string{"area", "width", "height"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
