package server

import (
	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/protocol"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func thresholdProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"minimum":     model.ThresholdDisabled,
		"maximum":     model.ThresholdMax,
		"description": "Binarization: -2 disabled (default), -1 automatic (Otsu), 0-255 fixed level",
		"default":     model.ThresholdDisabled,
	}
}

func blurProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"minimum":     0,
		"description": "Gaussian blur radius in pixels. 0 disables blur",
		"default":     0,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        protocol.ToolLoadImage,
			Description: "Load an image file, assign it a new image id and return its record with a thumbnail preview as a PNG data URL.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        protocol.ToolLoadImageFull,
			Description: "Return an image file at full resolution as a PNG data URL.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        protocol.ToolProcessRegion,
			Description: "Crop a region of a loaded image, rotate the crop clockwise, preprocess it and run OCR. Returns the raw text and a grid of cells split on whitespace columns.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"imageId": map[string]interface{}{
						"type":        "string",
						"description": "Id returned by load_image",
					},
					"region": map[string]interface{}{
						"type":        "object",
						"description": "Rectangle in unrotated image pixels",
						"properties": map[string]interface{}{
							"id":            map[string]interface{}{"type": "string"},
							"x":             map[string]interface{}{"type": "number", "minimum": 0},
							"y":             map[string]interface{}{"type": "number", "minimum": 0},
							"width":         map[string]interface{}{"type": "number", "minimum": 0},
							"height":        map[string]interface{}{"type": "number", "minimum": 0},
							"label":         map[string]interface{}{"type": "string"},
							"isNumericHint": map[string]interface{}{"type": "boolean", "description": "Restrict recognition to digits and number punctuation"},
						},
						"required": []string{"id", "x", "y", "width", "height"},
					},
					"rotation": map[string]interface{}{
						"type":        "integer",
						"description": "Clockwise rotation in degrees applied to the crop",
						"default":     0,
					},
					"blurRadius": blurProperty(),
					"threshold":  thresholdProperty(),
				},
				"required": []string{"imageId", "region"},
			},
		},
		{
			Name:        protocol.ToolPreprocessImage,
			Description: "Apply denoising, blur and thresholding to an image and return a preview as a PNG data URL.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"blurRadius": blurProperty(),
					"threshold":  thresholdProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        protocol.ToolSaveResults,
			Description: "Write output cards to a new TXT or CSV file and return its path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cards": map[string]interface{}{
						"type":        "array",
						"description": "Output cards, one per image",
						"items":       map[string]interface{}{"type": "object"},
					},
					"format": map[string]interface{}{
						"type": "string",
						"enum": []string{string(model.FormatTXT), string(model.FormatCSV)},
					},
				},
				"required": []string{"cards", "format"},
			},
		},
	}
}
