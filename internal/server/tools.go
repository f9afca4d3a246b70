package server

import "github.com/ironsheep/tesseract-mcp/internal/imaging"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file (PNG, JPEG, GIF, TIFF, BMP or WebP)",
	}
}

func languageProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Languages joined by '+', e.g. 'eng' or 'eng+deu'. Prefix '~' to suppress one. Defaults to the server profile.",
	}
}

func levelProperty(def string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"block", "paragraph", "line", "word", "symbol"},
		"description": "Granularity of the returned elements",
		"default":     def,
	}
}

func regionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Restrict recognition to this rectangle (x2, y2 exclusive)",
		"properties": map[string]interface{}{
			"x1": map[string]interface{}{"type": "integer"},
			"y1": map[string]interface{}{"type": "integer"},
			"x2": map[string]interface{}{"type": "integer"},
			"y2": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"x1", "y1", "x2", "y2"},
	}
}

func namedRegionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        imaging.RegionNames,
		"description": "Restrict recognition to a named part of the image. Ignored when region is given.",
	}
}

func preprocessProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Clean-up applied before recognition. Coordinates in the result are then relative to the processed image.",
		"properties": map[string]interface{}{
			"scale":          map[string]interface{}{"type": "number", "description": "Resize factor, e.g. 2 for small text"},
			"max_dimension":  map[string]interface{}{"type": "integer", "description": "Shrink so neither side exceeds this"},
			"deskew_radians": map[string]interface{}{"type": "number", "description": "Skew angle to undo"},
			"denoise":        map[string]interface{}{"type": "number", "description": "Median filter radius"},
			"contrast":       map[string]interface{}{"type": "number", "description": "Contrast change in percent, -100 to 100"},
			"grayscale":      map[string]interface{}{"type": "boolean"},
			"perceptual":     map[string]interface{}{"type": "boolean", "description": "Grayscale by CIE L* lightness"},
			"binarize":       map[string]interface{}{"type": "boolean"},
			"threshold":      map[string]interface{}{"type": "integer", "description": "Binarize threshold 1-255; 0 picks one automatically"},
			"invert":         map[string]interface{}{"type": "boolean", "description": "For light text on a dark background"},
		},
	}
}

// pageProperties are shared by every tool that recognizes an image.
func pageProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path":         pathProperty(),
		"language":     languageProperty(),
		"region":       regionProperty(),
		"named_region": namedRegionProperty(),
		"preprocess":   preprocessProperty(),
		"source_ppi": map[string]interface{}{
			"type":        "integer",
			"description": "Scan resolution in pixels per inch, if known",
		},
		"page_seg_mode": map[string]interface{}{
			"type":        "string",
			"description": "Page segmentation mode name (auto, single_block, single_line, single_word, sparse_text, ...) or number",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Recognition
		{
			Name:        "ocr_text",
			Description: "Recognize the text in an image. Returns the text with its mean confidence. Use format to get box or UNLV output instead of plain text, or all_pages for every page of a multi-page TIFF.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pageProperties(map[string]interface{}{
					"format": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"text", "box", "unlv"},
						"default": "text",
					},
					"all_pages": map[string]interface{}{
						"type":        "boolean",
						"description": "Recognize every page of the file, pages separated by form feeds. Text format only; no region or preprocess",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_words",
			Description: "Recognize an image and return each element (word by default) with its bounding box and confidence, in reading order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pageProperties(map[string]interface{}{
					"level": levelProperty("word"),
					"details": map[string]interface{}{
						"type":        "boolean",
						"description": "Add dictionary, numeric, language and font fields for words",
					},
					"min_confidence": map[string]interface{}{
						"type":        "number",
						"description": "Drop elements below this confidence (0.0-1.0)",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_layout",
			Description: "Find text blocks, paragraphs or lines without recognizing characters. Much faster than ocr_words; use it to pick regions first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty(),
					"level": levelProperty("block"),
					"text_only": map[string]interface{}{
						"type":        "boolean",
						"description": "Drop image, line and noise blocks",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_hocr",
			Description: "Recognize an image and return the hOCR page structure: areas, paragraphs, lines with baselines, and words with boxes, confidence and styling.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": pageProperties(map[string]interface{}{
					"include_raw": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the hOCR markup",
					},
				}),
				"required": []string{"path"},
			},
		},

		// Engine
		{
			Name:        "ocr_info",
			Description: "Report the Tesseract version, data path, loaded and installed languages, and the current segmentation mode.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"language": languageProperty()},
			},
		},
		{
			Name:        "ocr_variable",
			Description: "Read or set a Tesseract parameter such as tessedit_char_whitelist, or apply a config file. Omit value to read.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Parameter name",
					},
					"value": map[string]interface{}{
						"type":        "string",
						"description": "New value; booleans are 0/1 or true/false",
					},
					"config_file": map[string]interface{}{
						"type":        "string",
						"description": "Config file name (searched under tessdata/configs) or path to apply instead",
					},
					"language": languageProperty(),
				},
			},
		},

		// Images
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and the pixel depth best suited for recognition.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_preprocess",
			Description: "Apply recognition clean-up (crop, scale, deskew, denoise, contrast, grayscale, binarize, invert) and return the result as base64-encoded PNG, to check what the recognizer will see.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":         pathProperty(),
					"region":       regionProperty(),
					"named_region": namedRegionProperty(),
					"preprocess":   preprocessProperty(),
				},
				"required": []string{"path"},
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
