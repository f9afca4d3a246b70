// Package server implements the MCP (Model Context Protocol) server for
// Tesseract OCR.
//
// The server speaks JSON-RPC 2.0 over stdio, one message per line, and owns
// a single OCR engine that it opens on first use. Calls are serialized: the
// engine is not safe for concurrent use, and MCP clients send one request at
// a time anyway.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Recognition:
//   - ocr_text: Page text, or box/UNLV output, or every page of a TIFF
//   - ocr_words: Elements at a level with boxes and confidences
//   - ocr_layout: Layout analysis without recognition or language data
//   - ocr_hocr: Parsed hOCR page structure
//
// Engine:
//   - ocr_info: Version, languages and segmentation mode
//   - ocr_variable: Read or set a parameter, or apply a config file
//
// Images:
//   - image_load: Image metadata and the pixel depth to recognize it at
//   - image_preprocess: Preview of the clean-up the recognizer will see
//
// Recognition tools accept a language set. When it differs from the one the
// engine was last initialized with the engine is re-initialized, which
// resets every parameter set through ocr_variable.
//
// # Progress
//
// A tools/call that carries _meta.progressToken receives
// notifications/progress messages with progress 0-100 while recognition
// runs. Recognition is bounded by the profile timeout.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(server.WithConfig(cfg), server.WithLogger(log))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
