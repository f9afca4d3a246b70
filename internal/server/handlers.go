package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/ironsheep/tesseract-mcp/internal/hocr"
	"github.com/ironsheep/tesseract-mcp/internal/imaging"
	"github.com/ironsheep/tesseract-mcp/internal/ocr"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ocr_text", "image_load").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the client's progress token, if it wants progress.
	Meta *struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta,omitempty"`
}

func (p *ToolCallParams) progressToken() interface{} {
	if p.Meta == nil {
		return nil
	}
	return p.Meta.ProgressToken
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
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(params.Name, params.Arguments, params.progressToken())
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
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

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage, progress interface{}) (interface{}, error) {
	switch name {
	// Recognition
	case "ocr_text":
		return s.handleOCRText(args, progress)
	case "ocr_words":
		return s.handleOCRWords(args, progress)
	case "ocr_layout":
		return s.handleOCRLayout(args)
	case "ocr_hocr":
		return s.handleOCRHOCR(args, progress)

	// Engine
	case "ocr_info":
		return s.handleOCRInfo(args)
	case "ocr_variable":
		return s.handleOCRVariable(args)

	// Images
	case "image_load":
		return s.handleImageLoad(args)
	case "image_preprocess":
		return s.handleImagePreprocess(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Page selection ===

type regionArgs struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// pageArgs are the arguments every recognition tool accepts.
type pageArgs struct {
	Path        string                     `json:"path"`
	Language    string                     `json:"language"`
	Region      *regionArgs                `json:"region,omitempty"`
	NamedRegion string                     `json:"named_region"`
	Preprocess  *imaging.PreprocessOptions `json:"preprocess,omitempty"`
	SourcePPI   int                        `json:"source_ppi"`
	PageSegMode string                     `json:"page_seg_mode"`
}

type pageSegModeSetter interface {
	SetPageSegMode(ocr.PageSegMode) error
}

// restorePageSegMode puts back the mode a per-call override replaced.
func (s *Server) restorePageSegMode(e pageSegModeSetter, prev ocr.PageSegMode) {
	if err := e.SetPageSegMode(prev); err != nil {
		s.log.WithError(err).WithField("mode", prev).Warn("restore page segmentation mode failed")
	}
}

func (a *pageArgs) rect(bounds image.Rectangle) (*image.Rectangle, error) {
	var (
		r   image.Rectangle
		err error
	)
	switch {
	case a.Region != nil:
		r, err = imaging.ParseRegion(bounds, a.Region.X1, a.Region.Y1, a.Region.X2, a.Region.Y2)
	case a.NamedRegion != "":
		r, err = imaging.NamedRegion(bounds, a.NamedRegion)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// page loads the image for a and applies preprocessing. Without
// preprocessing the region is returned for the engine to apply, so results
// stay in source image coordinates; with it the region is cropped first.
func (s *Server) page(a *pageArgs) (image.Image, *image.Rectangle, error) {
	if a.Path == "" {
		return nil, nil, errors.New("path is required")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, nil, err
	}
	region, err := a.rect(img.Bounds())
	if err != nil {
		return nil, nil, err
	}
	if a.Preprocess == nil {
		return img, region, nil
	}
	opts := *a.Preprocess
	opts.Region = region
	out, err := imaging.Preprocess(img, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("preprocess: %w", err)
	}
	return out, nil, nil
}

// timeoutContext bounds one recognition by the profile timeout.
func (s *Server) timeoutContext() (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(context.Background(), s.cfg.Timeout)
	}
	return context.WithCancel(context.Background())
}

// monitor logs progress and forwards it to the client when it sent a
// progress token.
func (s *Server) monitor(token interface{}) *ocr.Monitor {
	last := -1
	return &ocr.Monitor{
		Progress: func(percent int) {
			if percent == last {
				return
			}
			last = percent
			s.log.WithField("percent", percent).Debug("recognition progress")
			if token != nil {
				s.notify("notifications/progress", map[string]interface{}{
					"progressToken": token,
					"progress":      percent,
					"total":         100,
				})
			}
		},
	}
}

// recognizePage runs ocr.Extract for a and hands the engine, still holding
// the results, to then.
func (s *Server) recognizePage(a *pageArgs, req ocr.ExtractRequest, progress interface{},
	then func(e *ocr.Engine, res *ocr.Result) (interface{}, error)) (interface{}, error) {

	img, region, err := s.page(a)
	if err != nil {
		return nil, err
	}
	var psm *ocr.PageSegMode
	if a.PageSegMode != "" {
		m, err := ocr.ParsePageSegMode(a.PageSegMode)
		if err != nil {
			return nil, err
		}
		psm = &m
	}
	req.Region = region
	req.Depth = ocr.Depth(imaging.Describe(img, "").SuggestedDepth)
	req.SourcePPI = a.SourcePPI
	if req.SourcePPI == 0 {
		req.SourcePPI = s.cfg.SourcePPI
	}
	req.Monitor = s.monitor(progress)

	return s.withEngine(a.Language, func(e *ocr.Engine) (interface{}, error) {
		if psm != nil {
			prev, err := e.PageSegMode()
			if err != nil {
				return nil, err
			}
			if err := e.SetPageSegMode(*psm); err != nil {
				return nil, err
			}
			defer s.restorePageSegMode(e, prev)
		}

		ctx, cancel := s.timeoutContext()
		defer cancel()
		res, err := ocr.Extract(ctx, e, img, req)
		if err != nil {
			return nil, err
		}
		return then(e, res)
	})
}

// === Recognition Handlers ===

type ocrTextArgs struct {
	pageArgs
	Format   string `json:"format"`
	AllPages bool   `json:"all_pages"`
}

// OCRTextResult is returned by ocr_text. Pages is set for all_pages.
type OCRTextResult struct {
	Text           string `json:"text"`
	Format         string `json:"format"`
	MeanConfidence int    `json:"mean_confidence"`
	Pages          int    `json:"pages,omitempty"`
}

func (s *Server) handleOCRText(args json.RawMessage, progress interface{}) (interface{}, error) {
	var a ocrTextArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	format, err := ocr.ParseFormat(a.Format)
	if err != nil {
		return nil, err
	}
	if a.AllPages {
		return s.recognizeAllPages(&a, format)
	}

	req := ocr.ExtractRequest{Level: ocr.LevelBlock}
	return s.recognizePage(&a.pageArgs, req, progress, func(e *ocr.Engine, res *ocr.Result) (interface{}, error) {
		text := res.FullText
		if format != ocr.FormatText {
			if text, err = e.Text(format, 0); err != nil {
				return nil, err
			}
		}
		return &OCRTextResult{Text: text, Format: format.String(), MeanConfidence: res.MeanConfidence}, nil
	})
}

// recognizeAllPages hands a multi-page file to the library, which decodes
// and recognizes each page itself. Per-page options do not apply.
func (s *Server) recognizeAllPages(a *ocrTextArgs, format ocr.Format) (interface{}, error) {
	if format != ocr.FormatText {
		return nil, fmt.Errorf("all_pages supports only text format, got %s", format)
	}
	if a.Region != nil || a.NamedRegion != "" || a.Preprocess != nil {
		return nil, fmt.Errorf("all_pages does not accept region or preprocess")
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	path, err := filepath.Abs(a.Path)
	if err != nil {
		return nil, err
	}

	return s.withEngine(a.Language, func(e *ocr.Engine) (interface{}, error) {
		ctx, cancel := s.timeoutContext()
		defer cancel()
		text, err := e.ProcessPages(ctx, path, ocr.RenderText)
		if err != nil {
			return nil, err
		}
		return &OCRTextResult{
			Text:           text,
			Format:         format.String(),
			MeanConfidence: ocr.NoConfidence,
			Pages:          strings.Count(text, "\f") + 1,
		}, nil
	})
}

type ocrWordsArgs struct {
	pageArgs
	Level         string  `json:"level"`
	Details       bool    `json:"details"`
	MinConfidence float64 `json:"min_confidence"`
}

func (s *Server) handleOCRWords(args json.RawMessage, progress interface{}) (interface{}, error) {
	var a ocrWordsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	level, err := ocr.ParseLevel(a.Level)
	if err != nil {
		return nil, err
	}

	req := ocr.ExtractRequest{Level: level, WordDetails: a.Details}
	return s.recognizePage(&a.pageArgs, req, progress, func(_ *ocr.Engine, res *ocr.Result) (interface{}, error) {
		if a.MinConfidence > 0 {
			kept := res.Regions[:0]
			for _, r := range res.Regions {
				if r.Confidence >= a.MinConfidence {
					kept = append(kept, r)
				}
			}
			res.Regions = kept
		}
		return res, nil
	})
}

type ocrLayoutArgs struct {
	Path     string `json:"path"`
	Level    string `json:"level"`
	TextOnly *bool  `json:"text_only"`
}

func (s *Server) handleOCRLayout(args json.RawMessage) (interface{}, error) {
	var a ocrLayoutArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Level == "" {
		a.Level = "block"
	}
	level, err := ocr.ParseLevel(a.Level)
	if err != nil {
		return nil, err
	}
	textOnly := a.TextOnly == nil || *a.TextOnly

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return s.withLayoutEngine(func(e *ocr.Engine) (interface{}, error) {
		return ocr.DetectLayout(e, img, level, textOnly)
	})
}

type ocrHOCRArgs struct {
	pageArgs
	IncludeRaw bool `json:"include_raw"`
}

// OCRHOCRResult is returned by ocr_hocr.
type OCRHOCRResult struct {
	Document       *hocr.Document `json:"document"`
	MeanConfidence int            `json:"mean_confidence"`
	Raw            string         `json:"raw,omitempty"`
}

func (s *Server) handleOCRHOCR(args json.RawMessage, progress interface{}) (interface{}, error) {
	var a ocrHOCRArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	req := ocr.ExtractRequest{Level: ocr.LevelBlock}
	return s.recognizePage(&a.pageArgs, req, progress, func(e *ocr.Engine, res *ocr.Result) (interface{}, error) {
		raw, err := e.HOCRText(0)
		if err != nil {
			return nil, err
		}
		doc, err := hocr.ParseString(raw)
		if err != nil {
			return nil, err
		}
		out := &OCRHOCRResult{Document: doc, MeanConfidence: res.MeanConfidence}
		if a.IncludeRaw {
			out.Raw = raw
		}
		return out, nil
	})
}

// === Engine Handlers ===

type ocrInfoArgs struct {
	Language string `json:"language"`
}

// OCRInfoResult is returned by ocr_info.
type OCRInfoResult struct {
	Version            string   `json:"version"`
	DataPath           string   `json:"data_path,omitempty"`
	EngineMode         string   `json:"engine_mode"`
	InitLanguages      string   `json:"init_languages"`
	LoadedLanguages    []string `json:"loaded_languages"`
	AvailableLanguages []string `json:"available_languages"`
	PageSegMode        string   `json:"page_seg_mode"`
	Timeout            string   `json:"timeout"`
}

func (s *Server) handleOCRInfo(args json.RawMessage) (interface{}, error) {
	var a ocrInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.withEngine(a.Language, func(e *ocr.Engine) (interface{}, error) {
		info := &OCRInfoResult{
			Version:    ocr.Version(),
			DataPath:   s.cfg.Tessdata,
			EngineMode: s.cfg.EngineMode,
			Timeout:    s.cfg.Timeout.String(),
		}
		var err error
		if info.InitLanguages, err = e.InitLanguages(); err != nil {
			return nil, err
		}
		if info.LoadedLanguages, err = e.LoadedLanguages(); err != nil {
			return nil, err
		}
		if info.AvailableLanguages, err = e.AvailableLanguages(); err != nil {
			return nil, err
		}
		psm, err := e.PageSegMode()
		if err != nil {
			return nil, err
		}
		info.PageSegMode = ocr.PageSegModeName(psm)
		return info, nil
	})
}

type ocrVariableArgs struct {
	Name       string  `json:"name"`
	Value      *string `json:"value,omitempty"`
	ConfigFile string  `json:"config_file"`
	Language   string  `json:"language"`
}

// OCRVariableResult is returned by ocr_variable.
type OCRVariableResult struct {
	Name       string     `json:"name,omitempty"`
	ConfigFile string     `json:"config_file,omitempty"`
	Set        bool       `json:"set,omitempty"`
	Found      bool       `json:"found"`
	Value      *ocr.Value `json:"value,omitempty"`
	Global     bool       `json:"global,omitempty"`
	InitOnly   bool       `json:"init_only,omitempty"`
}

func (s *Server) handleOCRVariable(args json.RawMessage) (interface{}, error) {
	var a ocrVariableArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" && a.ConfigFile == "" {
		return nil, errors.New("name or config_file is required")
	}

	return s.withEngine(a.Language, func(e *ocr.Engine) (interface{}, error) {
		if a.ConfigFile != "" {
			if err := e.ReadConfigFile(a.ConfigFile, false); err != nil {
				return nil, err
			}
			if a.Name == "" {
				return &OCRVariableResult{ConfigFile: a.ConfigFile, Found: true}, nil
			}
		}

		name := ocr.VariableName(a.Name)
		out := &OCRVariableResult{
			Name:       a.Name,
			ConfigFile: a.ConfigFile,
			Global:     ocr.IsGlobalVariable(name),
			InitOnly:   ocr.KnownVariables[name].InitOnly,
		}
		if a.Value != nil {
			ok, err := e.SetVariable(name, *a.Value)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("unknown parameter %q", a.Name)
			}
			out.Set = true
		}
		v, found, err := e.Variable(name)
		if err != nil {
			return nil, err
		}
		out.Found = found
		if found {
			out.Value = &v
		}
		return out, nil
	})
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImagePreprocess(args json.RawMessage) (interface{}, error) {
	var a pageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, region, err := s.page(&a)
	if err != nil {
		return nil, err
	}
	if region != nil {
		if img, err = imaging.SubImage(img, *region); err != nil {
			return nil, err
		}
	}
	return imaging.EncodePNG(img)
}
