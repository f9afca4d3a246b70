package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// Bounds is a rectangle in pixel coordinates of the source image.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

func boundsOf(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// TextRegion is one element of the page with its recognized text.
type TextRegion struct {
	// Text is the recognized text content.
	Text string `json:"text"`

	// Confidence is the recognizer's confidence from 0.0 to 1.0.
	Confidence float64 `json:"confidence"`

	// Bounds is the box around the element in the source image.
	Bounds Bounds `json:"bounds"`

	// Dictionary is set when a word was found in the loaded dictionaries.
	Dictionary bool `json:"dictionary,omitempty"`

	// Numeric is set when a word is a number.
	Numeric bool `json:"numeric,omitempty"`

	// Language is the language the word was recognized in.
	Language string `json:"language,omitempty"`

	// Font is present only when the engine mode reports fonts.
	Font *FontAttributes `json:"font,omitempty"`
}

// Result holds the output of one extraction.
type Result struct {
	// FullText is all recognized text with the original spacing and newlines.
	FullText string `json:"full_text"`

	// MeanConfidence is 0-100, or NoConfidence when nothing was recognized.
	MeanConfidence int `json:"mean_confidence"`

	// Level names the granularity of Regions.
	Level string `json:"level"`

	// Regions are the elements at Level, in reading order. Empty elements
	// are skipped.
	Regions []TextRegion `json:"regions"`
}

// ExtractRequest describes what to recognize.
type ExtractRequest struct {
	// Region restricts recognition to part of the image. Nil means all of it.
	Region *image.Rectangle

	// Level is the granularity of Result.Regions. Zero is LevelBlock, so
	// callers normally set LevelWord.
	Level Level

	// Depth is the pixel layout the image is converted to. Zero means gray.
	Depth Depth

	// SourcePPI is the scan resolution; zero leaves the engine default.
	SourcePPI int

	// WordDetails adds dictionary, numeric, language and font fields to
	// word-level regions.
	WordDetails bool

	// Monitor receives progress; may be nil.
	Monitor *Monitor
}

// Extract runs recognition on img and collects text plus per-element
// results. Region bounds are always in the coordinates of img.
func Extract(ctx context.Context, e *Engine, img image.Image, req ExtractRequest) (*Result, error) {
	depth := req.Depth
	if depth == 0 {
		depth = DepthGray
	}

	// The native library wants an origin-anchored buffer; shift any region
	// into that space and shift boxes back at the end.
	origin := img.Bounds().Min
	buf, err := NewImageBuffer(img, depth)
	if err != nil {
		return nil, err
	}
	if err := e.SetImage(buf); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if req.Region != nil {
		if err := e.SetRectangle(req.Region.Sub(origin)); err != nil {
			return nil, err
		}
	}
	if req.SourcePPI > 0 {
		if err := e.SetSourceResolution(req.SourcePPI); err != nil {
			return nil, err
		}
	}
	if err := e.Recognize(ctx, req.Monitor); err != nil {
		return nil, err
	}

	text, err := e.UTF8Text()
	if err != nil {
		return nil, err
	}
	mean, err := e.MeanConfidence()
	if err != nil {
		return nil, err
	}

	regions, err := collectRegions(e, req.Level, req.WordDetails, origin)
	if err != nil {
		return nil, err
	}
	return &Result{
		FullText:       text,
		MeanConfidence: mean,
		Level:          LevelName(req.Level),
		Regions:        regions,
	}, nil
}

func collectRegions(e *Engine, level Level, details bool, origin image.Point) ([]TextRegion, error) {
	it, err := e.Iterator()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	regions := []TextRegion{}
	for {
		text, err := it.Text(level)
		if err != nil {
			return nil, err
		}
		box, ok, err := it.BoundingBox(level)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if ok && text != "" {
			conf, err := it.Confidence(level)
			if err != nil {
				return nil, err
			}
			region := TextRegion{
				Text:       text,
				Confidence: float64(conf) / 100.0,
				Bounds:     boundsOf(box.Add(origin)),
			}
			if details && level == LevelWord {
				if err := addWordDetails(it, &region); err != nil {
					return nil, err
				}
			}
			regions = append(regions, region)
		}
		more, err := it.Next(level)
		if err != nil {
			return nil, err
		}
		if !more {
			return regions, nil
		}
	}
}

func addWordDetails(it *ResultIterator, region *TextRegion) error {
	var err error
	if region.Dictionary, err = it.WordIsFromDictionary(); err != nil {
		return err
	}
	if region.Numeric, err = it.WordIsNumeric(); err != nil {
		return err
	}
	if region.Language, err = it.RecognitionLanguage(); err != nil {
		return err
	}
	font, ok, err := it.FontAttributes()
	if err != nil {
		return err
	}
	if ok {
		region.Font = &font
	}
	return nil
}

// LayoutRegion is a block found by layout analysis, without text.
type LayoutRegion struct {
	Bounds      Bounds          `json:"bounds"`
	BlockType   string          `json:"block_type"`
	IsText      bool            `json:"is_text"`
	Orientation OrientationInfo `json:"orientation"`
}

// LayoutResult lists the blocks found by AnalyseLayout.
type LayoutResult struct {
	Regions []LayoutRegion `json:"regions"`
	Count   int            `json:"count"`
}

// DetectLayout runs page segmentation only, which is much faster than
// recognition, and returns the blocks at level. With textOnly, image,
// line and noise blocks are dropped.
func DetectLayout(e *Engine, img image.Image, level Level, textOnly bool) (*LayoutResult, error) {
	origin := img.Bounds().Min
	buf, err := NewImageBuffer(img, DepthGray)
	if err != nil {
		return nil, err
	}
	if err := e.SetImage(buf); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	regions := []LayoutRegion{}
	it, err := e.AnalyseLayout()
	if errors.Is(err, ErrNoResults) {
		// An empty page has no blocks.
		return &LayoutResult{Regions: regions}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to analyse layout: %w", err)
	}
	defer it.Close()

	for {
		box, ok, err := it.BoundingBox(level)
		if err != nil {
			return nil, err
		}
		if ok {
			bt, err := it.BlockType()
			if err != nil {
				return nil, err
			}
			orient, err := it.Orientation()
			if err != nil {
				return nil, err
			}
			if !textOnly || bt.IsText() {
				regions = append(regions, LayoutRegion{
					Bounds:      boundsOf(box.Add(origin)),
					BlockType:   bt.String(),
					IsText:      bt.IsText(),
					Orientation: orient,
				})
			}
		}
		more, err := it.Next(level)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return &LayoutResult{Regions: regions, Count: len(regions)}, nil
}
