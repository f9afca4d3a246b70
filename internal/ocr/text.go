package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/text/encoding/charmap"
)

// NoConfidence is returned by MeanConfidence when no words were recognized.
const NoConfidence = -1

// Format selects a text rendering of recognition results.
type Format int

const (
	FormatText Format = iota
	FormatHOCR
	FormatBox
	FormatUNLV
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatHOCR:
		return "hocr"
	case FormatBox:
		return "box"
	case FormatUNLV:
		return "unlv"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat parses a format name as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "utf8":
		return FormatText, nil
	case "hocr":
		return FormatHOCR, nil
	case "box":
		return FormatBox, nil
	case "unlv":
		return FormatUNLV, nil
	}
	return FormatText, fmt.Errorf("unknown output format %q", s)
}

// Text returns the results in the given format, recognizing first if the
// current image has no results. page is the zero-based page number written
// into hOCR and box output and is ignored by the other formats.
func (e *Engine) Text(format Format, page int) (string, error) {
	if err := e.enter(); err != nil {
		return "", err
	}
	defer e.leave()
	return e.text(format, page)
}

func (e *Engine) text(format Format, page int) (string, error) {
	if page < 0 {
		return "", fmt.Errorf("invalid page number %d", page)
	}
	if err := e.ensureRecognized(); err != nil {
		return "", err
	}

	var (
		s  string
		ok bool
	)
	switch format {
	case FormatText:
		s, ok = e.api.utf8Text()
	case FormatHOCR:
		s, ok = e.api.hocrText(page)
	case FormatBox:
		s, ok = e.api.boxText(page)
	case FormatUNLV:
		var raw []byte
		if raw, ok = e.api.unlvText(); ok {
			decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
			if err != nil {
				return "", fmt.Errorf("decode unlv text: %w", err)
			}
			s = string(decoded)
		}
	default:
		return "", fmt.Errorf("unknown output format %d", int(format))
	}
	if !ok {
		return "", &RecognitionError{Code: -1, Err: fmt.Errorf("no %s output", format)}
	}
	return s, nil
}

// UTF8Text returns the recognized text as UTF-8.
func (e *Engine) UTF8Text() (string, error) {
	return e.Text(FormatText, 0)
}

// HOCRText returns an hOCR fragment for the given zero-based page.
func (e *Engine) HOCRText(page int) (string, error) {
	return e.Text(FormatHOCR, page)
}

// BoxText returns box-file lines, one per symbol, for the given page.
func (e *Engine) BoxText(page int) (string, error) {
	return e.Text(FormatBox, page)
}

// UNLVText returns the UNLV rendering decoded from Latin-1 to UTF-8.
func (e *Engine) UNLVText() (string, error) {
	return e.Text(FormatUNLV, 0)
}

// UNLVBytes returns the UNLV rendering exactly as the library produced it,
// in Latin-1.
func (e *Engine) UNLVBytes() ([]byte, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := e.ensureRecognized(); err != nil {
		return nil, err
	}
	raw, ok := e.api.unlvText()
	if !ok {
		return nil, &RecognitionError{Code: -1, Err: fmt.Errorf("no %s output", FormatUNLV)}
	}
	return raw, nil
}

// WordConfidences returns one confidence in [0, 100] per recognized word, in
// reading order. The slice is empty, not nil, for an image without words.
func (e *Engine) WordConfidences() ([]int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := e.ensureRecognized(); err != nil {
		return nil, err
	}
	confs := e.api.allWordConfidences()
	if confs == nil {
		confs = []int{}
	}
	return confs, nil
}

// MeanConfidence returns the mean word confidence in [0, 100], or
// NoConfidence when nothing was recognized.
func (e *Engine) MeanConfidence() (int, error) {
	if err := e.enter(); err != nil {
		return NoConfidence, err
	}
	defer e.leave()
	if err := e.ensureRecognized(); err != nil {
		return NoConfidence, err
	}
	if len(e.api.allWordConfidences()) == 0 {
		return NoConfidence, nil
	}
	c := e.api.meanTextConf()
	if c < 0 {
		c = 0
	} else if c > 100 {
		c = 100
	}
	return c, nil
}

// IsValidWord reports whether word is in the loaded dictionaries. Any
// nonzero native answer counts as valid.
func (e *Engine) IsValidWord(word string) (bool, error) {
	if err := e.enter(); err != nil {
		return false, err
	}
	defer e.leave()
	if err := e.requireInit(); err != nil {
		return false, err
	}
	return e.api.isValidWord(word) != 0, nil
}

// TextDirection is the estimated baseline of the recognized text: the
// baseline passes through (0, Offset) with the given Slope.
type TextDirection struct {
	Offset int     `json:"offset"`
	Slope  float32 `json:"slope"`
}

// TextDirection returns the text baseline estimate. ok is false when the
// library could not estimate one.
func (e *Engine) TextDirection() (dir TextDirection, ok bool, err error) {
	if err := e.enter(); err != nil {
		return TextDirection{}, false, err
	}
	defer e.leave()
	if err := e.ensureRecognized(); err != nil {
		return TextDirection{}, false, err
	}
	off, slope, ok := e.api.textDirection()
	return TextDirection{Offset: off, Slope: slope}, ok, nil
}

// RecognizeImage sets buf, restricts recognition to rect when it is non-nil,
// recognizes under ctx and returns the UTF-8 text.
func (e *Engine) RecognizeImage(ctx context.Context, buf *ImageBuffer, rect *image.Rectangle) (string, error) {
	if err := e.enter(); err != nil {
		return "", err
	}
	defer e.leave()

	if err := e.setImage(buf); err != nil {
		return "", err
	}
	if rect != nil {
		if err := e.setRectangle(*rect); err != nil {
			return "", err
		}
	}
	if err := e.recognize(ctx, nil); err != nil {
		return "", err
	}
	return e.text(FormatText, 0)
}

// Words walks the results at level and returns each element's text, box and
// confidence. Elements without a box or text are skipped.
func (e *Engine) Words(level Level) ([]gosseract.BoundingBox, error) {
	if !validLevel(level) {
		return nil, fmt.Errorf("invalid iterator level %d", int(level))
	}
	it, err := e.Iterator()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	boxes := []gosseract.BoundingBox{}
	for {
		text, err := it.Text(level)
		if err != nil {
			return nil, err
		}
		box, ok, err := it.BoundingBox(level)
		if err != nil {
			return nil, err
		}
		conf, err := it.Confidence(level)
		if err != nil {
			return nil, err
		}
		if ok && strings.TrimSpace(text) != "" {
			boxes = append(boxes, gosseract.BoundingBox{
				Box:        box,
				Word:       strings.TrimSpace(text),
				Confidence: float64(conf),
			})
		}
		more, err := it.Next(level)
		if err != nil {
			return nil, err
		}
		if !more {
			return boxes, nil
		}
	}
}
