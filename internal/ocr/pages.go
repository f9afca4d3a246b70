package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RenderFormat selects what ProcessPages produces for each page.
type RenderFormat int

// Render formats.
const (
	RenderText RenderFormat = iota
	RenderHOCR
	RenderTSV
)

// Extension is the suffix the native renderer appends to its output base.
func (f RenderFormat) Extension() string {
	switch f {
	case RenderHOCR:
		return "hocr"
	case RenderTSV:
		return "tsv"
	}
	return "txt"
}

func (f RenderFormat) String() string {
	switch f {
	case RenderText:
		return "text"
	case RenderHOCR:
		return "hocr"
	case RenderTSV:
		return "tsv"
	}
	return fmt.Sprintf("RenderFormat(%d)", int(f))
}

// ProcessPages recognizes every page of the image file at path, which may
// be a multi-page TIFF or a text file listing one image per line, and
// returns the rendered output of all pages. The library reads the file
// itself, so any format its image loader supports is accepted.
//
// The current image and results are released first. A deadline on ctx
// becomes the native per-page timeout; cancellation is only observed
// before the run starts.
func (e *Engine) ProcessPages(ctx context.Context, path string, format RenderFormat) (string, error) {
	if err := e.enter(); err != nil {
		return "", err
	}
	defer e.leave()

	if err := e.requireInit(); err != nil {
		return "", err
	}
	if e.layoutOnly {
		return "", ErrLayoutOnly
	}
	if format < RenderText || format > RenderTSV {
		return "", fmt.Errorf("invalid render format %d", int(format))
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", &RecognitionError{Cancelled: true, Err: err}
	}
	timeout := 0
	if dl, ok := ctx.Deadline(); ok {
		timeout = int(time.Until(dl) / time.Millisecond)
		if timeout <= 0 {
			return "", &RecognitionError{Cancelled: true, Err: context.DeadlineExceeded}
		}
	}

	dir, err := os.MkdirTemp("", "tess-pages-")
	if err != nil {
		return "", fmt.Errorf("output directory: %w", err)
	}
	defer os.RemoveAll(dir)
	base := filepath.Join(dir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	e.invalidate()
	e.api.clear()
	e.releaseImage()
	e.state = stateInitialized

	e.log.WithFields(logrus.Fields{
		"path":   path,
		"format": format.String(),
	}).Debug("ocr: processing pages")

	ok := e.api.processPages(path, base, format, timeout)
	// The library keeps the last page as its image; it has no Go owner.
	e.api.clear()
	if !ok {
		return "", &RecognitionError{Code: -1, Err: fmt.Errorf("processing pages of %s failed", path)}
	}

	out, err := os.ReadFile(base + "." + format.Extension())
	if err != nil {
		return "", fmt.Errorf("reading rendered output: %w", err)
	}
	return string(out), nil
}

// ThresholdScaleFactor returns the factor between the image the thresholder
// produced and the input, or 0 before the image has been thresholded.
func (e *Engine) ThresholdScaleFactor() (int, error) {
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.leave()
	if err := e.requireImage(); err != nil {
		return 0, err
	}
	return e.api.thresholdScaleFactor(), nil
}
