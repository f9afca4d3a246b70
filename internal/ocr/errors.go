package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrNativeUnavailable is returned when the native library cannot
	// create an API instance.
	ErrNativeUnavailable = errors.New("tesseract native library unavailable")

	// ErrClosed is returned for any call on an Engine after Close.
	ErrClosed = errors.New("engine is closed")

	// ErrNotInitialized is returned for operations that need a successful Init.
	ErrNotInitialized = errors.New("engine is not initialized")

	// ErrNoImage is returned by recognition and text getters before SetImage.
	ErrNoImage = errors.New("no image set")

	// ErrRectangle is returned when a rectangle does not lie inside the image.
	ErrRectangle = errors.New("rectangle outside image bounds")

	// ErrStaleIterator is returned when an iterator's parent result has been
	// replaced or released.
	ErrStaleIterator = errors.New("iterator invalidated by a change to its engine")

	// ErrIteratorClosed is returned for calls on an iterator after Close.
	ErrIteratorClosed = errors.New("iterator is closed")

	// ErrCancelled matches recognition that stopped on context cancellation
	// or deadline.
	ErrCancelled = errors.New("recognition cancelled")

	// ErrConcurrentUse is returned when a second goroutine enters an Engine
	// that is already executing a call.
	ErrConcurrentUse = errors.New("engine used concurrently from multiple goroutines")

	// ErrConfigNotFound is returned when a config file is not found in any
	// of the searched locations.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrNoResults is returned when the native library yields no result
	// structure to iterate.
	ErrNoResults = errors.New("no recognition results")

	// ErrInvalidImage is returned for malformed image buffers.
	ErrInvalidImage = errors.New("invalid image buffer")

	// ErrLayoutOnly is returned for recognition on an engine prepared by
	// InitForAnalysePage.
	ErrLayoutOnly = errors.New("engine initialized for layout analysis only")
)

// InitError describes a failed Init. The engine remains safe to Clear, End
// and Close afterwards.
type InitError struct {
	DataPath  string
	Languages string
	Mode      EngineMode
	// Missing lists required languages whose traineddata was not found.
	Missing []string
	Err     error
}

func (e *InitError) Error() string {
	msg := fmt.Sprintf("tesseract init failed (datapath=%q languages=%q mode=%s)", e.DataPath, e.Languages, e.Mode)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(": missing language data %v", e.Missing)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InitError) Unwrap() error { return e.Err }

// RecognitionError reports a failed or cancelled Recognize. An image that
// simply contains no text is not an error.
type RecognitionError struct {
	// Code is the native return value.
	Code int
	// Cancelled is set when the monitor stopped recognition.
	Cancelled bool
	Err       error
}

func (e *RecognitionError) Error() string {
	if e.Cancelled {
		if e.Err != nil {
			return "recognition cancelled: " + e.Err.Error()
		}
		return "recognition cancelled"
	}
	if e.Err != nil {
		return fmt.Sprintf("recognition failed (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("recognition failed (code %d)", e.Code)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCancelled) match a cancelled recognition.
func (e *RecognitionError) Is(target error) bool {
	return target == ErrCancelled && e.Cancelled
}
