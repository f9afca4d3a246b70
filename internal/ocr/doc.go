// Package ocr binds the Tesseract C API (tesseract/capi.h) for in-process
// text recognition.
//
// An Engine owns one native Tesseract instance and moves through the states
// uninitialized → initialized → image set → recognized:
//
//	e, err := ocr.Open(ocr.DefaultInitOptions())
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	buf, err := ocr.NewImageBuffer(img, ocr.DepthGray)
//	...
//	if err := e.SetImage(buf); err != nil { ... }
//	if err := e.Recognize(ctx, nil); err != nil { ... }
//	text, err := e.UTF8Text()
//
// Text getters recognize on demand, so Recognize is only needed to pass a
// context or a Monitor.
//
// # Prerequisites
//
// The package links against libtesseract (version 4 or 5) with cgo:
//   - Ubuntu/Debian: apt-get install libtesseract-dev tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Language data is read from the DataPath given to Init, or from
// TESSDATA_PREFIX when DataPath is empty. InitForAnalysePage skips language
// data entirely and supports only AnalyseLayout.
//
// Variables and the segmentation mode may be set before Init; they are held
// and handed to Init, which starts from fresh defaults otherwise.
//
// # Memory
//
// Image buffers are shared with the native library, not copied: the Pix
// slice is pinned from SetImage until the next SetImage, Clear, End or
// Close, and must not be modified in between. Every string and array the
// library allocates is copied into Go memory and freed before the call
// returns.
//
// Iterators hold native memory. Close them when done. Any call that changes
// the engine's results (SetImage, SetRectangle, Recognize, AnalyseLayout,
// ProcessPages, Init, Clear, End, Close) frees all outstanding iterators;
// later calls on them return ErrStaleIterator rather than reading freed
// memory.
//
// # Concurrency
//
// An Engine is not safe for concurrent use. A call that overlaps another on
// the same Engine returns ErrConcurrentUse. Run one Engine per goroutine for
// parallel recognition; see IsGlobalVariable for the parameters that are
// nevertheless shared by every Engine in the process.
//
// Recognition is cancelled cooperatively through the context passed to
// Recognize. A context deadline also becomes the native deadline.
package ocr
