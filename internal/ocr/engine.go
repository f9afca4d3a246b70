package ocr

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateImageSet
	stateRecognized
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	case stateImageSet:
		return "image_set"
	case stateRecognized:
		return "recognized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// InitOptions binds a data path, language set and engine mode to an Engine.
type InitOptions struct {
	// DataPath is the tessdata directory or its parent. Empty uses the
	// library default (TESSDATA_PREFIX or the compiled-in path).
	DataPath string

	// Languages to load. Empty means DefaultLanguage.
	Languages LanguageSpec

	// Mode selects the recognizer. The zero value is OEMTesseractOnly, which
	// needs legacy traineddata; most installs want OEMDefault.
	Mode EngineMode

	// Configs are config file names applied during Init, searched the same
	// way ReadConfigFile searches.
	Configs []string

	// Variables are set during Init, which is the only way to set init-only
	// parameters such as load_system_dawg.
	Variables map[string]string
}

// DefaultInitOptions returns options for English with the default engine mode.
func DefaultInitOptions() InitOptions {
	return InitOptions{Languages: MustLanguages(DefaultLanguage), Mode: OEMDefault}
}

// Option configures an Engine at creation.
type Option func(*options)

type options struct {
	logger  logrus.FieldLogger
	backend nativeBackend
}

// WithLogger sets the logger for lifecycle events. Defaults to the logrus
// standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func withBackend(b nativeBackend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// tracked is an outstanding native iterator owned by an Engine.
type tracked interface {
	releaseNative()
}

// Engine owns one native Tesseract instance.
//
// The lifecycle is New → Init → SetImage → Recognize → getters, with Clear,
// End and Close releasing progressively more. Recognition results and every
// iterator derived from them belong to a generation; any call that replaces
// or releases the results starts a new generation and frees the old
// iterators, so a stale iterator fails with ErrStaleIterator instead of
// touching freed native memory.
//
// An Engine must be used from one goroutine at a time. Separate Engines are
// independent and may run in parallel, except for the process-wide
// parameters listed by IsGlobalVariable: setting one of those on any Engine
// changes it for all of them.
type Engine struct {
	*core
}

// core is the state iterators point back to. It is kept apart from Engine
// so that live iterators do not keep the finalized object reachable.
type core struct {
	api nativeAPI
	log logrus.FieldLogger

	busy   atomic.Bool
	closed bool
	state  state
	gen    uint64

	// paramsReady is set once the native parameter block exists, which is
	// after a successful Init or any SetVariable/SetPageSegMode call.
	paramsReady bool
	dataPath    string
	// layoutOnly is set by InitForAnalysePage: no language data is loaded.
	layoutOnly bool

	img    *ImageBuffer
	pinner *runtime.Pinner
	rect   image.Rectangle

	iters   map[tracked]struct{}
	pending []Setting
}

// New creates an uninitialized Engine. Only variables and the page
// segmentation mode may be set before Init.
func New(opts ...Option) (*Engine, error) {
	o := options{logger: logrus.StandardLogger(), backend: backend}
	for _, opt := range opts {
		opt(&o)
	}

	api, err := o.backend.newAPI()
	if err != nil {
		return nil, err
	}

	e := &Engine{core: &core{
		api:   api,
		log:   o.logger,
		iters: make(map[tracked]struct{}),
	}}
	runtime.SetFinalizer(e, (*Engine).finalize)
	return e, nil
}

// Open creates and initializes an Engine. If Init fails the native handle is
// released before the error is returned.
func Open(init InitOptions, opts ...Option) (*Engine, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.Init(init); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) finalize() {
	if e.closed {
		return
	}
	e.log.Warn("ocr: engine garbage collected without Close; releasing native handle")
	e.closeNative()
}

func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrConcurrentUse
	}
	if e.closed {
		e.busy.Store(false)
		return ErrClosed
	}
	return nil
}

func (e *Engine) leave() {
	e.busy.Store(false)
}

// invalidate starts a new result generation and frees every outstanding
// iterator of the previous one.
func (e *core) invalidate() {
	e.gen++
	for it := range e.iters {
		it.releaseNative()
	}
	clear(e.iters)
}

func (e *core) releaseImage() {
	if e.pinner != nil {
		e.pinner.Unpin()
		e.pinner = nil
	}
	e.img = nil
	e.rect = image.Rectangle{}
}

func (e *Engine) requireInit() error {
	if e.state == stateUninitialized {
		return ErrNotInitialized
	}
	return nil
}

func (e *Engine) requireImage() error {
	if err := e.requireInit(); err != nil {
		return err
	}
	if e.state < stateImageSet {
		return ErrNoImage
	}
	return nil
}

func (e *Engine) requireParams() error {
	if e.state == stateUninitialized && !e.paramsReady {
		return ErrNotInitialized
	}
	return nil
}

// Init loads language data and prepares the engine for recognition. Calling
// Init on an initialized engine tears it down first, so every variable set
// since the previous Init returns to its default before the new options are
// applied. Values deferred by ReadConfigFile(path, true) are applied here.
func (e *Engine) Init(opts InitOptions) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if e.state != stateUninitialized {
		e.teardown()
	} else {
		e.invalidate()
	}

	lang := opts.Languages.String()
	if opts.DataPath != "" {
		if missing := missingLanguages(opts.DataPath, opts.Languages); len(missing) > 0 {
			return &InitError{DataPath: opts.DataPath, Languages: lang, Mode: opts.Mode, Missing: missing}
		}
	}

	vars := e.pending
	e.pending = nil
	names := make([]string, 0, len(opts.Variables))
	for name := range opts.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		vars = append(vars, Setting{Name: name, Value: opts.Variables[name]})
	}

	configs := make([]string, len(opts.Configs))
	for i, c := range opts.Configs {
		configs[i] = e.resolveConfig(opts.DataPath, c)
	}

	if code := e.api.init(opts.DataPath, lang, opts.Mode, configs, vars); code != 0 {
		e.state = stateUninitialized
		e.paramsReady = false
		e.log.WithFields(logrus.Fields{
			"datapath":  opts.DataPath,
			"languages": lang,
			"code":      code,
		}).Debug("ocr: init failed")
		return &InitError{
			DataPath:  opts.DataPath,
			Languages: lang,
			Mode:      opts.Mode,
			Err:       fmt.Errorf("native init returned %d", code),
		}
	}

	e.state = stateInitialized
	e.paramsReady = true
	e.layoutOnly = false
	e.dataPath = opts.DataPath
	e.log.WithFields(logrus.Fields{
		"datapath":  opts.DataPath,
		"languages": lang,
		"mode":      int(opts.Mode),
	}).Debug("ocr: engine initialized")
	return nil
}

// InitForAnalysePage prepares the engine for AnalyseLayout without loading
// any language data. Recognition and the text getters then fail with
// ErrLayoutOnly until a full Init. An initialized engine is ended first;
// values queued for Init stay queued.
func (e *Engine) InitForAnalysePage() error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if e.state != stateUninitialized {
		e.teardown()
	} else {
		e.invalidate()
	}
	e.api.initForAnalysePage()
	e.state = stateInitialized
	e.paramsReady = true
	e.layoutOnly = true
	e.log.Debug("ocr: engine initialized for layout analysis")
	return nil
}

// teardown is End without the busy guard.
func (e *Engine) teardown() {
	e.invalidate()
	e.api.end()
	e.releaseImage()
	e.state = stateUninitialized
	e.paramsReady = false
	e.layoutOnly = false
}

// End releases everything the native instance holds, including language
// data and variables. The Engine may be initialized again afterwards.
// End is safe to call after a failed Init.
func (e *Engine) End() error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	e.teardown()
	e.pending = nil
	e.log.Debug("ocr: engine ended")
	return nil
}

// Clear drops the image and recognition results but keeps language data
// loaded, which is much cheaper than End followed by Init.
func (e *Engine) Clear() error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	e.invalidate()
	e.api.clear()
	e.releaseImage()
	if e.state > stateInitialized {
		e.state = stateInitialized
	}
	return nil
}

// Close ends the engine and frees the native handle. It is safe to call
// more than once; every later call on the Engine returns ErrClosed.
func (e *Engine) Close() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrConcurrentUse
	}
	defer e.leave()

	if e.closed {
		return nil
	}
	e.closeNative()
	runtime.SetFinalizer(e, nil)
	e.log.Debug("ocr: engine closed")
	return nil
}

func (e *core) closeNative() {
	e.invalidate()
	e.api.end()
	e.api.release()
	e.releaseImage()
	e.closed = true
	e.state = stateUninitialized
	e.paramsReady = false
}

// Initialized reports whether the last Init succeeded and no End followed.
func (e *Engine) Initialized() bool {
	return !e.closed && e.state != stateUninitialized
}

// SetPageSegMode sets the segmentation mode used by later recognition. It
// is stored as the tessedit_pageseg_mode variable, so a re-Init resets it.
func (e *Engine) SetPageSegMode(mode PageSegMode) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if mode < PSMOSDOnly || mode > PSMRawLine {
		return fmt.Errorf("invalid page segmentation mode %d", int(mode))
	}
	e.api.setPageSegMode(mode)
	e.paramsReady = true
	if e.state == stateUninitialized {
		e.queue(string(VarPageSegMode), strconv.Itoa(int(mode)))
	}
	return nil
}

// PageSegMode returns the current segmentation mode.
func (e *Engine) PageSegMode() (PageSegMode, error) {
	if err := e.enter(); err != nil {
		return PSMSingleBlock, err
	}
	defer e.leave()
	if q, ok := e.queued(VarPageSegMode); ok {
		if n, err := strconv.Atoi(q); err == nil {
			return PageSegMode(n), nil
		}
	}
	return e.api.pageSegMode(), nil
}

// InitLanguages returns the language string of the last successful Init,
// without languages loaded implicitly as dependencies.
func (e *Engine) InitLanguages() (string, error) {
	if err := e.enter(); err != nil {
		return "", err
	}
	defer e.leave()

	if err := e.requireInit(); err != nil {
		return "", err
	}
	return e.api.initLanguages(), nil
}

// LoadedLanguages returns every language the last Init loaded, including
// dependencies.
func (e *Engine) LoadedLanguages() ([]string, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	if err := e.requireInit(); err != nil {
		return nil, err
	}
	return e.api.loadedLanguages(), nil
}

// AvailableLanguages lists the traineddata files found in the data path of
// the last Init.
func (e *Engine) AvailableLanguages() ([]string, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	if err := e.requireInit(); err != nil {
		return nil, err
	}
	return e.api.availableLanguages(), nil
}

// ClearAdaptiveClassifier forgets what the classifier adapted to on earlier
// pages. Call between unrelated documents.
func (e *Engine) ClearAdaptiveClassifier() error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if err := e.requireInit(); err != nil {
		return err
	}
	e.api.clearAdaptiveClassifier()
	return nil
}

// Recognize runs recognition on the current image and rectangle. ctx is
// polled while recognition runs; if it is cancelled or its deadline passes
// the call returns a *RecognitionError matching ErrCancelled and no results
// are kept. mon may be nil.
func (e *Engine) Recognize(ctx context.Context, mon *Monitor) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if err := e.requireImage(); err != nil {
		return err
	}
	return e.recognize(ctx, mon)
}

func (e *Engine) recognize(ctx context.Context, mon *Monitor) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.layoutOnly {
		return ErrLayoutOnly
	}
	e.invalidate()
	e.state = stateImageSet

	if err := ctx.Err(); err != nil {
		return &RecognitionError{Cancelled: true, Err: err}
	}

	var ms *monitorState
	if mon != nil || ctx.Done() != nil {
		ms = newMonitorState(ctx, mon)
	}

	code := e.api.recognize(ms)
	if ms != nil {
		if stopped, cause := ms.stopped(); stopped {
			// Whatever the native pass left behind is partial.
			e.invalidate()
			return &RecognitionError{Code: code, Cancelled: true, Err: cause}
		}
	}
	if code != 0 {
		return &RecognitionError{Code: code}
	}
	e.state = stateRecognized
	return nil
}

// ensureRecognized runs recognition when the current image or rectangle has
// no results yet. Getters use it, so they never see stale results.
func (e *Engine) ensureRecognized() error {
	if err := e.requireImage(); err != nil {
		return err
	}
	if e.state == stateRecognized {
		return nil
	}
	return e.recognize(context.Background(), nil)
}
