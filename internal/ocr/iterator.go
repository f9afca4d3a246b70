package ocr

import (
	"fmt"
	"image"
)

// FontAttributes describes the font of the word under a ResultIterator.
// Only the legacy engine reports fonts; LSTM results have none.
type FontAttributes struct {
	FontName   string `json:"font_name"`
	Bold       bool   `json:"bold"`
	Italic     bool   `json:"italic"`
	Underlined bool   `json:"underlined"`
	Monospace  bool   `json:"monospace"`
	Serif      bool   `json:"serif"`
	SmallCaps  bool   `json:"small_caps"`
	PointSize  int    `json:"point_size"`
	FontID     int    `json:"font_id"`
}

// iterBase ties an iterator to the engine generation that produced it.
type iterBase struct {
	engine   *core
	gen      uint64
	closed   bool
	released bool
}

func (b *iterBase) valid() error {
	if b.closed {
		return ErrIteratorClosed
	}
	if b.released || b.engine.closed || b.gen != b.engine.gen {
		return ErrStaleIterator
	}
	return nil
}

// PageIterator walks the layout of the current results: blocks, paragraphs,
// lines, words and symbols. It stays valid until the engine's results
// change; after that every method returns ErrStaleIterator. Close releases
// the native iterator and is safe to call more than once.
type PageIterator struct {
	iterBase
	native nativePageIterator
	// owner is set for a borrowed view of a ResultIterator.
	owner *ResultIterator
}

func (e *core) trackPage(n nativePageIterator) *PageIterator {
	it := &PageIterator{iterBase: iterBase{engine: e, gen: e.gen}, native: n}
	e.iters[it] = struct{}{}
	return it
}

// AnalyseLayout runs page segmentation without recognition and returns an
// iterator over the layout. Existing results are invalidated.
func (e *Engine) AnalyseLayout() (*PageIterator, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := e.requireImage(); err != nil {
		return nil, err
	}

	e.invalidate()
	e.state = stateImageSet
	n := e.api.analyseLayout()
	if n == nil {
		return nil, ErrNoResults
	}
	return e.trackPage(n), nil
}

func (p *PageIterator) check() error {
	if p.owner != nil {
		if p.closed {
			return ErrIteratorClosed
		}
		return p.owner.check()
	}
	return p.valid()
}

func (p *PageIterator) releaseNative() {
	if p.released {
		return
	}
	p.native.release()
	p.released = true
}

// Close releases the iterator. Closing a borrowed view only detaches it.
func (p *PageIterator) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.owner != nil {
		return nil
	}
	if !p.released {
		p.releaseNative()
		delete(p.engine.iters, p)
	}
	return nil
}

// Copy returns an independent iterator at the same position.
func (p *PageIterator) Copy() (*PageIterator, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return p.engine.trackPage(p.native.copy()), nil
}

// Begin moves to the first element of the page.
func (p *PageIterator) Begin() error {
	if err := p.check(); err != nil {
		return err
	}
	p.native.begin()
	return nil
}

// Next moves to the start of the next element at level. It returns false at
// the end of the page.
func (p *PageIterator) Next(level Level) (bool, error) {
	if err := checkLevel(level); err != nil {
		return false, err
	}
	if err := p.check(); err != nil {
		return false, err
	}
	return p.native.next(level), nil
}

// IsAtBeginningOf reports whether the iterator is at the first element of
// the enclosing element at level.
func (p *PageIterator) IsAtBeginningOf(level Level) (bool, error) {
	if err := checkLevel(level); err != nil {
		return false, err
	}
	if err := p.check(); err != nil {
		return false, err
	}
	return p.native.isAtBeginningOf(level), nil
}

// IsAtFinalElement reports whether the current element is the last of its
// kind (element) inside the enclosing level.
func (p *PageIterator) IsAtFinalElement(level, element Level) (bool, error) {
	if err := checkLevel(level); err != nil {
		return false, err
	}
	if err := checkLevel(element); err != nil {
		return false, err
	}
	if err := p.check(); err != nil {
		return false, err
	}
	return p.native.isAtFinalElement(level, element), nil
}

// BoundingBox returns the box of the current element at level in image
// coordinates. ok is false when there is no element.
func (p *PageIterator) BoundingBox(level Level) (r image.Rectangle, ok bool, err error) {
	if err := checkLevel(level); err != nil {
		return image.Rectangle{}, false, err
	}
	if err := p.check(); err != nil {
		return image.Rectangle{}, false, err
	}
	left, top, right, bottom, ok := p.native.boundingBox(level)
	if !ok {
		return image.Rectangle{}, false, nil
	}
	return image.Rect(left, top, right, bottom), true, nil
}

// Baseline returns the endpoints of the baseline of the current element.
func (p *PageIterator) Baseline(level Level) (from, to image.Point, ok bool, err error) {
	if err := checkLevel(level); err != nil {
		return image.Point{}, image.Point{}, false, err
	}
	if err := p.check(); err != nil {
		return image.Point{}, image.Point{}, false, err
	}
	x1, y1, x2, y2, ok := p.native.baseline(level)
	if !ok {
		return image.Point{}, image.Point{}, false, nil
	}
	return image.Pt(x1, y1), image.Pt(x2, y2), true, nil
}

// BlockType returns the layout class of the current block.
func (p *PageIterator) BlockType() (BlockType, error) {
	if err := p.check(); err != nil {
		return BlockUnknown, err
	}
	return p.native.blockType(), nil
}

// Orientation returns the orientation of the current block.
func (p *PageIterator) Orientation() (OrientationInfo, error) {
	if err := p.check(); err != nil {
		return OrientationInfo{}, err
	}
	return p.native.orientation(), nil
}

func checkLevel(level Level) error {
	if !validLevel(level) {
		return fmt.Errorf("invalid iterator level %d", int(level))
	}
	return nil
}

// ResultIterator walks recognition results with access to text and
// confidence. Navigation methods behave as on PageIterator.
type ResultIterator struct {
	iterBase
	native nativeResultIterator
	nav    *PageIterator
}

func (e *core) trackResult(n nativeResultIterator) *ResultIterator {
	it := &ResultIterator{iterBase: iterBase{engine: e, gen: e.gen}, native: n}
	it.nav = it.view()
	e.iters[it] = struct{}{}
	return it
}

func (r *ResultIterator) view() *PageIterator {
	return &PageIterator{
		iterBase: iterBase{engine: r.engine, gen: r.gen},
		native:   r.native.pageIterator(),
		owner:    r,
	}
}

// Iterator returns a ResultIterator positioned at the first element,
// recognizing first if needed.
func (e *Engine) Iterator() (*ResultIterator, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := e.ensureRecognized(); err != nil {
		return nil, err
	}
	n := e.api.resultIterator()
	if n == nil {
		return nil, ErrNoResults
	}
	return e.trackResult(n), nil
}

func (r *ResultIterator) check() error {
	return r.valid()
}

func (r *ResultIterator) releaseNative() {
	if r.released {
		return
	}
	r.native.release()
	r.released = true
}

// Close releases the iterator and any page views taken from it. It is safe
// to call more than once.
func (r *ResultIterator) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if !r.released {
		r.releaseNative()
		delete(r.engine.iters, r)
	}
	return nil
}

// Copy returns an independent iterator at the same position.
func (r *ResultIterator) Copy() (*ResultIterator, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.engine.trackResult(r.native.copy()), nil
}

// PageIterator returns a page-level view of this iterator. The view shares
// position and lifetime with r; closing it releases nothing.
func (r *ResultIterator) PageIterator() (*PageIterator, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.view(), nil
}

// Begin moves to the first element of the page.
func (r *ResultIterator) Begin() error { return r.nav.Begin() }

// Next moves to the start of the next element at level.
func (r *ResultIterator) Next(level Level) (bool, error) { return r.nav.Next(level) }

// IsAtBeginningOf reports whether the iterator starts an element at level.
func (r *ResultIterator) IsAtBeginningOf(level Level) (bool, error) {
	return r.nav.IsAtBeginningOf(level)
}

// IsAtFinalElement reports whether the current element is the last of its
// kind inside the enclosing level.
func (r *ResultIterator) IsAtFinalElement(level, element Level) (bool, error) {
	return r.nav.IsAtFinalElement(level, element)
}

// BoundingBox returns the box of the current element at level.
func (r *ResultIterator) BoundingBox(level Level) (image.Rectangle, bool, error) {
	return r.nav.BoundingBox(level)
}

// Baseline returns the baseline endpoints of the current element.
func (r *ResultIterator) Baseline(level Level) (image.Point, image.Point, bool, error) {
	return r.nav.Baseline(level)
}

// BlockType returns the layout class of the current block.
func (r *ResultIterator) BlockType() (BlockType, error) { return r.nav.BlockType() }

// Orientation returns the orientation of the current block.
func (r *ResultIterator) Orientation() (OrientationInfo, error) { return r.nav.Orientation() }

// Text returns the UTF-8 text of the current element at level, or "" when
// there is none.
func (r *ResultIterator) Text(level Level) (string, error) {
	if err := checkLevel(level); err != nil {
		return "", err
	}
	if err := r.check(); err != nil {
		return "", err
	}
	s, _ := r.native.text(level)
	return s, nil
}

// Confidence returns the confidence of the current element in [0, 100].
func (r *ResultIterator) Confidence(level Level) (float32, error) {
	if err := checkLevel(level); err != nil {
		return 0, err
	}
	if err := r.check(); err != nil {
		return 0, err
	}
	c := r.native.confidence(level)
	if c < 0 {
		c = 0
	} else if c > 100 {
		c = 100
	}
	return c, nil
}

// FontAttributes returns the font of the current word. ok is false when the
// engine mode does not report fonts.
func (r *ResultIterator) FontAttributes() (attrs FontAttributes, ok bool, err error) {
	if err := r.check(); err != nil {
		return FontAttributes{}, false, err
	}
	attrs, ok = r.native.fontAttributes()
	return attrs, ok, nil
}

// WordIsFromDictionary reports whether the current word was a dictionary hit.
func (r *ResultIterator) WordIsFromDictionary() (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.native.wordIsFromDictionary(), nil
}

// WordIsNumeric reports whether the current word is a number.
func (r *ResultIterator) WordIsNumeric() (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.native.wordIsNumeric(), nil
}

// SymbolIsSuperscript reports whether the current symbol is superscript.
func (r *ResultIterator) SymbolIsSuperscript() (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.native.symbolIsSuperscript(), nil
}

// SymbolIsSubscript reports whether the current symbol is subscript.
func (r *ResultIterator) SymbolIsSubscript() (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.native.symbolIsSubscript(), nil
}

// SymbolIsDropcap reports whether the current symbol is a drop capital.
func (r *ResultIterator) SymbolIsDropcap() (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.native.symbolIsDropcap(), nil
}

// RecognitionLanguage returns the language the current word was recognized
// in, or "" when unknown.
func (r *ResultIterator) RecognitionLanguage() (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	return r.native.recognitionLanguage(), nil
}
