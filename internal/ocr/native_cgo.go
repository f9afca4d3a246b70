package ocr

/*
#cgo LDFLAGS: -ltesseract
#cgo darwin CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo darwin LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib
#include <stdbool.h>
#include <stdlib.h>
#include <string.h>
#include <tesseract/capi.h>

extern int goTessCancel(void *cancel_this, int words);
extern int goTessProgress(void *cancel_this, int percent);

static inline bool tess_mcp_cancel(void *cancel_this, int words) {
	return goTessCancel(cancel_this, words) != 0;
}

static inline bool tess_mcp_progress(ETEXT_DESC *ths, int left, int right, int top, int bottom) {
	(void)left; (void)right; (void)top; (void)bottom;
	return goTessProgress(TessMonitorGetCancelThis(ths), TessMonitorGetProgress(ths)) != 0;
}

static inline ETEXT_DESC *tess_mcp_monitor_new(void *cancel_this, int deadline_ms) {
	ETEXT_DESC *m = TessMonitorCreate();
	if (m == NULL) {
		return NULL;
	}
	TessMonitorSetCancelThis(m, cancel_this);
	TessMonitorSetCancelFunc(m, tess_mcp_cancel);
	TessMonitorSetProgressFunc(m, tess_mcp_progress);
	if (deadline_ms > 0) {
		TessMonitorSetDeadlineMSecs(m, deadline_ms);
	}
	return m;
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

type cBackend struct{}

func (cBackend) version() string {
	return C.GoString(C.TessVersion())
}

func (cBackend) newAPI() (nativeAPI, error) {
	h := C.TessBaseAPICreate()
	if h == nil {
		return nil, ErrNativeUnavailable
	}
	return &cAPI{h: h}, nil
}

// cAPI owns one TessBaseAPI handle.
type cAPI struct {
	h *C.TessBaseAPI
}

//export goTessCancel
func goTessCancel(cancelThis unsafe.Pointer, words C.int) C.int {
	if st := monitorFromSlot(cancelThis); st != nil && st.shouldCancel(int(words)) {
		return 1
	}
	return 0
}

//export goTessProgress
func goTessProgress(cancelThis unsafe.Pointer, percent C.int) C.int {
	if st := monitorFromSlot(cancelThis); st != nil {
		st.report(int(percent))
	}
	return 1
}

// monitorFromSlot resolves the cgo.Handle stored in C memory that the
// native monitor carries as its cancel_this pointer.
func monitorFromSlot(slot unsafe.Pointer) *monitorState {
	if slot == nil {
		return nil
	}
	h := *(*cgo.Handle)(slot)
	st, _ := h.Value().(*monitorState)
	return st
}

func cStringOrNil(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}

func freeCString(p *C.char) {
	if p != nil {
		C.free(unsafe.Pointer(p))
	}
}

var ptrSize = unsafe.Sizeof((*C.char)(nil))

func cStringArray(ss []string) **C.char {
	if len(ss) == 0 {
		return nil
	}
	arr := (**C.char)(C.malloc(C.size_t(len(ss)) * C.size_t(ptrSize)))
	view := unsafe.Slice(arr, len(ss))
	for i, s := range ss {
		view[i] = C.CString(s)
	}
	return arr
}

func freeCStringArray(arr **C.char, n int) {
	if arr == nil {
		return
	}
	for _, p := range unsafe.Slice(arr, n) {
		C.free(unsafe.Pointer(p))
	}
	C.free(unsafe.Pointer(arr))
}

// takeText copies a string the library allocated for the caller and frees it.
func takeText(p *C.char) (string, bool) {
	if p == nil {
		return "", false
	}
	defer C.TessDeleteText(p)
	return C.GoString(p), true
}

// peekText copies a string the library still owns.
func peekText(p *C.char) (string, bool) {
	if p == nil {
		return "", false
	}
	return C.GoString(p), true
}

// takeTextArray copies a NULL-terminated string vector and frees it.
func takeTextArray(arr **C.char) []string {
	if arr == nil {
		return nil
	}
	defer C.TessDeleteTextArray(arr)
	var out []string
	for i := uintptr(0); ; i++ {
		p := *(**C.char)(unsafe.Add(unsafe.Pointer(arr), i*ptrSize))
		if p == nil {
			return out
		}
		out = append(out, C.GoString(p))
	}
}

// takeIntArray copies a -1 terminated int array and frees it.
func takeIntArray(arr *C.int) []int {
	if arr == nil {
		return nil
	}
	defer C.TessDeleteIntArray(arr)
	out := []int{}
	for i := uintptr(0); ; i++ {
		v := *(*C.int)(unsafe.Add(unsafe.Pointer(arr), i*unsafe.Sizeof(*arr)))
		if v < 0 {
			return out
		}
		out = append(out, int(v))
	}
}

func (a *cAPI) init(dataPath, language string, mode EngineMode, configs []string, vars []Setting) int {
	cData := cStringOrNil(dataPath)
	defer freeCString(cData)
	cLang := C.CString(language)
	defer freeCString(cLang)

	cConfigs := cStringArray(configs)
	defer freeCStringArray(cConfigs, len(configs))

	names := make([]string, len(vars))
	values := make([]string, len(vars))
	for i, v := range vars {
		names[i], values[i] = v.Name, v.Value
	}
	cNames := cStringArray(names)
	defer freeCStringArray(cNames, len(names))
	cValues := cStringArray(values)
	defer freeCStringArray(cValues, len(values))

	return int(C.TessBaseAPIInit4(a.h, cData, cLang, C.TessOcrEngineMode(mode),
		cConfigs, C.int(len(configs)), cNames, cValues, C.size_t(len(vars)), C.int(0)))
}

func (a *cAPI) initForAnalysePage() { C.TessBaseAPIInitForAnalysePage(a.h) }

func (a *cAPI) end()   { C.TessBaseAPIEnd(a.h) }
func (a *cAPI) clear() { C.TessBaseAPIClear(a.h) }

func (a *cAPI) release() {
	if a.h == nil {
		return
	}
	C.TessBaseAPIDelete(a.h)
	a.h = nil
}

func (a *cAPI) setVariable(name, value string) bool {
	cName := C.CString(name)
	defer freeCString(cName)
	cValue := C.CString(value)
	defer freeCString(cValue)
	return C.TessBaseAPISetVariable(a.h, cName, cValue) != 0
}

func (a *cAPI) intVariable(name string) (int, bool) {
	cName := C.CString(name)
	defer freeCString(cName)
	var v C.int
	if C.TessBaseAPIGetIntVariable(a.h, cName, &v) == 0 {
		return 0, false
	}
	return int(v), true
}

func (a *cAPI) boolVariable(name string) (bool, bool) {
	cName := C.CString(name)
	defer freeCString(cName)
	var v C.int
	if C.TessBaseAPIGetBoolVariable(a.h, cName, &v) == 0 {
		return false, false
	}
	return v != 0, true
}

func (a *cAPI) doubleVariable(name string) (float64, bool) {
	cName := C.CString(name)
	defer freeCString(cName)
	var v C.double
	if C.TessBaseAPIGetDoubleVariable(a.h, cName, &v) == 0 {
		return 0, false
	}
	return float64(v), true
}

func (a *cAPI) stringVariable(name string) (string, bool) {
	cName := C.CString(name)
	defer freeCString(cName)
	return peekText(C.TessBaseAPIGetStringVariable(a.h, cName))
}

func (a *cAPI) printVariables(path string) bool {
	cPath := C.CString(path)
	defer freeCString(cPath)
	return C.TessBaseAPIPrintVariablesToFile(a.h, cPath) != 0
}

func (a *cAPI) readConfigFile(path string) {
	cPath := C.CString(path)
	defer freeCString(cPath)
	C.TessBaseAPIReadConfigFile(a.h, cPath)
}

func (a *cAPI) setPageSegMode(mode PageSegMode) {
	C.TessBaseAPISetPageSegMode(a.h, C.TessPageSegMode(mode))
}

func (a *cAPI) pageSegMode() PageSegMode {
	return PageSegMode(C.TessBaseAPIGetPageSegMode(a.h))
}

func (a *cAPI) initLanguages() string {
	s, _ := peekText(C.TessBaseAPIGetInitLanguagesAsString(a.h))
	return s
}

func (a *cAPI) loadedLanguages() []string {
	return takeTextArray(C.TessBaseAPIGetLoadedLanguagesAsVector(a.h))
}

func (a *cAPI) availableLanguages() []string {
	return takeTextArray(C.TessBaseAPIGetAvailableLanguagesAsVector(a.h))
}

func (a *cAPI) setImage(pix []byte, width, height, bytesPerPixel, bytesPerLine int) {
	C.TessBaseAPISetImage(a.h, (*C.uchar)(unsafe.Pointer(&pix[0])),
		C.int(width), C.int(height), C.int(bytesPerPixel), C.int(bytesPerLine))
}

func (a *cAPI) setSourceResolution(ppi int) {
	C.TessBaseAPISetSourceResolution(a.h, C.int(ppi))
}

func (a *cAPI) setRectangle(left, top, width, height int) {
	C.TessBaseAPISetRectangle(a.h, C.int(left), C.int(top), C.int(width), C.int(height))
}

func (a *cAPI) recognize(mon *monitorState) int {
	if mon == nil {
		return int(C.TessBaseAPIRecognize(a.h, nil))
	}

	handle := cgo.NewHandle(mon)
	defer handle.Delete()
	slot := C.malloc(C.size_t(unsafe.Sizeof(handle)))
	if slot == nil {
		return -1
	}
	defer C.free(slot)
	*(*cgo.Handle)(slot) = handle

	m := C.tess_mcp_monitor_new(slot, C.int(mon.deadlineMillis()))
	if m == nil {
		return -1
	}
	defer C.TessMonitorDelete(m)

	code := int(C.TessBaseAPIRecognize(a.h, m))
	mon.report(int(C.TessMonitorGetProgress(m)))
	return code
}

func (a *cAPI) analyseLayout() nativePageIterator {
	p := C.TessBaseAPIAnalyseLayout(a.h)
	if p == nil {
		return nil
	}
	return &cPageIter{p: p}
}

func (a *cAPI) resultIterator() nativeResultIterator {
	p := C.TessBaseAPIGetIterator(a.h)
	if p == nil {
		return nil
	}
	return &cResultIter{p: p}
}

func (a *cAPI) utf8Text() (string, bool) {
	return takeText(C.TessBaseAPIGetUTF8Text(a.h))
}

func (a *cAPI) hocrText(page int) (string, bool) {
	return takeText(C.TessBaseAPIGetHOCRText(a.h, C.int(page)))
}

func (a *cAPI) boxText(page int) (string, bool) {
	return takeText(C.TessBaseAPIGetBoxText(a.h, C.int(page)))
}

func (a *cAPI) unlvText() ([]byte, bool) {
	p := C.TessBaseAPIGetUNLVText(a.h)
	if p == nil {
		return nil, false
	}
	defer C.TessDeleteText(p)
	return C.GoBytes(unsafe.Pointer(p), C.int(C.strlen(p))), true
}

func (a *cAPI) meanTextConf() int {
	return int(C.TessBaseAPIMeanTextConf(a.h))
}

func (a *cAPI) allWordConfidences() []int {
	return takeIntArray(C.TessBaseAPIAllWordConfidences(a.h))
}

func (a *cAPI) isValidWord(word string) int {
	cWord := C.CString(word)
	defer freeCString(cWord)
	return int(C.TessBaseAPIIsValidWord(a.h, cWord))
}

func (a *cAPI) textDirection() (int, float32, bool) {
	var off C.int
	var slope C.float
	ok := C.TessBaseAPIGetTextDirection(a.h, &off, &slope) != 0
	return int(off), float32(slope), ok
}

func (a *cAPI) thresholdScaleFactor() int {
	return int(C.TessBaseAPIGetThresholdedImageScaleFactor(a.h))
}

func (a *cAPI) clearAdaptiveClassifier() {
	C.TessBaseAPIClearAdaptiveClassifier(a.h)
}

func (a *cAPI) processPages(path, outputBase string, format RenderFormat, timeoutMillis int) bool {
	cBase := C.CString(outputBase)
	defer freeCString(cBase)

	var r *C.TessResultRenderer
	switch format {
	case RenderHOCR:
		r = C.TessHOcrRendererCreate(cBase)
	case RenderTSV:
		r = C.TessTsvRendererCreate(cBase)
	default:
		r = C.TessTextRendererCreate(cBase)
	}
	if r == nil {
		return false
	}
	defer C.TessDeleteResultRenderer(r)

	cPath := C.CString(path)
	defer freeCString(cPath)
	return C.TessBaseAPIProcessPages(a.h, cPath, nil, C.int(timeoutMillis), r) != 0
}

// cPageIter wraps a TessPageIterator. Borrowed views belong to a result
// iterator and are never deleted.
type cPageIter struct {
	p        *C.TessPageIterator
	borrowed bool
}

func (it *cPageIter) release() {
	if it.borrowed || it.p == nil {
		return
	}
	C.TessPageIteratorDelete(it.p)
	it.p = nil
}

func (it *cPageIter) copy() nativePageIterator {
	return &cPageIter{p: C.TessPageIteratorCopy(it.p)}
}

func (it *cPageIter) begin() { C.TessPageIteratorBegin(it.p) }

func (it *cPageIter) next(level Level) bool {
	return C.TessPageIteratorNext(it.p, C.TessPageIteratorLevel(level)) != 0
}

func (it *cPageIter) isAtBeginningOf(level Level) bool {
	return C.TessPageIteratorIsAtBeginningOf(it.p, C.TessPageIteratorLevel(level)) != 0
}

func (it *cPageIter) isAtFinalElement(level, element Level) bool {
	return C.TessPageIteratorIsAtFinalElement(it.p, C.TessPageIteratorLevel(level), C.TessPageIteratorLevel(element)) != 0
}

func (it *cPageIter) boundingBox(level Level) (int, int, int, int, bool) {
	var l, t, r, b C.int
	ok := C.TessPageIteratorBoundingBox(it.p, C.TessPageIteratorLevel(level), &l, &t, &r, &b) != 0
	return int(l), int(t), int(r), int(b), ok
}

func (it *cPageIter) baseline(level Level) (int, int, int, int, bool) {
	var x1, y1, x2, y2 C.int
	ok := C.TessPageIteratorBaseline(it.p, C.TessPageIteratorLevel(level), &x1, &y1, &x2, &y2) != 0
	return int(x1), int(y1), int(x2), int(y2), ok
}

func (it *cPageIter) blockType() BlockType {
	return BlockType(C.TessPageIteratorBlockType(it.p))
}

func (it *cPageIter) orientation() OrientationInfo {
	var (
		o      C.TessOrientation
		wd     C.TessWritingDirection
		tlo    C.TessTextlineOrder
		deskew C.float
	)
	C.TessPageIteratorOrientation(it.p, &o, &wd, &tlo, &deskew)
	return OrientationInfo{
		Orientation:      Orientation(o),
		WritingDirection: WritingDirection(wd),
		TextlineOrder:    TextlineOrder(tlo),
		DeskewAngle:      float32(deskew),
	}
}

// cResultIter wraps a TessResultIterator.
type cResultIter struct {
	p *C.TessResultIterator
}

func (it *cResultIter) release() {
	if it.p == nil {
		return
	}
	C.TessResultIteratorDelete(it.p)
	it.p = nil
}

func (it *cResultIter) copy() nativeResultIterator {
	return &cResultIter{p: C.TessResultIteratorCopy(it.p)}
}

func (it *cResultIter) pageIterator() nativePageIterator {
	return &cPageIter{p: C.TessResultIteratorGetPageIterator(it.p), borrowed: true}
}

func (it *cResultIter) text(level Level) (string, bool) {
	return takeText(C.TessResultIteratorGetUTF8Text(it.p, C.TessPageIteratorLevel(level)))
}

func (it *cResultIter) confidence(level Level) float32 {
	return float32(C.TessResultIteratorConfidence(it.p, C.TessPageIteratorLevel(level)))
}

func (it *cResultIter) fontAttributes() (FontAttributes, bool) {
	var bold, italic, underlined, mono, serif, smallCaps, pointSize, fontID C.int
	name, ok := peekText(C.TessResultIteratorWordFontAttributes(it.p,
		&bold, &italic, &underlined, &mono, &serif, &smallCaps, &pointSize, &fontID))
	if !ok {
		return FontAttributes{}, false
	}
	return FontAttributes{
		FontName:   name,
		Bold:       bold != 0,
		Italic:     italic != 0,
		Underlined: underlined != 0,
		Monospace:  mono != 0,
		Serif:      serif != 0,
		SmallCaps:  smallCaps != 0,
		PointSize:  int(pointSize),
		FontID:     int(fontID),
	}, true
}

func (it *cResultIter) wordIsFromDictionary() bool {
	return C.TessResultIteratorWordIsFromDictionary(it.p) != 0
}

func (it *cResultIter) wordIsNumeric() bool {
	return C.TessResultIteratorWordIsNumeric(it.p) != 0
}

func (it *cResultIter) symbolIsSuperscript() bool {
	return C.TessResultIteratorSymbolIsSuperscript(it.p) != 0
}

func (it *cResultIter) symbolIsSubscript() bool {
	return C.TessResultIteratorSymbolIsSubscript(it.p) != 0
}

func (it *cResultIter) symbolIsDropcap() bool {
	return C.TessResultIteratorSymbolIsDropcap(it.p) != 0
}

func (it *cResultIter) recognitionLanguage() string {
	s, _ := peekText(C.TessResultIteratorWordRecognitionLanguage(it.p))
	return s
}
