package ocr

import (
	"image"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeWord struct {
	text string
	box  image.Rectangle
	conf float32
}

type fakeInit struct {
	dataPath string
	language string
	mode     EngineMode
	configs  []string
	vars     []Setting
}

// fakeAPI is an in-memory stand-in for the native library. It tracks
// enough state to observe what the Engine asked of it.
type fakeAPI struct {
	initCode      int
	recognizeCode int
	recognizeHook func(mon *monitorState) int
	words         []fakeWord
	unlv          []byte
	validWord     int

	inits      []fakeInit
	ends       int
	clears     int
	released   bool
	releasedCh chan struct{}
	recognized int
	readConfig []string

	vars    map[string]string
	psm     PageSegMode
	langs   string
	hasImg  bool
	imgW    int
	imgH    int
	rect    image.Rectangle
	ppi     int
	live    int
	noIters bool

	// pages is what processPages renders, one entry per page.
	pages      []string
	processed  []string
	timeouts   []int
	layoutInit int
	scale      int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		vars: map[string]string{},
		psm:  PSMSingleBlock,
		words: []fakeWord{
			{text: "Hello", box: image.Rect(10, 10, 60, 30), conf: 91},
			{text: "World", box: image.Rect(70, 10, 130, 30), conf: 87},
		},
		validWord: 1,
	}
}

type fakeBackend struct {
	api *fakeAPI
}

func (b fakeBackend) version() string { return "5.3.0-fake" }

func (b fakeBackend) newAPI() (nativeAPI, error) { return b.api, nil }

// newFakeEngine returns an uninitialized Engine over a fresh fake and a
// hook capturing its log output.
func newFakeEngine(t *testing.T) (*Engine, *fakeAPI, *test.Hook) {
	t.Helper()
	api := newFakeAPI()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e, err := New(withBackend(fakeBackend{api: api}), WithLogger(logger))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, api, hook
}

// newReadyEngine returns an initialized Engine with a 200x50 gray image set.
func newReadyEngine(t *testing.T) (*Engine, *fakeAPI) {
	t.Helper()
	e, api, _ := newFakeEngine(t)
	if err := e.Init(DefaultInitOptions()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := e.SetImage(grayBuffer(200, 50)); err != nil {
		t.Fatalf("SetImage failed: %v", err)
	}
	return e, api
}

func grayBuffer(w, h int) *ImageBuffer {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = 0xff
	}
	return &ImageBuffer{Pix: pix, Width: w, Height: h, Depth: DepthGray, BytesPerLine: w}
}

func (a *fakeAPI) init(dataPath, language string, mode EngineMode, configs []string, vars []Setting) int {
	a.inits = append(a.inits, fakeInit{dataPath: dataPath, language: language, mode: mode, configs: configs, vars: vars})
	if a.initCode != 0 {
		return a.initCode
	}
	// Init builds a fresh parameter block; only the passed vars survive.
	a.vars = map[string]string{}
	a.psm = PSMSingleBlock
	for _, v := range vars {
		if v.Name == string(VarPageSegMode) {
			if n, err := strconv.Atoi(v.Value); err == nil {
				a.psm = PageSegMode(n)
			}
			continue
		}
		a.vars[v.Name] = v.Value
	}
	a.langs = language
	return 0
}

func (a *fakeAPI) initForAnalysePage() {
	a.layoutInit++
	a.langs = ""
}

func (a *fakeAPI) end() {
	a.ends++
	a.vars = map[string]string{}
	a.psm = PSMSingleBlock
	a.langs = ""
	a.hasImg = false
}

func (a *fakeAPI) clear() {
	a.clears++
	a.hasImg = false
}

func (a *fakeAPI) release() {
	a.released = true
	if a.releasedCh != nil {
		close(a.releasedCh)
	}
}

func (a *fakeAPI) setVariable(name, value string) bool {
	if strings.HasPrefix(name, "unknown_") {
		return false
	}
	a.vars[name] = value
	return true
}

func (a *fakeAPI) intVariable(name string) (int, bool) {
	v, ok := a.vars[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func (a *fakeAPI) boolVariable(name string) (bool, bool) {
	v, ok := a.vars[name]
	if !ok {
		return false, false
	}
	return v == "1" || v == "true", v == "0" || v == "1" || v == "true" || v == "false"
}

func (a *fakeAPI) doubleVariable(name string) (float64, bool) {
	v, ok := a.vars[name]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func (a *fakeAPI) stringVariable(name string) (string, bool) {
	v, ok := a.vars[name]
	return v, ok
}

func (a *fakeAPI) printVariables(path string) bool { return path != "" }

func (a *fakeAPI) readConfigFile(path string) { a.readConfig = append(a.readConfig, path) }

func (a *fakeAPI) setPageSegMode(mode PageSegMode) { a.psm = mode }

func (a *fakeAPI) pageSegMode() PageSegMode { return a.psm }

func (a *fakeAPI) initLanguages() string { return a.langs }

func (a *fakeAPI) loadedLanguages() []string {
	if a.langs == "" {
		return nil
	}
	return strings.Split(a.langs, "+")
}

func (a *fakeAPI) availableLanguages() []string { return []string{"eng", "osd"} }

func (a *fakeAPI) setImage(pix []byte, width, height, bytesPerPixel, bytesPerLine int) {
	a.hasImg = true
	a.imgW, a.imgH = width, height
	a.rect = image.Rect(0, 0, width, height)
}

func (a *fakeAPI) setSourceResolution(ppi int) { a.ppi = ppi }

func (a *fakeAPI) setRectangle(left, top, width, height int) {
	a.rect = image.Rect(left, top, left+width, top+height)
}

func (a *fakeAPI) recognize(mon *monitorState) int {
	a.recognized++
	if a.recognizeHook != nil {
		return a.recognizeHook(mon)
	}
	if mon != nil {
		mon.report(100)
	}
	return a.recognizeCode
}

func (a *fakeAPI) analyseLayout() nativePageIterator {
	if a.noIters {
		return nil
	}
	a.live++
	return &fakePageIter{api: a, cur: &fakeCursor{api: a}}
}

func (a *fakeAPI) resultIterator() nativeResultIterator {
	if a.noIters {
		return nil
	}
	a.live++
	return &fakeResultIter{api: a, cur: &fakeCursor{api: a}}
}

func (a *fakeAPI) utf8Text() (string, bool) {
	parts := make([]string, len(a.words))
	for i, w := range a.words {
		parts[i] = w.text
	}
	return strings.Join(parts, " ") + "\n", true
}

func (a *fakeAPI) hocrText(page int) (string, bool) {
	return "<div class='ocr_page' id='page_" + strconv.Itoa(page+1) + "'></div>", true
}

func (a *fakeAPI) boxText(page int) (string, bool) {
	var sb strings.Builder
	for _, w := range a.words {
		for _, r := range w.text {
			sb.WriteString(string(r) + " 0 0 1 1 " + strconv.Itoa(page) + "\n")
		}
	}
	return sb.String(), true
}

func (a *fakeAPI) thresholdScaleFactor() int { return a.scale }

func (a *fakeAPI) processPages(path, outputBase string, format RenderFormat, timeoutMillis int) bool {
	a.processed = append(a.processed, path)
	a.timeouts = append(a.timeouts, timeoutMillis)
	if len(a.pages) == 0 {
		return false
	}
	a.hasImg = true
	out := strings.Join(a.pages, "\f")
	return os.WriteFile(outputBase+"."+format.Extension(), []byte(out), 0o644) == nil
}

func (a *fakeAPI) unlvText() ([]byte, bool) { return a.unlv, a.unlv != nil }

func (a *fakeAPI) meanTextConf() int {
	if len(a.words) == 0 {
		return 0
	}
	var sum float32
	for _, w := range a.words {
		sum += w.conf
	}
	return int(sum) / len(a.words)
}

func (a *fakeAPI) allWordConfidences() []int {
	out := make([]int, len(a.words))
	for i, w := range a.words {
		out[i] = int(w.conf)
	}
	return out
}

func (a *fakeAPI) isValidWord(word string) int {
	if word == "" {
		return 0
	}
	return a.validWord
}

func (a *fakeAPI) textDirection() (int, float32, bool) { return 30, 0.01, len(a.words) > 0 }

func (a *fakeAPI) clearAdaptiveClassifier() {}

// fakeCursor is a word-granular position shared by an iterator and its
// borrowed page view. Levels above word treat the page as a single element.
type fakeCursor struct {
	api *fakeAPI
	idx int
}

func (c *fakeCursor) valid() bool { return c.idx >= 0 && c.idx < len(c.api.words) }

func (c *fakeCursor) next(level Level) bool {
	if level < LevelWord {
		c.idx = len(c.api.words)
		return false
	}
	c.idx++
	return c.valid()
}

func (c *fakeCursor) box(level Level) (int, int, int, int, bool) {
	if !c.valid() {
		return 0, 0, 0, 0, false
	}
	r := c.api.words[c.idx].box
	if level < LevelWord {
		r = image.Rectangle{}
		for _, w := range c.api.words {
			r = r.Union(w.box)
		}
	}
	return r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, true
}

type fakePageIter struct {
	api      *fakeAPI
	cur      *fakeCursor
	borrowed bool
	released bool
}

func (p *fakePageIter) release() {
	if p.borrowed || p.released {
		return
	}
	p.released = true
	p.api.live--
}

func (p *fakePageIter) copy() nativePageIterator {
	p.api.live++
	return &fakePageIter{api: p.api, cur: &fakeCursor{api: p.api, idx: p.cur.idx}}
}

func (p *fakePageIter) begin()                { p.cur.idx = 0 }
func (p *fakePageIter) next(level Level) bool { return p.cur.next(level) }
func (p *fakePageIter) isAtBeginningOf(l Level) bool {
	return p.cur.idx == 0 || l == LevelWord
}

func (p *fakePageIter) isAtFinalElement(level, element Level) bool {
	return p.cur.idx == len(p.api.words)-1
}

func (p *fakePageIter) boundingBox(level Level) (int, int, int, int, bool) {
	return p.cur.box(level)
}

func (p *fakePageIter) baseline(level Level) (int, int, int, int, bool) {
	l, _, r, b, ok := p.cur.box(level)
	return l, b, r, b, ok
}

func (p *fakePageIter) blockType() BlockType { return BlockFlowingText }

func (p *fakePageIter) orientation() OrientationInfo {
	return OrientationInfo{Orientation: OrientationPageUp, WritingDirection: WritingLeftToRight, TextlineOrder: TextlineTopToBottom}
}

type fakeResultIter struct {
	api      *fakeAPI
	cur      *fakeCursor
	released bool
}

func (r *fakeResultIter) release() {
	if r.released {
		return
	}
	r.released = true
	r.api.live--
}

func (r *fakeResultIter) copy() nativeResultIterator {
	r.api.live++
	return &fakeResultIter{api: r.api, cur: &fakeCursor{api: r.api, idx: r.cur.idx}}
}

func (r *fakeResultIter) pageIterator() nativePageIterator {
	return &fakePageIter{api: r.api, cur: r.cur, borrowed: true}
}

func (r *fakeResultIter) text(level Level) (string, bool) {
	if !r.cur.valid() {
		return "", false
	}
	if level < LevelWord {
		s, _ := r.api.utf8Text()
		return s, true
	}
	return r.api.words[r.cur.idx].text, true
}

func (r *fakeResultIter) confidence(level Level) float32 {
	if !r.cur.valid() {
		return 0
	}
	return r.api.words[r.cur.idx].conf
}

func (r *fakeResultIter) fontAttributes() (FontAttributes, bool) { return FontAttributes{}, false }

func (r *fakeResultIter) wordIsFromDictionary() bool { return r.cur.valid() }

func (r *fakeResultIter) wordIsNumeric() bool {
	if !r.cur.valid() {
		return false
	}
	_, err := strconv.Atoi(r.api.words[r.cur.idx].text)
	return err == nil
}

func (r *fakeResultIter) symbolIsSuperscript() bool { return false }
func (r *fakeResultIter) symbolIsSubscript() bool   { return false }
func (r *fakeResultIter) symbolIsDropcap() bool     { return false }
func (r *fakeResultIter) recognitionLanguage() string {
	return "eng"
}
