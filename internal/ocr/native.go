package ocr

// The interfaces below are the whole surface of the C API the engine drives.
// native_cgo.go implements them over tesseract/capi.h; tests substitute a
// fake through withBackend. Strings and arrays returned by these methods
// are already copied into Go memory and the native copies released.

// nativeBackend creates native API handles.
type nativeBackend interface {
	version() string
	newAPI() (nativeAPI, error)
}

// nativeAPI mirrors one TessBaseAPI instance.
type nativeAPI interface {
	// init returns the native status; zero is success.
	init(dataPath, language string, mode EngineMode, configs []string, vars []Setting) int
	// initForAnalysePage prepares layout analysis without language data.
	initForAnalysePage()
	end()
	clear()
	release()

	setVariable(name, value string) bool
	intVariable(name string) (int, bool)
	boolVariable(name string) (bool, bool)
	doubleVariable(name string) (float64, bool)
	stringVariable(name string) (string, bool)
	printVariables(path string) bool
	readConfigFile(path string)

	setPageSegMode(mode PageSegMode)
	pageSegMode() PageSegMode

	initLanguages() string
	loadedLanguages() []string
	availableLanguages() []string

	// setImage hands pix to the library without copying; the caller keeps
	// it pinned until the next setImage, clear, end or release.
	setImage(pix []byte, width, height, bytesPerPixel, bytesPerLine int)
	setSourceResolution(ppi int)
	setRectangle(left, top, width, height int)

	// recognize returns the native status; zero is success. mon may be nil.
	recognize(mon *monitorState) int
	analyseLayout() nativePageIterator
	resultIterator() nativeResultIterator

	utf8Text() (string, bool)
	hocrText(page int) (string, bool)
	boxText(page int) (string, bool)
	unlvText() ([]byte, bool)
	meanTextConf() int
	allWordConfidences() []int
	isValidWord(word string) int
	textDirection() (offset int, slope float32, ok bool)
	thresholdScaleFactor() int
	clearAdaptiveClassifier()

	// processPages recognizes every page of the file at path and writes
	// them to outputBase plus the format's extension.
	processPages(path, outputBase string, format RenderFormat, timeoutMillis int) bool
}

// nativePageIterator mirrors TessPageIterator.
type nativePageIterator interface {
	release()
	copy() nativePageIterator
	begin()
	next(level Level) bool
	isAtBeginningOf(level Level) bool
	isAtFinalElement(level, element Level) bool
	boundingBox(level Level) (left, top, right, bottom int, ok bool)
	baseline(level Level) (x1, y1, x2, y2 int, ok bool)
	blockType() BlockType
	orientation() OrientationInfo
}

// nativeResultIterator mirrors TessResultIterator. pageIterator returns a
// borrowed view of the same native object; it must never be released.
type nativeResultIterator interface {
	release()
	copy() nativeResultIterator
	pageIterator() nativePageIterator
	text(level Level) (string, bool)
	confidence(level Level) float32
	fontAttributes() (FontAttributes, bool)
	wordIsFromDictionary() bool
	wordIsNumeric() bool
	symbolIsSuperscript() bool
	symbolIsSubscript() bool
	symbolIsDropcap() bool
	recognitionLanguage() string
}

// backend is the process-wide native implementation.
var backend nativeBackend = cBackend{}

// Version returns the native Tesseract version, or "" when unavailable.
func Version() string {
	return backend.version()
}
