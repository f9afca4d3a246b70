package ocr

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// VariableName is a Tesseract parameter name. It shares gosseract's type so
// gosseract's constants can be passed directly.
type VariableName = gosseract.SettableVariable

// Commonly used parameters.
const (
	VarCharWhitelist           VariableName = "tessedit_char_whitelist"
	VarCharBlacklist           VariableName = "tessedit_char_blacklist"
	VarPageSegMode             VariableName = "tessedit_pageseg_mode"
	VarUserDefinedDPI          VariableName = "user_defined_dpi"
	VarPreserveInterwordSpaces VariableName = "preserve_interword_spaces"
	VarDoInvert                VariableName = "tessedit_do_invert"
	VarThresholdingMethod      VariableName = "thresholding_method"
	VarHOCRFontInfo            VariableName = "hocr_font_info"
	VarNumericMode             VariableName = "classify_bln_numeric_mode"
	VarEnableLearning          VariableName = "classify_enable_learning"
	VarMinLinesize             VariableName = "textord_min_linesize"
	VarHeavyNoiseRemoval       VariableName = "textord_heavy_nr"
	VarLoadSystemDawg          VariableName = "load_system_dawg"
	VarLoadFreqDawg            VariableName = "load_freq_dawg"
	VarDebugFile               VariableName = "debug_file"
)

// VariableType is the native storage type of a parameter.
type VariableType int

const (
	TypeString VariableType = iota
	TypeInt
	TypeBool
	TypeDouble
)

func (t VariableType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeDouble:
		return "double"
	}
	return "unknown"
}

// VariableInfo describes a known parameter.
type VariableInfo struct {
	Type VariableType
	// Global parameters live in process-wide storage: setting one on any
	// Engine changes it for every Engine.
	Global bool
	// InitOnly parameters are read during Init and cannot be changed later.
	InitOnly bool
}

// KnownVariables are the parameters the server exposes by name. Other names
// are still accepted by SetVariable; they are just not typed in advance.
var KnownVariables = map[VariableName]VariableInfo{
	VarCharWhitelist:           {Type: TypeString},
	VarCharBlacklist:           {Type: TypeString},
	VarPageSegMode:             {Type: TypeInt},
	VarUserDefinedDPI:          {Type: TypeInt},
	VarPreserveInterwordSpaces: {Type: TypeBool},
	VarDoInvert:                {Type: TypeBool},
	VarThresholdingMethod:      {Type: TypeInt},
	VarHOCRFontInfo:            {Type: TypeBool},
	VarNumericMode:             {Type: TypeBool, Global: true},
	VarEnableLearning:          {Type: TypeBool, Global: true},
	VarMinLinesize:             {Type: TypeDouble, Global: true},
	VarHeavyNoiseRemoval:       {Type: TypeBool, Global: true},
	VarLoadSystemDawg:          {Type: TypeBool, InitOnly: true},
	VarLoadFreqDawg:            {Type: TypeBool, InitOnly: true},
	VarDebugFile:               {Type: TypeString},
}

// IsGlobalVariable reports whether name is shared by every Engine in the
// process. The classify and textord parameter families are global.
func IsGlobalVariable(name VariableName) bool {
	if info, ok := KnownVariables[name]; ok && info.Global {
		return true
	}
	s := string(name)
	return strings.HasPrefix(s, "classify_") || strings.HasPrefix(s, "textord_")
}

// Value is a typed parameter value.
type Value struct {
	Type   VariableType `json:"type"`
	String string       `json:"string,omitempty"`
	Int    int          `json:"int,omitempty"`
	Bool   bool         `json:"bool,omitempty"`
	Double float64      `json:"double,omitempty"`
}

// Format renders the value the way SetVariable accepts it.
func (v Value) Format() string {
	switch v.Type {
	case TypeInt:
		return strconv.Itoa(v.Int)
	case TypeBool:
		if v.Bool {
			return "1"
		}
		return "0"
	case TypeDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	}
	return v.String
}

// Setting is one name/value pair from a config file or Init options.
type Setting struct {
	Name  string
	Value string
}

// ParseConfig reads a Tesseract config file: one "name value" pair per line,
// blank lines and lines starting with # ignored. The value is everything
// after the first run of whitespace and may be empty.
func ParseConfig(r io.Reader) ([]Setting, error) {
	var settings []Setting
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, value := text, ""
		if i := strings.IndexAny(text, " \t"); i >= 0 {
			name = text[:i]
			value = strings.TrimSpace(text[i:])
		}
		settings = append(settings, Setting{Name: name, Value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading config at line %d: %w", line, err)
	}
	return settings, nil
}

// configCandidates lists where a config name is looked up, in order.
func configCandidates(dataPath, name string) []string {
	var out []string
	if dataPath != "" && !filepath.IsAbs(name) {
		out = append(out,
			filepath.Join(dataPath, "tessdata", "configs", name),
			filepath.Join(dataPath, "tessdata", "tessconfigs", name),
			filepath.Join(dataPath, "configs", name),
			filepath.Join(dataPath, "tessconfigs", name),
		)
	}
	return append(out, name)
}

// findConfig returns the first existing regular file among the candidates.
func findConfig(dataPath, name string) (string, error) {
	for _, c := range configCandidates(dataPath, name) {
		if fi, err := os.Stat(c); err == nil && fi.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
}

func (e *Engine) configDataPath(dataPath string) string {
	if dataPath != "" {
		return dataPath
	}
	if e.dataPath != "" {
		return e.dataPath
	}
	return os.Getenv("TESSDATA_PREFIX")
}

// resolveConfig maps a config name to a path for Init. Names that are not
// found locally are passed through for the native library to resolve.
func (e *Engine) resolveConfig(dataPath, name string) string {
	if p, err := findConfig(e.configDataPath(dataPath), name); err == nil {
		return p
	}
	return name
}

// SetVariable sets a parameter by name. It returns false if the native
// library does not know the name. Values set before Init, and init-only
// parameters at any time, are held and passed to the next Init; a later
// re-Init resets everything else.
func (e *Engine) SetVariable(name VariableName, value string) (bool, error) {
	if err := e.enter(); err != nil {
		return false, err
	}
	defer e.leave()
	return e.setVariable(name, value), nil
}

func (e *Engine) setVariable(name VariableName, value string) bool {
	if info, ok := KnownVariables[name]; ok && info.InitOnly {
		e.queue(string(name), value)
		return true
	}
	// Before Init the native call only validates the name: the parameter
	// block it writes to is replaced when Init loads language data.
	ok := e.api.setVariable(string(name), value)
	if !ok {
		return false
	}
	e.paramsReady = true
	if e.state == stateUninitialized {
		e.queue(string(name), value)
		return true
	}
	e.invalidateIfRecognized()
	return true
}

// queue holds a setting for the next Init, replacing an earlier value for
// the same name.
func (e *Engine) queue(name, value string) {
	for i := range e.pending {
		if e.pending[i].Name == name {
			e.pending[i].Value = value
			return
		}
	}
	e.pending = append(e.pending, Setting{Name: name, Value: value})
}

// queued returns the value waiting for Init. Once initialized the native
// value is authoritative, so queued init-only values are not reported.
func (e *Engine) queued(name VariableName) (string, bool) {
	if e.state != stateUninitialized {
		return "", false
	}
	for i := len(e.pending) - 1; i >= 0; i-- {
		if e.pending[i].Name == string(name) {
			return e.pending[i].Value, true
		}
	}
	return "", false
}

// parseBoolParam accepts the spellings Tesseract's BoolParam does.
func parseBoolParam(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true":
		return true, true
	case "0", "f", "false":
		return false, true
	}
	return false, false
}

// typedValue converts a queued string to t.
func typedValue(t VariableType, s string) (Value, bool) {
	switch t {
	case TypeInt:
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return Value{Type: TypeInt, Int: n}, err == nil
	case TypeBool:
		b, ok := parseBoolParam(s)
		return Value{Type: TypeBool, Bool: b}, ok
	case TypeDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return Value{Type: TypeDouble, Double: f}, err == nil
	}
	return Value{Type: TypeString, String: s}, true
}

// invalidateIfRecognized drops results computed under old parameters.
func (e *Engine) invalidateIfRecognized() {
	if e.state == stateRecognized {
		e.invalidate()
		e.state = stateImageSet
	}
}

// SetVariables sets several parameters and returns the names the native
// library rejected.
func (e *Engine) SetVariables(vars map[VariableName]string) ([]VariableName, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	var rejected []VariableName
	for name, value := range vars {
		if !e.setVariable(name, value) {
			rejected = append(rejected, name)
		}
	}
	return rejected, nil
}

// IntVariable returns an integer parameter. ok is false for unknown names.
func (e *Engine) IntVariable(name VariableName) (v int, ok bool, err error) {
	if err := e.enter(); err != nil {
		return 0, false, err
	}
	defer e.leave()
	if q, ok := e.queued(name); ok {
		if v, ok := typedValue(TypeInt, q); ok {
			return v.Int, true, nil
		}
	}
	if err := e.requireParams(); err != nil {
		return 0, false, err
	}
	v, ok = e.api.intVariable(string(name))
	return v, ok, nil
}

// BoolVariable returns a boolean parameter. ok is false for unknown names.
func (e *Engine) BoolVariable(name VariableName) (v bool, ok bool, err error) {
	if err := e.enter(); err != nil {
		return false, false, err
	}
	defer e.leave()
	if q, ok := e.queued(name); ok {
		if v, ok := typedValue(TypeBool, q); ok {
			return v.Bool, true, nil
		}
	}
	if err := e.requireParams(); err != nil {
		return false, false, err
	}
	v, ok = e.api.boolVariable(string(name))
	return v, ok, nil
}

// DoubleVariable returns a floating point parameter. ok is false for
// unknown names.
func (e *Engine) DoubleVariable(name VariableName) (v float64, ok bool, err error) {
	if err := e.enter(); err != nil {
		return 0, false, err
	}
	defer e.leave()
	if q, ok := e.queued(name); ok {
		if v, ok := typedValue(TypeDouble, q); ok {
			return v.Double, true, nil
		}
	}
	if err := e.requireParams(); err != nil {
		return 0, false, err
	}
	v, ok = e.api.doubleVariable(string(name))
	return v, ok, nil
}

// StringVariable returns a string parameter. ok is false for unknown names.
func (e *Engine) StringVariable(name VariableName) (v string, ok bool, err error) {
	if err := e.enter(); err != nil {
		return "", false, err
	}
	defer e.leave()
	if q, ok := e.queued(name); ok {
		if v, ok := typedValue(TypeString, q); ok {
			return v.String, true, nil
		}
	}
	if err := e.requireParams(); err != nil {
		return "", false, err
	}
	v, ok = e.api.stringVariable(string(name))
	return v, ok, nil
}

// Variable returns a parameter using its type from KnownVariables. Unknown
// names are tried as int, bool, double and finally string.
func (e *Engine) Variable(name VariableName) (Value, bool, error) {
	if err := e.enter(); err != nil {
		return Value{}, false, err
	}
	defer e.leave()
	if _, ok := e.queued(name); !ok {
		if err := e.requireParams(); err != nil {
			return Value{}, false, err
		}
	}

	types := []VariableType{TypeInt, TypeBool, TypeDouble, TypeString}
	if info, ok := KnownVariables[name]; ok {
		types = []VariableType{info.Type}
	}
	n := string(name)
	q, isQueued := e.queued(name)
	for _, t := range types {
		if isQueued {
			if v, ok := typedValue(t, q); ok {
				return v, true, nil
			}
			continue
		}
		switch t {
		case TypeInt:
			if v, ok := e.api.intVariable(n); ok {
				return Value{Type: TypeInt, Int: v}, true, nil
			}
		case TypeBool:
			if v, ok := e.api.boolVariable(n); ok {
				return Value{Type: TypeBool, Bool: v}, true, nil
			}
		case TypeDouble:
			if v, ok := e.api.doubleVariable(n); ok {
				return Value{Type: TypeDouble, Double: v}, true, nil
			}
		case TypeString:
			if v, ok := e.api.stringVariable(n); ok {
				return Value{Type: TypeString, String: v}, true, nil
			}
		}
	}
	return Value{}, false, nil
}

// ReadConfigFile applies a config file. The name is searched under
// <datapath>/tessdata/configs, <datapath>/tessdata/tessconfigs,
// <datapath>/configs and <datapath>/tessconfigs before being tried as a
// path. With initOnly, or before the first Init, the settings are held and
// applied by the next Init, which is the only point init-only parameters
// can change.
func (e *Engine) ReadConfigFile(name string, initOnly bool) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	path, err := findConfig(e.configDataPath(""), name)
	if err != nil {
		return err
	}

	if initOnly || e.state == stateUninitialized {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		settings, err := ParseConfig(f)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		for _, st := range settings {
			e.queue(st.Name, st.Value)
		}
		e.log.WithField("path", path).Debugf("ocr: deferred %d config values to next init", len(settings))
		return nil
	}

	e.api.readConfigFile(path)
	e.invalidateIfRecognized()
	return nil
}

// PrintVariablesToFile writes every parameter and its value to path.
func (e *Engine) PrintVariablesToFile(path string) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if err := e.requireParams(); err != nil {
		return err
	}
	if !e.api.printVariables(path) {
		return fmt.Errorf("write variables to %s failed", path)
	}
	return nil
}
