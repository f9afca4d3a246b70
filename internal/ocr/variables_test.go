package ocr

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	input := `# digits only
tessedit_char_whitelist 0123456789

  load_system_dawg	F
debug_file
preserve_interword_spaces   1
`
	settings, err := ParseConfig(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	want := []Setting{
		{Name: "tessedit_char_whitelist", Value: "0123456789"},
		{Name: "load_system_dawg", Value: "F"},
		{Name: "debug_file", Value: ""},
		{Name: "preserve_interword_spaces", Value: "1"},
	}
	if len(settings) != len(want) {
		t.Fatalf("got %d settings, want %d: %v", len(settings), len(want), settings)
	}
	for i := range want {
		if settings[i] != want[i] {
			t.Errorf("setting %d = %+v, want %+v", i, settings[i], want[i])
		}
	}
}

func TestIsGlobalVariable(t *testing.T) {
	tests := map[VariableName]bool{
		VarMinLinesize:             true,
		VarNumericMode:             true,
		"textord_tabfind_vertical": true,
		"classify_max_rating":      true,
		VarCharWhitelist:           false,
		VarPreserveInterwordSpaces: false,
	}
	for name, want := range tests {
		if got := IsGlobalVariable(name); got != want {
			t.Errorf("IsGlobalVariable(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestValue_Format(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Value{Type: TypeInt, Int: 300}, "300"},
		{Value{Type: TypeBool, Bool: true}, "1"},
		{Value{Type: TypeBool}, "0"},
		{Value{Type: TypeDouble, Double: 1.25}, "1.25"},
		{Value{Type: TypeString, String: "abc"}, "abc"},
	}
	for _, tt := range tests {
		if got := tt.v.Format(); got != tt.want {
			t.Errorf("%+v.Format() = %q, want %q", tt.v, got, tt.want)
		}
	}
}

// writeDataPath creates <dir>/tessdata/eng.traineddata plus the given
// config files under <dir>/tessdata/configs.
func writeDataPath(t *testing.T, configs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	confDir := filepath.Join(dir, "tessdata", "configs")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "tessdata", "eng.traineddata"), []byte("x"), 0o644)
	for name, body := range configs {
		os.WriteFile(filepath.Join(confDir, name), []byte(body), 0o644)
	}
	return dir
}

func TestFindConfig_SearchOrder(t *testing.T) {
	dir := writeDataPath(t, map[string]string{"digits": "x 1"})
	os.MkdirAll(filepath.Join(dir, "configs"), 0o755)
	os.WriteFile(filepath.Join(dir, "configs", "digits"), []byte("x 2"), 0o644)
	os.WriteFile(filepath.Join(dir, "configs", "local"), []byte("x 3"), 0o644)

	got, err := findConfig(dir, "digits")
	if err != nil || got != filepath.Join(dir, "tessdata", "configs", "digits") {
		t.Errorf("findConfig(digits) = %q, %v", got, err)
	}
	got, err = findConfig(dir, "local")
	if err != nil || got != filepath.Join(dir, "configs", "local") {
		t.Errorf("findConfig(local) = %q, %v", got, err)
	}
	if _, err := findConfig(dir, "nope"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("findConfig(nope) = %v, want ErrConfigNotFound", err)
	}

	abs := filepath.Join(dir, "configs", "local")
	if got, _ := findConfig(dir, abs); got != abs {
		t.Errorf("absolute path resolved to %q", got)
	}
}

func TestEngine_ReadConfigFile(t *testing.T) {
	dir := writeDataPath(t, map[string]string{
		"initonly": "load_system_dawg 0\n# comment\n\ntessedit_char_whitelist 0123\n",
		"runtime":  "tessedit_char_blacklist xyz\n",
	})
	e, api, _ := newFakeEngine(t)
	if err := e.Init(InitOptions{DataPath: dir, Mode: OEMDefault}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := e.ReadConfigFile("runtime", false); err != nil {
		t.Fatalf("ReadConfigFile(runtime): %v", err)
	}
	if len(api.readConfig) != 1 || api.readConfig[0] != filepath.Join(dir, "tessdata", "configs", "runtime") {
		t.Errorf("native read = %v", api.readConfig)
	}

	if err := e.ReadConfigFile("initonly", true); err != nil {
		t.Fatalf("ReadConfigFile(initonly): %v", err)
	}
	if len(api.readConfig) != 1 {
		t.Error("init-only config was applied immediately")
	}
	if err := e.Init(InitOptions{DataPath: dir, Mode: OEMDefault}); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	vars := api.inits[len(api.inits)-1].vars
	if len(vars) != 2 || vars[0].Name != "load_system_dawg" || vars[1].Value != "0123" {
		t.Errorf("deferred vars = %v", vars)
	}

	if err := e.ReadConfigFile("missing", false); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("ReadConfigFile(missing) = %v, want ErrConfigNotFound", err)
	}
}

func TestEngine_ReadConfigFileBeforeInit(t *testing.T) {
	dir := writeDataPath(t, map[string]string{"runtime": "tessedit_char_blacklist xyz\n"})
	e, api, _ := newFakeEngine(t)

	if err := e.ReadConfigFile(filepath.Join(dir, "tessdata", "configs", "runtime"), false); err != nil {
		t.Fatalf("ReadConfigFile: %v", err)
	}
	if len(api.readConfig) != 0 {
		t.Error("config read natively before Init")
	}
	if v, ok, _ := e.StringVariable(VarCharBlacklist); !ok || v != "xyz" {
		t.Errorf("queued blacklist = %q, %v", v, ok)
	}
	if err := e.Init(InitOptions{DataPath: dir, Mode: OEMDefault}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if v, ok, _ := e.StringVariable(VarCharBlacklist); !ok || v != "xyz" {
		t.Errorf("blacklist after Init = %q, %v", v, ok)
	}
}

func TestEngine_InitResolvesConfigs(t *testing.T) {
	dir := writeDataPath(t, map[string]string{"digits": "tessedit_char_whitelist 0123456789\n"})
	e, api, _ := newFakeEngine(t)

	opts := InitOptions{DataPath: dir, Mode: OEMDefault, Configs: []string{"digits", "hocr"}}
	if err := e.Init(opts); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got := api.inits[0].configs
	if got[0] != filepath.Join(dir, "tessdata", "configs", "digits") || got[1] != "hocr" {
		t.Errorf("configs passed to native init = %v", got)
	}
}

func TestEngine_VariableAccessors(t *testing.T) {
	e, _ := newReadyEngine(t)

	if ok, _ := e.SetVariable(VarUserDefinedDPI, "300"); !ok {
		t.Fatal("SetVariable(user_defined_dpi) rejected")
	}
	if v, ok, err := e.IntVariable(VarUserDefinedDPI); err != nil || !ok || v != 300 {
		t.Errorf("IntVariable = %d, %v, %v", v, ok, err)
	}
	e.SetVariable(VarMinLinesize, "1.25")
	if v, ok, _ := e.DoubleVariable(VarMinLinesize); !ok || v != 1.25 {
		t.Errorf("DoubleVariable = %v, %v", v, ok)
	}
	e.SetVariable(VarPreserveInterwordSpaces, "1")
	if v, ok, _ := e.BoolVariable(VarPreserveInterwordSpaces); !ok || !v {
		t.Errorf("BoolVariable = %v, %v", v, ok)
	}

	val, ok, err := e.Variable(VarUserDefinedDPI)
	if err != nil || !ok || val.Type != TypeInt || val.Int != 300 {
		t.Errorf("Variable(dpi) = %+v, %v, %v", val, ok, err)
	}
	if _, ok, err := e.Variable("not_a_variable"); ok || err != nil {
		t.Errorf("unknown variable: ok=%v err=%v", ok, err)
	}

	if ok, _ := e.SetVariable("unknown_param", "1"); ok {
		t.Error("native rejection not reported")
	}
	rejected, err := e.SetVariables(map[VariableName]string{VarCharWhitelist: "abc", "unknown_x": "1"})
	if err != nil || len(rejected) != 1 || rejected[0] != "unknown_x" {
		t.Errorf("SetVariables rejected = %v, %v", rejected, err)
	}
}

func TestEngine_SetVariableDropsResults(t *testing.T) {
	e, api := newReadyEngine(t)
	e.UTF8Text()
	e.SetVariable(VarCharWhitelist, "0123")
	e.UTF8Text()
	if api.recognized != 2 {
		t.Errorf("recognized %d times, want 2 after a parameter change", api.recognized)
	}
}

func TestEngine_PrintVariablesToFile(t *testing.T) {
	e, _ := newReadyEngine(t)
	if err := e.PrintVariablesToFile(filepath.Join(t.TempDir(), "vars.txt")); err != nil {
		t.Errorf("PrintVariablesToFile: %v", err)
	}
	if err := e.PrintVariablesToFile(""); err == nil {
		t.Error("native failure not reported")
	}
}
