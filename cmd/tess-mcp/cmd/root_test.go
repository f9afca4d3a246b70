package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ironsheep/tesseract-mcp/internal/server"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel, tessdata, languages = "", "", "", ""
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	SetVersionInfo("1.2.3", "2026-01-01", "abc123")
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{server.ServerName, "1.2.3", "abc123", "Tesseract:"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestToolsCmd(t *testing.T) {
	out, err := execute(t, "tools")
	if err != nil {
		t.Fatalf("tools failed: %v", err)
	}
	var tools []server.Tool
	if err := json.Unmarshal([]byte(out), &tools); err != nil {
		t.Fatalf("tools output is not JSON: %v", err)
	}
	if len(tools) != len(server.GetToolDefinitions()) {
		t.Errorf("got %d tools, want %d", len(tools), len(server.GetToolDefinitions()))
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("TESS_MCP_LANGUAGES", "fra")
	configPath, logLevel, tessdata, languages = "", "debug", "/srv/tessdata", "deu+eng"
	defer func() { configPath, logLevel, tessdata, languages = "", "", "", "" }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Languages != "deu+eng" || cfg.Tessdata != "/srv/tessdata" || cfg.LogLevel != "debug" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	_, err := execute(t, "check", "--log-level", "loud")
	if err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("expected log_level error, got %v", err)
	}
}
