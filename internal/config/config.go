// Package config loads the engine profile the server starts with.
//
// A profile is a YAML file:
//
//	tessdata: /usr/share/tesseract-ocr/5
//	languages: eng+deu
//	engine_mode: lstm
//	page_seg_mode: auto
//	variables:
//	  preserve_interword_spaces: "1"
//	config_files: [digits]
//	timeout: 30s
//	log_level: info
//
// Every field is optional. TESS_MCP_TESSDATA, TESS_MCP_LANGUAGES,
// TESS_MCP_TIMEOUT and TESS_MCP_LOG_LEVEL override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/tesseract-mcp/internal/ocr"
)

// Environment variables that override profile fields.
const (
	EnvTessdata  = "TESS_MCP_TESSDATA"
	EnvLanguages = "TESS_MCP_LANGUAGES"
	EnvTimeout   = "TESS_MCP_TIMEOUT"
	EnvLogLevel  = "TESS_MCP_LOG_LEVEL"
)

// DefaultTimeout bounds a single recognition call.
const DefaultTimeout = 60 * time.Second

// Config is the engine profile.
type Config struct {
	Tessdata    string            `yaml:"tessdata"`
	Languages   string            `yaml:"languages"`
	EngineMode  string            `yaml:"engine_mode"`
	PageSegMode string            `yaml:"page_seg_mode"`
	Variables   map[string]string `yaml:"variables"`
	ConfigFiles []string          `yaml:"config_files"`
	Timeout     time.Duration     `yaml:"timeout"`
	LogLevel    string            `yaml:"log_level"`

	// SourcePPI is assumed for images that carry no resolution. Zero
	// leaves the library's estimate.
	SourcePPI int `yaml:"source_ppi"`
}

// Default returns the profile used when no file is given.
func Default() *Config {
	return &Config{
		Languages:  ocr.DefaultLanguage,
		EngineMode: "default",
		Timeout:    DefaultTimeout,
		LogLevel:   "info",
	}
}

// Load reads the profile at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvTessdata); ok {
		c.Tessdata = v
	}
	if v, ok := lookup(EnvLanguages); ok && v != "" {
		c.Languages = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks every field that has a fixed vocabulary.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ocr.ParseLanguageSpec(c.Languages); err != nil {
		errs = append(errs, fmt.Errorf("languages: %w", err))
	}
	if _, err := ocr.ParseEngineMode(c.EngineMode); err != nil {
		errs = append(errs, fmt.Errorf("engine_mode: %w", err))
	}
	if c.PageSegMode != "" {
		if _, err := ocr.ParsePageSegMode(c.PageSegMode); err != nil {
			errs = append(errs, fmt.Errorf("page_seg_mode: %w", err))
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout: negative duration %s", c.Timeout))
	}
	if c.SourcePPI < 0 {
		errs = append(errs, fmt.Errorf("source_ppi: negative value %d", c.SourcePPI))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// InitOptions converts the profile into engine init options.
func (c *Config) InitOptions() (ocr.InitOptions, error) {
	langs, err := ocr.ParseLanguageSpec(c.Languages)
	if err != nil {
		return ocr.InitOptions{}, err
	}
	mode, err := ocr.ParseEngineMode(c.EngineMode)
	if err != nil {
		return ocr.InitOptions{}, err
	}
	return ocr.InitOptions{
		DataPath:  c.Tessdata,
		Languages: langs,
		Mode:      mode,
		Configs:   c.ConfigFiles,
		Variables: c.Variables,
	}, nil
}

// PageSegModeValue returns the configured mode and whether one was set.
func (c *Config) PageSegModeValue() (ocr.PageSegMode, bool) {
	if c.PageSegMode == "" {
		return 0, false
	}
	m, err := ocr.ParsePageSegMode(c.PageSegMode)
	return m, err == nil
}

// Level returns the logrus level, falling back to info.
func (c *Config) Level() logrus.Level {
	l, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}
