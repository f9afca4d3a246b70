// Package cmd holds the tess-mcp command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/tesseract-mcp/internal/config"
	"github.com/ironsheep/tesseract-mcp/internal/server"
)

var (
	configPath string
	logLevel   string
	tessdata   string
	languages  string
)

// NewRootCmd builds the command tree. Running it without a subcommand
// serves MCP on stdin/stdout.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tess-mcp",
		Short: "MCP server for Tesseract OCR",
		Long: "tess-mcp exposes Tesseract text recognition to MCP clients over stdin/stdout.\n\n" +
			"Configure it in your MCP client (e.g., Claude Desktop). Logs go to stderr.\n\n" +
			"Environment variables:\n" +
			"  " + config.EnvTessdata + "    tessdata directory\n" +
			"  " + config.EnvLanguages + "   languages, e.g. eng+deu\n" +
			"  " + config.EnvTimeout + "     recognition timeout, e.g. 30s\n" +
			"  " + config.EnvLogLevel + "   debug, info, warn or error",
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "engine profile (YAML)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the profile")
	root.PersistentFlags().StringVar(&tessdata, "tessdata", "", "tessdata directory, overrides the profile")
	root.PersistentFlags().StringVarP(&languages, "languages", "l", "", "languages, overrides the profile")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve MCP on stdin/stdout (default)",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newVersionCmd(),
		newCheckCmd(),
		newToolsCmd(),
	)
	return root
}

// loadConfig reads the profile and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if tessdata != "" {
		cfg.Tessdata = tessdata
	}
	if languages != "" {
		cfg.Languages = languages
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr; stdout carries the protocol.
func newLogger(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(cfg.Level())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	log.WithFields(logrus.Fields{
		"version":   version,
		"commit":    gitCommit,
		"languages": cfg.Languages,
	}).Debug("starting tess-mcp")

	srv := server.New(server.WithConfig(cfg), server.WithLogger(log))
	if err := srv.Run(); err != nil {
		log.WithError(err).Error("server error")
		return err
	}
	return nil
}
