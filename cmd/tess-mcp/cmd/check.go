package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/tesseract-mcp/internal/ocr"
)

// newCheckCmd opens an engine with the profile and reports what it loaded,
// to diagnose a tessdata installation before an MCP client is pointed at it.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Initialize the engine with the profile and report its languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts, err := cfg.InitOptions()
			if err != nil {
				return err
			}

			e, err := ocr.Open(opts, ocr.WithLogger(newLogger(cfg)))
			if err != nil {
				return err
			}
			defer e.Close()

			loaded, err := e.LoadedLanguages()
			if err != nil {
				return err
			}
			available, err := e.AvailableLanguages()
			if err != nil {
				return err
			}
			psm, err := e.PageSegMode()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tesseract %s\n", ocr.Version())
			if cfg.Tessdata != "" {
				fmt.Fprintf(out, "  tessdata:  %s\n", cfg.Tessdata)
			}
			fmt.Fprintf(out, "  loaded:    %s\n", strings.Join(loaded, ", "))
			fmt.Fprintf(out, "  available: %s\n", strings.Join(available, ", "))
			fmt.Fprintf(out, "  psm:       %s\n", ocr.PageSegModeName(psm))
			return nil
		},
	}
}
