package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/recgen/recgen/internal/config"
	"github.com/recgen/recgen/internal/logger"
	"github.com/recgen/recgen/internal/services/kitchen"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	configPath  string
	detectURL   string
	generateURL string
	timeout     time.Duration
	format      string

	cfg *config.Config
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recgen",
		Short:         "Render recipe text and talk to the detection and recipe services",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("detect-url") {
				loaded.Component.DetectURL = detectURL
			}
			if cmd.Flags().Changed("generate-url") {
				loaded.Component.GenerateURL = generateURL
			}
			if cmd.Flags().Changed("timeout") {
				loaded.Component.Timeout = timeout
			}
			cfg = loaded

			slog.SetDefault(logger.NewWithWriter(cfg.Env, cmd.ErrOrStderr()))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "optional YAML config file")
	root.PersistentFlags().StringVar(&detectURL, "detect-url", "", "detection endpoint (default from DETECT_URL)")
	root.PersistentFlags().StringVar(&generateURL, "generate-url", "", "recipe endpoint (default from GENERATE_URL)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "remote call timeout (default from REMOTE_TIMEOUT)")
	root.PersistentFlags().StringVarP(&format, "format", "f", formatText, "output format: text or json")

	root.AddCommand(renderCmd(), detectCmd(), generateCmd())
	return root
}

func newKitchenClient() *kitchen.Client {
	return kitchen.NewClient(cfg.Component.DetectURL, cfg.Component.GenerateURL, cfg.Component.Timeout)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat() error {
	switch format {
	case formatText, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q, want %s or %s", format, formatText, formatJSON)
}
