package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/recgen/recgen/internal/render"
)

func renderCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render recipe text as display blocks (stdin when no file or -)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(); err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read recipe: %w", err)
			}

			var opts []render.Option
			if raw || cfg.Component.RawMarkup {
				opts = append(opts, render.WithRawMarkup())
			}
			return printRecipe(cmd.OutOrStdout(), render.New(opts...).Parse(string(text)))
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "classify without stripping markdown")
	return cmd
}

func printRecipe(w io.Writer, blocks render.Blocks) error {
	if format == formatJSON {
		return writeJSON(w, struct {
			Title  string        `json:"title,omitempty"`
			Blocks render.Blocks `json:"blocks"`
		}{blocks.Title(), blocks})
	}
	_, err := io.WriteString(w, blocks.Text())
	return err
}
