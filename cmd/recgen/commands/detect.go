package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recgen/recgen/internal/render"
	"github.com/recgen/recgen/internal/services/kitchen"
	"github.com/recgen/recgen/internal/validation"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Upload a photo and print detected ingredients and suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			img, err := validation.ValidateImage(filepath.Base(args[0]), data, cfg.Component.MaxUploadBytes)
			if err != nil {
				return err
			}

			res, err := newKitchenClient().Detect(cmd.Context(), kitchen.Image{
				Name:        img.Name,
				ContentType: img.ContentType,
				Data:        data,
			})
			if err != nil {
				return err
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printDetection(cmd.OutOrStdout(), res)
		},
	}
	return cmd
}

func printDetection(w io.Writer, res *kitchen.DetectResult) error {
	if res.Error != "" {
		fmt.Fprintf(w, "Service error: %s\n", res.Error)
	}
	fmt.Fprintln(w, "Ingredients:")
	if len(res.Detected) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, name := range res.Detected {
		fmt.Fprintf(w, "  %s %s\n", render.IngredientIcon(name), name)
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintln(w, "Suggestions:")
		for i, name := range res.Suggestions {
			fmt.Fprintf(w, "  [%d] %s\n", i, name)
		}
	}
	if res.Recipe != "" {
		fmt.Fprintln(w)
		_, err := io.WriteString(w, render.Parse(res.Recipe).Text())
		return err
	}
	return nil
}
