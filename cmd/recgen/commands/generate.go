package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recgen/recgen/internal/render"
)

func generateCmd() *cobra.Command {
	var (
		name        string
		ingredients []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Ask the recipe service for a recipe and render it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(); err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}

			res, err := newKitchenClient().Generate(cmd.Context(), name, ingredients)
			if err != nil {
				return err
			}
			if res.Error != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Service error: %s\n", res.Error)
			}
			return printRecipe(cmd.OutOrStdout(), render.Parse(res.Recipe))
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "recipe name")
	cmd.Flags().StringArrayVarP(&ingredients, "ingredient", "i", nil, "ingredient (repeatable)")
	return cmd
}
