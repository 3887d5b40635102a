package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"questionbank/internal/app"
)

// NewCatalogCmd groups category and difficulty maintenance.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Remove categories and difficulty levels that no question uses",
	}
	cmd.AddCommand(newCatalogDeleteCmd(configPath, "delete-category", func(svc *app.CatalogService) func(*cobra.Command, int) error {
		return func(cmd *cobra.Command, id int) error { return svc.DeleteCategory(cmd.Context(), id) }
	}))
	cmd.AddCommand(newCatalogDeleteCmd(configPath, "delete-difficulty", func(svc *app.CatalogService) func(*cobra.Command, int) error {
		return func(cmd *cobra.Command, id int) error { return svc.DeleteDifficulty(cmd.Context(), id) }
	}))
	return cmd
}

func newCatalogDeleteCmd(configPath *string, use string, op func(*app.CatalogService) func(*cobra.Command, int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: "Delete by id, refusing while questions refer to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			categories, err := rt.factory.Categories()
			if err != nil {
				return err
			}
			difficulties, err := rt.factory.Difficulties()
			if err != nil {
				return err
			}
			questions, err := rt.factory.Questions()
			if err != nil {
				return err
			}
			return op(app.NewCatalogService(categories, difficulties, questions))(cmd, id)
		},
	}
}
