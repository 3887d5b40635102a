package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckCmd runs startup backend selection and prints the outcome.
func NewCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the configured backends and report which one would be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend: %s\n", rt.selection.Mode)
			if rt.selection.RemoteErr != nil {
				fmt.Fprintf(out, "table store: %v\n", rt.selection.RemoteErr)
			}
			if rt.selection.DirectErr != nil {
				fmt.Fprintf(out, "direct: %v\n", rt.selection.DirectErr)
			} else {
				fmt.Fprintf(out, "direct port: %d (%s)\n", rt.selection.Port, rt.selection.Latency)
			}
			if _, err := rt.factory.Questions(); err != nil {
				return err
			}
			return nil
		},
	}
}
