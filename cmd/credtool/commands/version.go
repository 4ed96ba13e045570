package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arhuman/tempunit/internal/version"
)

func newVersionCmd() *cobra.Command {
	var verbose, short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Printing the version must not depend on a valid environment.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case verbose && short:
				return fmt.Errorf("--verbose and --short are mutually exclusive")
			case verbose:
				fmt.Fprintln(out, version.Info())
			case short:
				fmt.Fprintln(out, version.Short())
			default:
				fmt.Fprintln(out, version.Component("credtool"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include the Go toolchain version")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")
	return cmd
}
