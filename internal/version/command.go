package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCommand adds a `version` subcommand to root that prints Full.
func AttachCommand(root *cobra.Command) {
	name := root.Name()

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the " + name + " build.",
		Long: fmt.Sprintf("Print the %s release, commit and build date. "+
			"Release builds set them through -ldflags; local builds report %q.", name, Version),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	})
}
