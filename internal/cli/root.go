package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/pinaccess/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Pinaccess plans pin access points for placed designs",
		Long: `Pinaccess computes legal, low-cost access points for every signal pin of a
placed design, selects a compatible combination per instance and per row of
abutting cells, and keeps the result current under incremental placement changes.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.runCommand())
	root.AddCommand(c.classesCommand())
	root.AddCommand(c.ecoCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
