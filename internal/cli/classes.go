package cli

import (
	"context"

	"github.com/spf13/cobra"
)

type classesOpts struct {
	plan     planFlags
	patterns bool
}

// classesCommand creates the classes command, which prints the unique
// instance classes of a design.
func (c *CLI) classesCommand() *cobra.Command {
	var opts classesOpts

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List unique instance classes",
		Long: `Classes groups instances by master, orientation and track offsets and prints
one line per class. With --patterns the access patterns of each class are
computed (or read from the cache) and counted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.listClasses(cmd.Context(), &opts)
		},
	}

	opts.plan.register(cmd)
	cmd.Flags().BoolVarP(&opts.patterns, "patterns", "p", false, "plan each class and count its access patterns")

	return cmd
}

func (c *CLI) listClasses(ctx context.Context, opts *classesOpts) error {
	r, err := c.newRunner(ctx, &opts.plan)
	if err != nil {
		return err
	}
	defer r.Close()

	prog := newProgress(c.Logger)
	skipped, err := r.Classes.Classify()
	if err != nil {
		return err
	}
	classes := r.Classes.Classes()
	prog.done("classified instances", "classes", len(classes), "skipped", skipped)

	if opts.patterns {
		spin := newSpinner(ctx, "Planning access patterns...")
		spin.Start()
		if err := r.PlanClasses(ctx, r.Classes.DirtyClasses()); err != nil {
			spin.StopWithError("Planning failed")
			return err
		}
		_, info := r.Stats()
		spin.StopWithSuccess("Planned %d classes (cache %s)", len(classes), info)
	}

	printClasses(r.Design, classes)
	return nil
}
