package cli

import (
	"context"

	"github.com/spf13/cobra"

	pkgio "github.com/matzehuels/pinaccess/pkg/io"
)

type ecoOpts struct {
	plan   planFlags
	moves  string
	output string
}

// ecoCommand creates the eco command: plan a design, apply placement moves
// and update only what they affect.
func (c *CLI) ecoCommand() *cobra.Command {
	var opts ecoOpts

	cmd := &cobra.Command{
		Use:   "eco",
		Short: "Apply placement moves and update pin access incrementally",
		Long: `Eco plans the design, applies the moves listed in --moves (new origin and
orientation, or removal, per instance name) and re-plans only the classes and
row clusters the moves touch. With a warm cache the initial plan is cheap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runECO(cmd.Context(), &opts)
		},
	}

	opts.plan.register(cmd)
	cmd.Flags().StringVarP(&opts.moves, "moves", "m", "", "move list (JSON)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write updated assignments to this JSON file")
	_ = cmd.MarkFlagRequired("moves")

	return cmd
}

func (c *CLI) runECO(ctx context.Context, opts *ecoOpts) error {
	r, err := c.newRunner(ctx, &opts.plan)
	if err != nil {
		return err
	}
	defer r.Close()

	moves, err := pkgio.ImportMoves(opts.moves, r.Design)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	if _, err := r.Run(ctx, nil); err != nil {
		return err
	}
	prog.done("initial plan")

	rep, err := r.ECO(ctx, moves)
	if err != nil {
		return err
	}
	prog.done("applied moves", "moves", len(moves))
	printReport(rep)

	if opts.output != "" {
		if err := pkgio.ExportAssignments(r.Design, r.Assignments(), opts.output); err != nil {
			return err
		}
		printFile(opts.output)
	}
	return nil
}
