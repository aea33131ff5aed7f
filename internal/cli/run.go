package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pinaccess/pkg/batch"
	pkgio "github.com/matzehuels/pinaccess/pkg/io"
)

// runOpts holds the flags of the run command.
type runOpts struct {
	plan        planFlags
	output      string // assignments JSON
	export      string // batch sink: file path or mongodb:// URI
	metricsAddr string
	hold        bool // keep serving metrics after the run
}

// runCommand creates the run command: the full planning flow.
func (c *CLI) runCommand() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan pin access for a placed design",
		Long: `Run classifies instances, generates access points per unique class,
selects instance and row patterns, and writes the resulting access point per pin.

Resolved points can also be exported per row cluster as batches, either as JSON
lines to a file or as documents in MongoDB (--export mongodb://host/).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlan(cmd.Context(), &opts)
		},
	}

	opts.plan.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write assignments to this JSON file")
	cmd.Flags().StringVar(&opts.export, "export", "", "export row batches to a JSON-lines file or mongodb:// URI")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	cmd.Flags().BoolVar(&opts.hold, "hold", false, "keep serving metrics after the run until interrupted")

	return cmd
}

func (c *CLI) runPlan(ctx context.Context, opts *runOpts) error {
	if opts.metricsAddr != "" {
		m, err := startMetrics(opts.metricsAddr, c.Logger)
		if err != nil {
			return err
		}
		defer m.shutdown()
	}

	r, err := c.newRunner(ctx, &opts.plan)
	if err != nil {
		return err
	}
	defer r.Close()

	var sink batch.Sink
	if opts.export != "" {
		if sink, err = batch.Open(ctx, opts.export); err != nil {
			return err
		}
		defer sink.Close()
	}

	res, err := r.Run(ctx, sink)
	if err != nil {
		return err
	}
	printRunSummary(res)

	if opts.output != "" {
		if err := pkgio.ExportAssignments(r.Design, res.Assignments, opts.output); err != nil {
			return err
		}
		printFile(opts.output)
	}
	if opts.export != "" && len(res.FailedBatches) == 0 {
		printSuccess("Exported batches of run %s", res.RunID)
	}

	if opts.hold && opts.metricsAddr != "" {
		printInfo("Serving metrics until interrupted")
		<-ctx.Done()
	}
	return nil
}
