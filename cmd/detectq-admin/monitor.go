package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/detectq/internal/bootstrap"
	"github.com/target/detectq/internal/domain/model"
)

type backlogSampleOptions struct {
	Publish bool
	JSON    bool
}

func newBacklogCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "backlog", Short: "Backlog monitor operations"}

	opts := backlogSampleOptions{}
	sample := &cobra.Command{
		Use:   "sample",
		Short: "Read queue depth and fleet size once",
		Long: `Read queue depth and fleet size once and print the backlog per instance.
Nothing is published unless --publish is set, in which case the sample is sent
to the configured metric sinks exactly as a monitor tick would.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runBacklogSample(cmdCtx, opts)
		},
	}
	sample.Flags().BoolVar(&opts.Publish, "publish", false, "publish the sample to the configured metric sinks")
	sample.Flags().BoolVar(&opts.JSON, "json", false, "print the sample as JSON")
	cmd.AddCommand(sample)
	return cmd
}

func runBacklogSample(cmdCtx *commandContext, opts backlogSampleOptions) error {
	return cmdCtx.withSession(defaultCommandTimeout, func(ctx context.Context, s *session) error {
		runner, err := bootstrap.NewMonitorRunner(s.Deps, cmdCtx.Logger)
		if err != nil {
			return err
		}
		svc := runner.Service()

		var sample model.BacklogSample
		if opts.Publish {
			sample, err = svc.Tick(ctx)
		} else {
			sample, err = svc.Sample(ctx)
		}
		if err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(cmdCtx.Out, sample)
		}
		return printBacklogSample(cmdCtx.Out, sample, opts.Publish)
	})
}

func printBacklogSample(w io.Writer, sample model.BacklogSample, published bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Fleet", sample.Fleet},
		{"Queue depth", fmt.Sprintf("%d", sample.QueueDepth)},
		{"Desired instances", fmt.Sprintf("%d", sample.FleetDesiredSize)},
		{"Backlog per instance", fmt.Sprintf("%.2f", sample.BacklogPerInstance)},
		{"Sampled at", sample.SampledAt.Format(time.RFC3339)},
		{"Published", fmt.Sprintf("%t", published)},
	}
	for _, r := range rows {
		if err := writef(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func newFleetCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "fleet", Short: "Worker fleet operations"}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Verify the configured fleet exists, as the monitor does at startup",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runFleetCheck(cmdCtx)
		},
	})
	return cmd
}

func runFleetCheck(cmdCtx *commandContext) error {
	return cmdCtx.withSession(defaultCommandTimeout, func(ctx context.Context, s *session) error {
		runner, err := bootstrap.NewMonitorRunner(s.Deps, cmdCtx.Logger)
		if err != nil {
			return err
		}
		if err := runner.Service().CheckFleet(ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "fleet %s found\n", cmdCtx.Config.Monitor.FleetName)
	})
}
