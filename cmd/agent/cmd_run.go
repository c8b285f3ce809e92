package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deepnoodle-ai/agent"
	"github.com/spf13/cobra"
)

var (
	runThreadID      string
	runMaxIterations int
	runJSON          bool

	runCmd = &cobra.Command{
		Use:   "run [question]",
		Short: "Answer a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, agent.RunOptions{
				Query:         strings.Join(args, " "),
				MaxIterations: runMaxIterations,
				ThreadID:      runThreadID,
			})
		},
	}

	resumeCmd = &cobra.Command{
		Use:   "resume [checkpoint-id]",
		Short: "Resume a run from a checkpoint, or from the latest one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := agent.RunOptions{ThreadID: runThreadID}
			if len(args) == 1 {
				opts.CheckpointID = args[0]
				return execute(cmd, opts)
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			manager, err := a.manager()
			if err != nil {
				a.Close()
				return err
			}
			latest, err := manager.Latest(cmd.Context())
			a.Close()
			if err != nil {
				return err
			}
			opts.CheckpointID = latest.ID
			return execute(cmd, opts)
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{runCmd, resumeCmd} {
		c.Flags().StringVar(&runThreadID, "thread", "", "Thread id for the run")
		c.Flags().BoolVar(&runJSON, "json", false, "Print the summary as JSON")
	}
	runCmd.Flags().IntVarP(&runMaxIterations, "max-iterations", "n", 0, "Override the configured iteration budget")
}

func execute(cmd *cobra.Command, opts agent.RunOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	driver, shutdown, err := a.driver(out)
	if err != nil {
		return err
	}
	defer shutdown(context.WithoutCancel(ctx))

	summary, err := driver.Run(ctx, opts)
	if err != nil {
		return err
	}
	if err := printSummary(out, summary, runJSON); err != nil {
		return err
	}
	if summary.Failed() {
		return errors.New("run failed")
	}
	return nil
}
