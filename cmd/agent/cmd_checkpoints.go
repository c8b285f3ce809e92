package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/deepnoodle-ai/agent"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	checkpointsCmd = &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"cp"},
		Short:   "Inspect and manage saved checkpoints",
	}

	checkpointsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, newest first",
		Args:  cobra.NoArgs,
		RunE: withManager(func(cmd *cobra.Command, args []string, manager *agent.CheckpointManager) error {
			ctx := cmd.Context()
			summaries, err := manager.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No checkpoints")
				return nil
			}
			slices.Reverse(summaries)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTEP\tITERATION\tSAVED\tSIZE")
			for _, s := range summaries {
				size := "?"
				if n, err := manager.Size(ctx, s.ID); err == nil {
					size = humanize.Bytes(uint64(n))
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.StepName, s.Iteration, humanize.Time(s.Timestamp), size)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			total, err := manager.TotalSize(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d checkpoints, %s total\n", len(summaries), humanize.Bytes(uint64(total)))
			return nil
		}),
	}

	checkpointsShowCmd = &cobra.Command{
		Use:   "show [checkpoint-id]",
		Short: "Print a checkpoint as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withManager(func(cmd *cobra.Command, args []string, manager *agent.CheckpointManager) error {
			record, err := manager.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}),
	}

	checkpointsDeleteCmd = &cobra.Command{
		Use:   "delete [checkpoint-id...]",
		Short: "Delete checkpoints",
		Args:  cobra.MinimumNArgs(1),
		RunE: withManager(func(cmd *cobra.Command, args []string, manager *agent.CheckpointManager) error {
			for _, id := range args {
				deleted, err := manager.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if deleted {
					color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				} else {
					color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "Not found: %s\n", id)
				}
			}
			return nil
		}),
	}

	checkpointsClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all checkpoints",
		Args:  cobra.NoArgs,
		RunE: withManager(func(cmd *cobra.Command, args []string, manager *agent.CheckpointManager) error {
			removed, err := manager.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoints\n", removed)
			return nil
		}),
	}
)

func withManager(fn func(cmd *cobra.Command, args []string, manager *agent.CheckpointManager) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		manager, err := a.manager()
		if err != nil {
			return err
		}
		return fn(cmd, args, manager)
	}
}
