package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pulsekeep/pulsekeep/internal/queue"
)

func init() {
	dlqCmd := &cobra.Command{Use: "dlq", Short: "Dead-letter queue operations"}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered stop events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close() }()

			dead, err := storage.Queue.ListDead(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(dead)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum messages to return")
	dlqCmd.AddCommand(listCmd)

	replayCmd := &cobra.Command{
		Use:   "replay HANDLE",
		Short: "Requeue a dead-lettered stop event for another delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			storage, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close() }()

			if err := storage.Queue.Replay(ctx, queue.AckHandle(handle)); err != nil {
				return err
			}
			cmd.Printf("replayed %d\n", handle)
			return nil
		},
	}
	dlqCmd.AddCommand(replayCmd)

	rootCmd.AddCommand(dlqCmd)
}
