package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "sync",
		Short:             "Control the block syncer",
		PersistentPreRunE: nodeInit,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the syncer's background loop",
		RunE:  syncStart,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the syncer's background loop",
		RunE:  syncStop,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the syncer's current state",
		RunE:  syncStatus,
	})
	return cmd
}

func syncStart(cmd *cobra.Command, _ []string) error {
	activeNode.syncer.Start(context.Background())
	fmt.Fprintln(cmd.OutOrStdout(), "syncer started")
	return nil
}

func syncStop(cmd *cobra.Command, _ []string) error {
	activeNode.syncer.Stop()
	fmt.Fprintln(cmd.OutOrStdout(), "syncer stopped")
	return nil
}

func syncStatus(cmd *cobra.Command, _ []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n", activeNode.syncer.State())
	return nil
}
