package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func mempoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "mempool",
		Short:             "Inspect the mempool",
		PersistentPreRunE: nodeInit,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show pending transaction count",
		RunE:  mempoolStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "fee [percentile]",
		Short: "Show the suggested fee at a percentile (default 50)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  mempoolFee,
	})
	return cmd
}

func mempoolStatus(cmd *cobra.Command, _ []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "pending transactions: %d\n", activeNode.mempool.Size())
	return nil
}

func mempoolFee(cmd *cobra.Command, args []string) error {
	percentile := 50
	if len(args) == 1 {
		p, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid percentile %q: %w", args[0], err)
		}
		percentile = p
	}
	fmt.Fprintf(cmd.OutOrStdout(), "suggested fee (p%d): %s\n", percentile, activeNode.mempool.SuggestedFee(percentile))
	return nil
}
