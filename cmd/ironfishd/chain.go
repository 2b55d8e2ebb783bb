package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func chainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "chain",
		Short:             "Inspect the chain engine",
		PersistentPreRunE: nodeInit,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current chain head",
		RunE:  chainStatus,
	})
	return cmd
}

func chainStatus(cmd *cobra.Command, _ []string) error {
	head, has, err := activeNode.engine.Head()
	if err != nil {
		return err
	}
	if !has {
		fmt.Fprintln(cmd.OutOrStdout(), "no blocks connected yet")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "head: %x\n", head)
	return nil
}
