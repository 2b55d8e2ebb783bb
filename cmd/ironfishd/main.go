// Command ironfishd wires the chain engine, mempool, syncer and chain
// processor together for manual exercising, the way cmd/cli built one
// cobra.Command per subsystem action against a lazily initialized
// package-level singleton.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "ironfishd"}
	rootCmd.AddCommand(chainCmd())
	rootCmd.AddCommand(mempoolCmd())
	rootCmd.AddCommand(syncCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
