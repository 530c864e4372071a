// Command salectl deploys and operates a token sale stored in a local
// snapshot database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "salectl"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Operate a tiered, capped token sale",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default $SALE_DATA_DIR or ~/.libsale)")
	rootCmd.PersistentFlags().
		StringVar(&a.flags.configFile, "config", "", "deployment file (default <data-dir>/sale.yaml)")
	rootCmd.PersistentFlags().
		Int64Var(&a.flags.at, "at", 0, "run at this Unix time instead of now")
	rootCmd.PersistentFlags().
		StringVar(&a.flags.metricsFile, "metrics-file", "", "write Prometheus metrics of this run to a textfile")
	rootCmd.PersistentFlags().
		BoolVarP(&a.flags.debug, "debug", "D", false, "enable debug logging")

	// Subcommands
	rootCmd.AddCommand(initCommand(a))
	rootCmd.AddCommand(statusCommand(a))
	rootCmd.AddCommand(balanceCommand(a))
	rootCmd.AddCommand(depositCommand(a))
	rootCmd.AddCommand(purchaseCommand(a))
	rootCmd.AddCommand(partnerPurchaseCommand(a))
	rootCmd.AddCommand(haltCommand(a, true))
	rootCmd.AddCommand(haltCommand(a, false))
	rootCmd.AddCommand(transferCommand(a))
	rootCmd.AddCommand(approveCommand(a))
	rootCmd.AddCommand(unlockCommand(a))
	rootCmd.AddCommand(keygenCommand(a))
	rootCmd.AddCommand(signCommand(a))
	rootCmd.AddCommand(encodeCommand())
	rootCmd.AddCommand(walletCommand(a))
	return rootCmd
}
