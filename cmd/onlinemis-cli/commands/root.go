package commands

import (
	"context"
	"fmt"
	"onlinemis-backend/lib/telemetry"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "onlinemis-cli",
	Short: "onlinemis-cli logs into online.mis and prints what the portal shows.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file holding the portal credentials.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output and dump every http exchange.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
