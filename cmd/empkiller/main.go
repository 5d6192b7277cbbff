package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appLog "github.com/Alzter/EmpKiller/internal/log"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "empkiller",
	Short: "EmpKiller — EmpLive ESS roster retrieval and calendar sync",
	Long:  "EmpKiller logs into the EmpLive employee self-service portal, scrapes your weekly shift roster into structured records, and keeps a calendar in sync with it.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			appLog.SetLevel(appLog.LevelDebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "empkiller.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
