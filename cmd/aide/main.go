// aide — SQL practice with ephemeral, isolated datasets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aide",
	Short: "aide — practice SQL against generated, isolated datasets.",
	Long: `aide serves SQL practice sessions: each session gets a private schema
populated from a generated question, answers are verified by result-set
comparison, and abandoned schemas are reclaimed by scheduled sweeps.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
