// =============================================================================
// COUNTER Usage Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (process, validate, version) are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (counter-usage)
//   ├── processCmd  (counter-usage process)
//   ├── validateCmd (counter-usage validate)
//   └── versionCmd  (counter-usage version)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cfgFile holds the path to the configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables per-record diagnostics when set to true.
var verbose bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "counter-usage",
	Short: "Convert vendor COUNTER usage reports into cost-per-use import files",
	Long: `counter-usage converts vendor-supplied COUNTER-style usage reports and a
subscription/package export into per-package usage files ready for import
into a cost-per-use analytics platform.

The pipeline joins usage report rows to subscription packages by ISSN
(falling back to title), sums usage per package per month, and writes one
import file per package plus diagnostic reports for titles with unexpected
zero usage, titles whose vendors supply no reports at all, and titles
missing an ISSN.

Example Usage:
  counter-usage process                  # Run the full pipeline
  counter-usage process --dry-run        # Aggregate without writing files
  counter-usage validate                 # Check the subscription table only`,

	Run: func(cmd *cobra.Command, args []string) {
		// No subcommand: print the help message.
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags are available to this command and all subcommands.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Log per-record diagnostics (unmatched usage rows)",
	)
}
