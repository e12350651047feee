// =============================================================================
// COUNTER Usage Converter - Validate Command
// =============================================================================
//
// This file defines the 'validate' command: a dry check of the configuration
// and the subscription table that writes nothing. Useful after a fresh
// subscription export arrives, before committing to a full run.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"counter-usage/internal/config"
	"counter-usage/internal/subscriptions"
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and subscription table without processing",
	Long: `The validate command loads the configuration and the subscription table,
then reports entry counts, duplicate ISSNs, and titles missing an ISSN.
No usage reports are read and no output files are written.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate() error {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Config OK: coverage %s through %s (%d months)\n",
		cfg.CoverageStart, cfg.CoverageEnd, len(cfg.CoverageMonths()))
	fmt.Printf("Subscription table: %s\n", cfg.SubscriptionPath())

	table, err := subscriptions.Load(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Entries loaded:        %d\n", len(table.Entries))
	fmt.Printf("Reachable by ISSN:     %d\n", table.MatchableISSNs())
	fmt.Printf("Titles without ISSN:   %d\n", len(table.NoISSN))
	fmt.Printf("Special cases skipped: %d\n", table.SkippedSpecial)

	if len(table.DuplicateISSNs) > 0 {
		fmt.Printf("Duplicate ISSNs (%d), first entry wins:\n", len(table.DuplicateISSNs))
		for _, issn := range table.DuplicateISSNs {
			fmt.Printf("  %s\n", issn)
		}
	}

	if verbose {
		for _, title := range table.NoISSN {
			fmt.Printf("  no ISSN: %s\n", title)
		}
	}

	return nil
}
