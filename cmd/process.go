// =============================================================================
// COUNTER Usage Converter - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the full pipeline.
//
// PROCESSING PIPELINE:
//   1. Load configuration
//   2. Load the subscription table (fatal on any structural problem)
//   3. Discover *.tsv usage reports in the input directory
//   4. For each report, sequentially:
//      a. Detect the column layout from the header row
//      b. Extract usage records (bad rows skipped and counted)
//      c. Accumulate records into package totals
//   5. Zero-fill the coverage window and classify zero-usage titles
//   6. Write per-package import files and diagnostic reports
//   7. Print a summary
//
// The pass is deliberately single-threaded: the whole batch is a few
// thousand rows and the outputs must be byte-stable.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"counter-usage/internal/aggregator"
	"counter-usage/internal/config"
	"counter-usage/internal/reports"
	"counter-usage/internal/subscriptions"
	"counter-usage/internal/writer"
)

// dryRun aggregates and classifies without writing any output files.
var dryRun bool

// reportFile, when set, processes a single usage report instead of scanning
// the input directory.
var reportFile string

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the usage-to-import conversion pipeline",
	Long: `The process command loads the subscription table, reads every *.tsv usage
report in the input directory, joins usage rows to subscription packages by
ISSN (falling back to title), and writes one import file per package plus
the diagnostic reports.

A malformed subscription table halts the run. Malformed usage report rows
are skipped, counted, and reported in the summary; they never abort the
batch. Rerunning with identical inputs rewrites identical outputs.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess()
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Aggregate and classify without writing output files",
	)

	processCmd.Flags().StringVar(
		&reportFile,
		"report",
		"",
		"Process a single usage report file instead of scanning the input directory",
	)
}

// runProcess orchestrates the conversion pipeline.
func runProcess() error {
	startTime := time.Now()

	fmt.Println("=== COUNTER Usage Converter ===")
	fmt.Println("Loading configuration...")

	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// =========================================================================
	// STEP 1: SUBSCRIPTION TABLE
	// =========================================================================
	// The one input the run cannot survive without.

	fmt.Println("Loading subscription table...")

	table, err := subscriptions.Load(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d subscription entries (%d reachable by ISSN)\n",
		len(table.Entries), table.MatchableISSNs())

	// =========================================================================
	// STEP 2: DISCOVER USAGE REPORTS
	// =========================================================================

	var files []string
	if reportFile != "" {
		files = []string{reportFile}
	} else {
		files, err = reports.Discover(cfg.InputDir, cfg.SubscriptionPath())
		if err != nil {
			return err
		}
	}

	if len(files) == 0 {
		// Still worth finishing: every subscription classifies as zero
		// usage or no-report, which is exactly the diagnostic wanted when
		// a reporting period has no data yet.
		fmt.Println("No usage reports found in the input directory.")
	} else {
		fmt.Printf("Found %d usage report(s)\n", len(files))
	}

	// =========================================================================
	// STEP 3: AGGREGATE
	// =========================================================================

	agg := aggregator.New(table, cfg.NoCounterSet())
	if verbose {
		agg.Logf = func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		}
	}

	for _, file := range files {
		report, err := reports.Parse(file)
		if err != nil {
			fmt.Printf("  ✗ %s: %v\n", filepath.Base(file), err)
			agg.SkipReport()
			continue
		}

		for _, rec := range report.Records {
			agg.Add(rec)
		}
		agg.AddReportStats(report.SkippedRows)

		fmt.Printf("  ✓ %s (%d records)\n", filepath.Base(file), len(report.Records))
	}

	result := agg.Finalize(cfg.CoverageMonths(), cfg.LowUsageThreshold)

	// =========================================================================
	// STEP 4: WRITE OUTPUT
	// =========================================================================

	written := 0
	if dryRun {
		fmt.Println("Dry run: skipping output files.")
	} else {
		written, err = writer.New(cfg).WriteAll(result)
		if err != nil {
			return err
		}
	}

	// =========================================================================
	// STEP 5: SUMMARY
	// =========================================================================

	stats := result.Stats
	cls := result.Classification

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Reports processed:   %d\n", stats.ReportsProcessed)
	if stats.ReportsSkipped > 0 {
		fmt.Printf("Reports skipped:     %d\n", stats.ReportsSkipped)
	}
	fmt.Printf("Records read:        %d\n", stats.RecordsRead)
	fmt.Printf("Records matched:     %d\n", stats.RecordsMatched)
	fmt.Printf("Records unmatched:   %d\n", stats.RecordsUnmatched)
	if stats.RowsSkipped > 0 {
		fmt.Printf("Rows skipped:        %d\n", stats.RowsSkipped)
	}
	fmt.Printf("Package files:       %d\n", written)
	fmt.Printf("Zero usage titles:   %d\n", len(cls.ZeroUsage))
	fmt.Printf("No-report titles:    %d\n", len(cls.NoReport))
	fmt.Printf("Titles without ISSN: %d\n", len(cls.NoISSN))
	if cfg.LowUsageThreshold > 0 {
		fmt.Printf("Low usage packages:  %d (threshold %d)\n", len(cls.LowUsage), cfg.LowUsageThreshold)
	}
	fmt.Printf("Time elapsed:        %s\n", time.Since(startTime))

	return nil
}
