// =============================================================================
// COUNTER Usage Converter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the COUNTER usage converter CLI. It
// initializes the Cobra CLI framework and delegates command execution to the
// cmd package.
//
// USAGE:
//   counter-usage process    - Convert usage reports to per-package files
//   counter-usage validate   - Check the subscription table without writing
//   counter-usage version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core pipeline logic (not for external import)
//   - pkg/           : Shared utilities
//
// =============================================================================

package main

import (
	"counter-usage/cmd"
)

func main() {
	cmd.Execute()
}
