// =============================================================================
// COUNTER Usage Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration. A single YAML file (config.yaml by default) controls:
//   - Directory layout (input data dir, output dir)
//   - The subscription table location
//   - The coverage window every package file must span
//   - The vendor exception lists (NoCounterSet, special cases)
//   - Manually maintained subscription entries the vendor export omits
//
// ARCHITECTURE:
//   The configuration system is designed to be:
//   - Self-contained: one file, no environment variables, no flags beyond
//     --config pointing at an alternate file
//   - Defaulted: every field has a sensible default so an empty file works
//   - Validated: directories are created and the coverage window checked
//     on load
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"counter-usage/internal/types"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the application configuration, loaded from config.yaml.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the data directory scanned for *.tsv usage reports.
	// Default: "./data"
	InputDir string `yaml:"input_dir"`

	// OutputDir is where the per-package import files and the diagnostic
	// reports are written.
	// Default: "./data/output"
	OutputDir string `yaml:"output_dir"`

	// SubscriptionFile is the subscription table. Resolved relative to
	// InputDir unless absolute. An .xlsx extension switches the loader to
	// spreadsheet mode.
	// Default: "subscriptions.tsv"
	SubscriptionFile string `yaml:"subscription_file"`

	// =========================================================================
	// COVERAGE WINDOW
	// =========================================================================
	// Every package file covers this month range; months with no matched
	// usage are filled with zero rows. COUNTER technically requires vendors
	// to report zero-use titles, but a lot of them don't.

	// CoverageStart is the first month of the window ("YYYY-MM"). Required.
	CoverageStart string `yaml:"coverage_start"`

	// CoverageEnd is the last month of the window ("YYYY-MM"). Required.
	CoverageEnd string `yaml:"coverage_end"`

	// =========================================================================
	// VENDOR EXCEPTION LISTS
	// =========================================================================

	// NoCounterVendors is the hand-maintained list of publishers known to
	// never supply usable COUNTER data (password-only access, no reports).
	// Subscriptions from these vendors with zero matched usage go to the
	// no-report diagnostic instead of the zero-usage one.
	NoCounterVendors []string `yaml:"no_counter_vendors"`

	// SpecialCaseVendors are publishers whose usage exists but is weird
	// enough to be handled out of band. Their entries are excluded from
	// ISSN/title matching entirely.
	SpecialCaseVendors []string `yaml:"special_case_vendors"`

	// =========================================================================
	// MANUAL SUBSCRIPTION ADDITIONS
	// =========================================================================

	// ExtraSubscriptions are entries missing from the vendor export, keyed
	// by ISSN. The export only includes fulfilled subscriptions, which
	// silently drops titles still awaiting fulfillment; list them here so
	// the view stays whole. Config entries win on ISSN collision.
	ExtraSubscriptions map[string]ExtraSubscription `yaml:"extra_subscriptions"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines per-package output file names.
	// Placeholders:
	//   {package}   - sanitized package name
	//   {timestamp} - run timestamp (YYYYMMDD_HHMMSS)
	//   {uuid}      - a random UUID
	// Only the default, {package}.csv, keeps reruns byte-identical;
	// {timestamp} and {uuid} deliberately produce run-unique names.
	// Default: "{package}.csv"
	OutputNameFormat string `yaml:"output_name_format"`

	// LowUsageThreshold, when greater than zero, adds a diagnostic listing
	// packages whose total usage over the whole window is below it.
	// Default: 0 (disabled)
	LowUsageThreshold int `yaml:"low_usage_threshold"`
}

// ExtraSubscription describes a manually added subscription entry.
type ExtraSubscription struct {
	// Title is the journal title.
	Title string `yaml:"title"`

	// Package is the payment unit; defaults to Title when empty.
	Package string `yaml:"package"`

	// Vendor is the supplying publisher, used for zero-usage classification.
	Vendor string `yaml:"vendor"`
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file, applies defaults,
// and validates it. Validation creates the input and output directories if
// they do not exist.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./data"
	}
	if config.OutputDir == "" {
		config.OutputDir = filepath.Join(config.InputDir, "output")
	}
	if config.SubscriptionFile == "" {
		config.SubscriptionFile = "subscriptions.tsv"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{package}.csv"
	}
}

// validate checks the coverage window and output name format, and creates
// the working directories.
func validate(config *MainConfig) error {
	if config.CoverageStart == "" || config.CoverageEnd == "" {
		return fmt.Errorf("coverage_start and coverage_end are required")
	}
	start, ok := types.ParseMonth(config.CoverageStart)
	if !ok {
		return fmt.Errorf("coverage_start %q is not a valid month (want YYYY-MM)", config.CoverageStart)
	}
	end, ok := types.ParseMonth(config.CoverageEnd)
	if !ok {
		return fmt.Errorf("coverage_end %q is not a valid month (want YYYY-MM)", config.CoverageEnd)
	}
	if end < start {
		return fmt.Errorf("coverage_end %s precedes coverage_start %s", end, start)
	}

	// Without a distinguishing placeholder every package would be written to
	// the same file.
	if !strings.Contains(config.OutputNameFormat, "{package}") &&
		!strings.Contains(config.OutputNameFormat, "{uuid}") {
		return fmt.Errorf("output_name_format %q needs a {package} or {uuid} placeholder", config.OutputNameFormat)
	}

	for _, dir := range []string{config.InputDir, config.OutputDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// =============================================================================
// DERIVED ACCESSORS
// =============================================================================

// SubscriptionPath resolves the subscription table location against InputDir.
func (c *MainConfig) SubscriptionPath() string {
	if filepath.IsAbs(c.SubscriptionFile) {
		return c.SubscriptionFile
	}
	return filepath.Join(c.InputDir, c.SubscriptionFile)
}

// CoverageMonths expands the coverage window into its list of months.
// The window is validated at load time, so this never returns an empty list
// for a loaded config.
func (c *MainConfig) CoverageMonths() []types.Month {
	start, _ := types.ParseMonth(c.CoverageStart)
	end, _ := types.ParseMonth(c.CoverageEnd)
	return types.MonthRange(start, end)
}

// NoCounterSet returns the NoCounterVendors list as a normalized VendorSet.
func (c *MainConfig) NoCounterSet() types.VendorSet {
	return types.NewVendorSet(c.NoCounterVendors...)
}

// SpecialCaseSet returns the SpecialCaseVendors list as a normalized VendorSet.
func (c *MainConfig) SpecialCaseSet() types.VendorSet {
	return types.NewVendorSet(c.SpecialCaseVendors...)
}
