// =============================================================================
// COUNTER Usage Converter - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - subscriptions
//   - reports
//   - aggregator
//   - writer
//
// =============================================================================

package types

import (
	"sort"
	"strings"
	"time"
)

// =============================================================================
// MONTHS
// =============================================================================

// Month is a usage period key in "YYYY-MM" form. The string representation
// sorts chronologically, so Month values can be ordered with a plain string
// sort.
type Month string

// monthLayouts are the header/cell shapes vendors actually ship. Column order
// varies per vendor and so does the month spelling; all of these normalize to
// the same Month key.
var monthLayouts = []string{
	"2006-01",
	"Jan-2006",
	"Jan-06",
	"January 2006",
	"2006/01",
	"01/2006",
	"2006-01-02",
}

// ParseMonth parses a vendor-supplied period value into a Month.
// Returns false if the value does not look like a month in any known layout.
func ParseMonth(s string) (Month, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Month(t.Format("2006-01")), true
		}
	}
	return "", false
}

// Date renders the month as the first-of-month date string the import
// platform expects (YYYY-MM-01).
func (m Month) Date() string {
	return string(m) + "-01"
}

// Time converts the month key back to a time.Time (first of month, UTC).
func (m Month) Time() (time.Time, error) {
	return time.Parse("2006-01", string(m))
}

// MonthRange returns every month from start through end inclusive.
// Returns nil if either bound is invalid or end precedes start.
func MonthRange(start, end Month) []Month {
	s, err := start.Time()
	if err != nil {
		return nil
	}
	e, err := end.Time()
	if err != nil {
		return nil
	}
	var months []Month
	for t := s; !t.After(e); t = t.AddDate(0, 1, 0) {
		months = append(months, Month(t.Format("2006-01")))
	}
	return months
}

// SortMonths sorts a slice of months chronologically in place.
func SortMonths(months []Month) {
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
}

// =============================================================================
// SUBSCRIPTION TYPES
// =============================================================================

// PackageMarkerISSN is the pseudo-ISSN the subscription vendor uses to mark a
// row as a package identifier rather than an actual publication. Entries
// carrying it are treated as having no ISSN for matching purposes.
const PackageMarkerISSN = "9999-9994"

// SubscriptionEntry represents one row of the subscription table.
// Entries are created at load time and read-only thereafter.
type SubscriptionEntry struct {
	// Title is the journal title as it appears in the subscription export.
	Title string

	// ISSN is the journal's ISSN. May be empty; empty entries are flagged
	// in the no-ISSN diagnostic regardless of usage outcome.
	ISSN string

	// Package is the payment unit this title belongs to. When the export
	// leaves the package column blank, the title itself is the package.
	// Truncated at the first colon because colons break output file names.
	Package string

	// Vendor is the supplying publisher/platform, used for the NoCounterSet
	// classification of zero-usage titles.
	Vendor string

	// Access is the vendor's access identifier. Only "online" entries
	// participate in usage matching; "digital" and similar values mean
	// password-only access with no retrievable report.
	Access string
}

// OnlineAccess reports whether the entry's access identifier allows usage
// matching.
func (e *SubscriptionEntry) OnlineAccess() bool {
	return strings.Contains(strings.ToLower(e.Access), "online")
}

// =============================================================================
// USAGE TYPES
// =============================================================================

// UsageRecord is one title/month/count observation extracted from a vendor
// usage report.
type UsageRecord struct {
	Title      string
	ISSN       string
	Month      Month
	Count      int
	SourceFile string
}

// PackageTotal accumulates matched usage for one package.
type PackageTotal struct {
	// Package is the payment-unit name, also the output file stem.
	Package string

	// Months holds the aggregated count per usage month.
	Months map[Month]int

	// Matched is the number of usage records that contributed to Months.
	Matched int
}

// NewPackageTotal returns an empty total for the named package.
func NewPackageTotal(pkg string) *PackageTotal {
	return &PackageTotal{Package: pkg, Months: make(map[Month]int)}
}

// Add accumulates a usage count for a month.
func (p *PackageTotal) Add(m Month, count int) {
	p.Months[m] += count
	p.Matched++
}

// Total returns the sum of usage across all months.
func (p *PackageTotal) Total() int {
	sum := 0
	for _, c := range p.Months {
		sum += c
	}
	return sum
}

// SortedMonths returns the months present in the total in chronological
// order. Output generation must iterate this, never the map, so that reruns
// produce byte-identical files.
func (p *PackageTotal) SortedMonths() []Month {
	months := make([]Month, 0, len(p.Months))
	for m := range p.Months {
		months = append(months, m)
	}
	SortMonths(months)
	return months
}

// =============================================================================
// VENDOR SETS
// =============================================================================

// VendorSet is a normalized set of vendor/publisher names. It backs both the
// NoCounterSet (vendors that never supply usable COUNTER data) and the
// special-case list (vendors whose usage is processed out of band).
type VendorSet map[string]struct{}

// NewVendorSet builds a set from vendor names, normalizing each.
func NewVendorSet(names ...string) VendorSet {
	set := make(VendorSet, len(names))
	for _, n := range names {
		if key := normalizeVendor(n); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the vendor is in the set, ignoring case and
// surrounding whitespace.
func (s VendorSet) Contains(name string) bool {
	_, ok := s[normalizeVendor(name)]
	return ok
}

func normalizeVendor(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// =============================================================================
// KEY NORMALIZATION
// =============================================================================

// NormalizeTitle produces the lookup key used for title-based matching:
// lower-cased, trimmed, inner whitespace collapsed. Vendors are sloppy about
// spacing and casing, the subscription export is not.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// NormalizeISSN trims and upper-cases an ISSN (the check digit may be "x").
func NormalizeISSN(issn string) string {
	return strings.ToUpper(strings.TrimSpace(issn))
}
