package subscriptions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"counter-usage/internal/config"
	"counter-usage/internal/types"
)

// row builds one 13-field subscription export row.
func row(title, access, pkg, issn, vendor string) string {
	fields := make([]string, 13)
	fields[colTitle] = title
	fields[colAccess] = access
	fields[colPackage] = pkg
	fields[colISSN] = issn
	fields[colVendor] = vendor
	return strings.Join(fields, "\t")
}

// writeTable writes rows as the subscription TSV and returns a config
// pointing at it.
func writeTable(t *testing.T, rows ...string) *config.MainConfig {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "subscriptions.tsv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return &config.MainConfig{InputDir: dir, SubscriptionFile: "subscriptions.tsv"}
}

func TestLoadBasicEntry(t *testing.T) {
	cfg := writeTable(t,
		row("TitleA", "Online", "PackageX", "1111-1111", "VendorY"),
	)

	table, err := Load(cfg)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)

	entry := table.Entries[0]
	assert.Equal(t, "TitleA", entry.Title)
	assert.Equal(t, "PackageX", entry.Package)
	assert.Equal(t, "VendorY", entry.Vendor)

	byISSN, ok := table.LookupISSN("1111-1111")
	require.True(t, ok)
	assert.Same(t, entry, byISSN)

	byTitle, ok := table.LookupTitle("  titlea ")
	require.True(t, ok)
	assert.Same(t, entry, byTitle)
}

func TestLoadPackageCollapse(t *testing.T) {
	cfg := writeTable(t,
		// Blank package column: the title is the package.
		row("Standalone Journal", "Online", "", "1111-1111", "V"),
		// Colons are cut because they break output file names.
		row("Other Journal", "Online", "Big Deal: Humanities", "2222-2222", "V"),
	)

	table, err := Load(cfg)
	require.NoError(t, err)

	assert.Equal(t, "Standalone Journal", table.Entries[0].Package)
	assert.Equal(t, "Big Deal", table.Entries[1].Package)
}

func TestLoadAccessFiltering(t *testing.T) {
	cfg := writeTable(t,
		row("Online Journal", "Online", "P1", "1111-1111", "V"),
		// Digital means password-only; the entry is kept for classification
		// but stays out of the lookups.
		row("Password Magazine", "Digital", "P2", "2222-2222", "V"),
	)

	table, err := Load(cfg)
	require.NoError(t, err)
	assert.Len(t, table.Entries, 2)

	_, ok := table.LookupISSN("2222-2222")
	assert.False(t, ok)
	_, ok = table.LookupTitle("Password Magazine")
	assert.False(t, ok)
}

func TestLoadPackageMarkerISSN(t *testing.T) {
	cfg := writeTable(t,
		row("Package Row", "Online", "PackageX", types.PackageMarkerISSN, "V"),
	)

	table, err := Load(cfg)
	require.NoError(t, err)

	// Marker rows are not ISSN-matchable and not missing-ISSN either.
	_, ok := table.LookupISSN(types.PackageMarkerISSN)
	assert.False(t, ok)
	assert.Empty(t, table.NoISSN)
}

func TestLoadNoISSN(t *testing.T) {
	cfg := writeTable(t,
		row("Unidentified Journal", "Online", "P", "", "V"),
	)

	table, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Unidentified Journal"}, table.NoISSN)

	// Still reachable by title for matching.
	_, ok := table.LookupTitle("Unidentified Journal")
	assert.True(t, ok)
}

func TestLoadSpecialCaseVendors(t *testing.T) {
	cfg := writeTable(t,
		row("Normal Journal", "Online", "P", "1111-1111", "VendorY"),
		row("Weird Journal", "Online", "P", "2222-2222", "Edizioni Minerva Medica"),
	)
	cfg.SpecialCaseVendors = []string{"Edizioni Minerva Medica"}

	table, err := Load(cfg)
	require.NoError(t, err)

	assert.Len(t, table.Entries, 1)
	assert.Equal(t, 1, table.SkippedSpecial)
	_, ok := table.LookupISSN("2222-2222")
	assert.False(t, ok)
}

func TestLoadDuplicateISSN(t *testing.T) {
	cfg := writeTable(t,
		row("First Journal", "Online", "P1", "1111-1111", "V"),
		row("Second Journal", "Online", "P2", "1111-1111", "V"),
	)

	table, err := Load(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"1111-1111"}, table.DuplicateISSNs)
	entry, ok := table.LookupISSN("1111-1111")
	require.True(t, ok)
	assert.Equal(t, "First Journal", entry.Title, "first entry wins")
}

func TestLoadShortRowFatal(t *testing.T) {
	cfg := writeTable(t,
		row("Good Row", "Online", "P", "1111-1111", "V"),
		"Short Row\tOnline\tonly three fields",
	)

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestLoadMissingFileFatal(t *testing.T) {
	cfg := &config.MainConfig{InputDir: t.TempDir(), SubscriptionFile: "absent.tsv"}
	_, err := Load(cfg)
	assert.Error(t, err)
}

func TestLoadExtraSubscriptions(t *testing.T) {
	cfg := writeTable(t,
		row("Existing Journal", "Online", "P", "1111-1111", "V"),
	)
	cfg.ExtraSubscriptions = map[string]config.ExtraSubscription{
		"0013-9157": {Title: "Environment", Vendor: "Taylor & Francis"},
	}

	table, err := Load(cfg)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)

	entry, ok := table.LookupISSN("0013-9157")
	require.True(t, ok)
	assert.Equal(t, "Environment", entry.Title)
	assert.Equal(t, "Environment", entry.Package)

	_, ok = table.LookupTitle("environment")
	assert.True(t, ok)
}

func TestLoadExtraSubscriptionsCollision(t *testing.T) {
	cfg := writeTable(t,
		row("Old Title", "Online", "Old Package", "1111-1111", "V"),
	)
	cfg.ExtraSubscriptions = map[string]config.ExtraSubscription{
		"1111-1111": {Title: "New Title", Package: "New Package", Vendor: "W"},
	}

	table, err := Load(cfg)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1, "collision rewrites, not duplicates")

	entry, ok := table.LookupISSN("1111-1111")
	require.True(t, ok)
	assert.Equal(t, "New Title", entry.Title)
	assert.Equal(t, "New Package", entry.Package)

	// Title lookup follows the rewrite.
	_, ok = table.LookupTitle("Old Title")
	assert.False(t, ok)
	_, ok = table.LookupTitle("New Title")
	assert.True(t, ok)
}

func TestLoadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subscriptions.xlsx")

	f := excelize.NewFile()
	cells := make([]interface{}, 13)
	for i := range cells {
		cells[i] = ""
	}
	cells[colTitle] = "Sheet Journal"
	cells[colAccess] = "Online"
	cells[colPackage] = "PackageX"
	cells[colISSN] = "1111-1111"
	cells[colVendor] = "VendorY"
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &cells))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	cfg := &config.MainConfig{InputDir: dir, SubscriptionFile: "subscriptions.xlsx"}
	table, err := Load(cfg)
	require.NoError(t, err)

	entry, ok := table.LookupISSN("1111-1111")
	require.True(t, ok)
	assert.Equal(t, "Sheet Journal", entry.Title)
	assert.Equal(t, "PackageX", entry.Package)
}
