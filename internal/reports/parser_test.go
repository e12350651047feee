package reports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counter-usage/internal/types"
)

func writeReport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseWideLayout(t *testing.T) {
	// COUNTER JR1 style: one column per month, a reporting period total
	// column that must NOT be double counted, and both ISSN flavors.
	path := writeReport(t, t.TempDir(), "jr1.tsv",
		"Journal\tPublisher\tPrint ISSN\tOnline ISSN\tReporting Period Total\tSep-2017\tOct-2017\n"+
			"Journal of Testing\tVendorY\t1111-1111\t2222-2222\t44\t42\t2\n")

	report, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)

	first := report.Records[0]
	assert.Equal(t, "Journal of Testing", first.Title)
	assert.Equal(t, "2222-2222", first.ISSN, "online ISSN preferred over print")
	assert.Equal(t, types.Month("2017-09"), first.Month)
	assert.Equal(t, 42, first.Count)

	assert.Equal(t, types.Month("2017-10"), report.Records[1].Month)
	assert.Equal(t, 2, report.Records[1].Count)
	assert.Equal(t, 0, report.SkippedRows)
}

func TestParseLongLayout(t *testing.T) {
	path := writeReport(t, t.TempDir(), "long.tsv",
		"Title\tISSN\tPeriod\tUsage\n"+
			"Journal A\t1111-1111\t2017-09\t7\n"+
			"Journal A\t1111-1111\t2017-10\tn/a\n"+ // non-numeric -> 0
			"Journal B\t2222-2222\tlast month\t3\n"+ // bad period -> skipped
			"\t\t2017-09\t9\n") // no keys -> skipped

	report, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)

	assert.Equal(t, 7, report.Records[0].Count)
	assert.Equal(t, 0, report.Records[1].Count)
	assert.Equal(t, 2, report.SkippedRows)
}

func TestParseThousandsSeparators(t *testing.T) {
	path := writeReport(t, t.TempDir(), "big.tsv",
		"Title\tISSN\tPeriod\tTotal Downloads\n"+
			"Journal A\t1111-1111\t2017-09\t1,204\n")

	report, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Equal(t, 1204, report.Records[0].Count)
}

func TestParseUnusableHeader(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "no title or issn column",
			content: "Publisher\tPlatform\tSep-2017\nVendorY\tWeb\t5\n",
		},
		{
			name:    "no usage columns",
			content: "Title\tISSN\nJournal A\t1111-1111\n",
		},
		{
			name:    "empty file",
			content: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeReport(t, dir, "bad.tsv", tt.content)
			_, err := Parse(path)
			assert.Error(t, err)
		})
	}
}

func TestParseRaggedRows(t *testing.T) {
	// Vendors truncate trailing empty cells; missing cells read as zero.
	path := writeReport(t, t.TempDir(), "ragged.tsv",
		"Title\tISSN\tSep-2017\tOct-2017\n"+
			"Journal A\t1111-1111\t4\n")

	report, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, report.Records, 2)
	assert.Equal(t, 4, report.Records[0].Count)
	assert.Equal(t, 0, report.Records[1].Count)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "b_vendor.tsv", "x")
	writeReport(t, dir, "a_vendor.tsv", "x")
	writeReport(t, dir, "notes.txt", "x")
	subscription := writeReport(t, dir, "subscriptions.tsv", "x")

	// TSVs in subdirectories (archives, the output dir) stay out of the run.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "output"), 0755))
	writeReport(t, filepath.Join(dir, "output"), "buried.tsv", "x")

	files, err := Discover(dir, subscription)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a_vendor.tsv"), files[0])
	assert.Equal(t, filepath.Join(dir, "b_vendor.tsv"), files[1])
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "absent"), "")
	assert.Error(t, err)
}
