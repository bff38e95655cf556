package collate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/receiptor/pkg/api"
)

type names map[string]string

func (n names) DisplayName(name string) string {
	if dn, ok := n[name]; ok {
		return dn
	}
	return "Unknown"
}

var displayNames = names{"caviar": "Caviar", "grubhub": "Grubhub"}

type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, html, outPath string, _ api.RenderOptions) error {
	if f.err != nil {
		return f.err
	}
	f.html = html
	return os.WriteFile(outPath, []byte("%PDF cover"), 0o644)
}

type fakeMerger struct {
	inFiles []string
	outFile string
}

func (f *fakeMerger) Merge(_ context.Context, inFiles []string, outFile string) error {
	for _, in := range inFiles {
		if _, err := os.Stat(in); err != nil {
			return err
		}
	}
	f.inFiles = inFiles
	f.outFile = outFile
	return os.WriteFile(outFile, []byte("%PDF merged"), 0o644)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(d int) time.Time {
	return time.Date(2021, 1, d, 12, 0, 0, 0, time.UTC)
}

func entry(id, vendor string, date time.Time, amount string) api.SummaryEntry {
	return api.SummaryEntry{
		MessageID:    id,
		ImporterName: vendor,
		Metadata: api.ExtractionResult{
			Filename:   vendor + "_" + id,
			Date:       date,
			Amount:     amount,
			VendorName: "Cafe " + id,
		},
		Files: map[api.ArtifactKind]string{api.ArtifactPDF: vendor + "_" + id + ".pdf"},
	}
}

func TestBuild_SortsAndTotals(t *testing.T) {
	entries := []api.SummaryEntry{
		entry("a", "caviar", day(5), "10.00"),
		entry("b", "caviar", day(1), "5.00"),
	}

	report, err := Build(entries, nil, false, displayNames)
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, day(1), report.Rows[0].Date)
	assert.Equal(t, day(5), report.Rows[1].Date)
	assert.Equal(t, "15.00", report.Total)
}

func TestBuild_Filters(t *testing.T) {
	excluded := entry("x", "caviar", day(2), "100.00")
	excluded.Exclude = true
	noPDF := entry("n", "caviar", day(3), "7.00")
	noPDF.Files = map[api.ArtifactKind]string{api.ArtifactJSON: "caviar_n.json"}

	entries := []api.SummaryEntry{
		entry("a", "caviar", day(4), "1.10"),
		excluded,
		noPDF,
		entry("g", "grubhub", day(1), "2.20"),
		entry("d", "doordash", day(6), "3.30"),
	}

	tests := []struct {
		name       string
		vendors    []string
		requirePDF bool
		wantIDs    []string
		wantTotal  string
	}{
		{
			name:      "all vendors",
			wantIDs:   []string{"g", "n", "a", "d"},
			wantTotal: "13.60",
		},
		{
			name:       "requires document",
			requirePDF: true,
			wantIDs:    []string{"g", "a", "d"},
			wantTotal:  "6.60",
		},
		{
			name:      "vendor subset",
			vendors:   []string{"caviar", "grubhub"},
			wantIDs:   []string{"g", "n", "a"},
			wantTotal: "10.30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Build(entries, tt.vendors, tt.requirePDF, displayNames)
			require.NoError(t, err)

			var ids []string
			for _, r := range report.Rows {
				ids = append(ids, r.Entry.MessageID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, report.Total)
		})
	}
}

func TestBuild_StableForEqualDates(t *testing.T) {
	entries := []api.SummaryEntry{
		entry("first", "caviar", day(1), "1"),
		entry("second", "caviar", day(1), "1"),
		entry("third", "caviar", day(1), "1"),
	}

	report, err := Build(entries, nil, false, displayNames)
	require.NoError(t, err)

	assert.Equal(t, "first", report.Rows[0].Entry.MessageID)
	assert.Equal(t, "second", report.Rows[1].Entry.MessageID)
	assert.Equal(t, "third", report.Rows[2].Entry.MessageID)
	assert.Equal(t, "3.00", report.Total)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil, nil, false, displayNames)
	assert.ErrorIs(t, err, ErrNoEntries)

	_, err = Build([]api.SummaryEntry{entry("a", "caviar", day(1), "12,34")}, nil, false, displayNames)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoEntries)
}

func TestRenderCover(t *testing.T) {
	e := entry("b", "mystery", day(1), "5")
	e.Metadata.VendorName = ""
	entries := []api.SummaryEntry{entry("a", "caviar", day(5), "10.00"), e}

	report, err := Build(entries, nil, false, displayNames)
	require.NoError(t, err)

	html, err := RenderCover(report)
	require.NoError(t, err)

	assert.Contains(t, html, "January 1, 2021")
	assert.Contains(t, html, "January 5, 2021")
	assert.Contains(t, html, `Caviar <span class="vendor-name">(Cafe a)</span>`)
	assert.Contains(t, html, "Unknown</td>")
	assert.Contains(t, html, "$5.00")
	assert.Contains(t, html, "$15.00")
	assert.Contains(t, html, ".entries-table")
	assert.Less(t, strings.Index(html, "January 1, 2021"), strings.Index(html, "January 5, 2021"))
}

func TestCollate_CoverOnly(t *testing.T) {
	dir := t.TempDir()
	renderer := &fakeRenderer{}
	c := New(renderer, nil, displayNames, quietLogger())

	report, err := c.Collate(context.Background(), []api.SummaryEntry{entry("a", "caviar", day(1), "5.00")}, Options{InDir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DefaultOutFile), report.Path)
	assert.FileExists(t, report.Path)
	assert.Contains(t, renderer.html, "$5.00")
}

func TestCollate_Concatenates(t *testing.T) {
	dir := t.TempDir()
	entries := []api.SummaryEntry{
		entry("a", "caviar", day(5), "10.00"),
		entry("b", "grubhub", day(1), "5.00"),
	}
	for _, e := range entries {
		name, _ := e.File(api.ArtifactPDF)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF"), 0o644))
	}
	merger := &fakeMerger{}
	c := New(&fakeRenderer{}, merger, displayNames, quietLogger())

	report, err := c.Collate(context.Background(), entries, Options{InDir: dir, OutFile: "out.pdf", Concatenate: true})
	require.NoError(t, err)

	assert.Equal(t, "15.00", report.Total)
	assert.Equal(t, filepath.Join(dir, "out.pdf"), merger.outFile)
	require.Len(t, merger.inFiles, 3)
	assert.Contains(t, filepath.Base(merger.inFiles[0]), "cover-")
	assert.Equal(t, filepath.Join(dir, "grubhub_b.pdf"), merger.inFiles[1])
	assert.Equal(t, filepath.Join(dir, "caviar_a.pdf"), merger.inFiles[2])
	assert.NoFileExists(t, merger.inFiles[0])
}

func TestCollate_RenderFailure(t *testing.T) {
	boom := errors.New("wkhtmltopdf missing")
	c := New(&fakeRenderer{err: boom}, nil, displayNames, quietLogger())

	_, err := c.Collate(context.Background(), []api.SummaryEntry{entry("a", "caviar", day(1), "5.00")}, Options{InDir: t.TempDir()})
	assert.ErrorIs(t, err, boom)
}
