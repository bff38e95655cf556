package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/receiptor/pkg/api"
	"github.com/ArionMiles/receiptor/pkg/artifact"
	"github.com/ArionMiles/receiptor/pkg/pipeline"
	"github.com/ArionMiles/receiptor/pkg/summary"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVendorsCommand(t *testing.T) {
	out, err := execute(t, "vendors")
	require.NoError(t, err)

	for _, name := range []string{"caviar", "doordash", "grubhub", "instacart", "ubereats"} {
		assert.Contains(t, out, name)
	}
	assert.NotContains(t, out, "dummy")
}

func TestExtractCommand(t *testing.T) {
	rec := artifact.Record{
		SummaryEntry: api.SummaryEntry{MessageID: "m1", ImporterName: "caviar"},
		NormalizedMessage: &api.NormalizedMessage{
			Subject: "Your Caviar order from Cafe X",
			Date:    time.Date(2021, 1, 5, 13, 4, 5, 0, time.UTC),
			HTML:    "<p>receipt</p>",
			Text:    "Delivery Address\n1 Main St\nTotal Charged $12.34\n",
		},
		RawMessage: &api.RawMessage{ID: "m1"},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "caviar_m1.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "extract", path)
	require.NoError(t, err)

	var results []*api.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.NotNil(t, results[0])
	assert.Equal(t, "12.34", results[0].Amount)
	assert.Equal(t, "Cafe X", results[0].VendorName)
}

func TestExtractCommand_UnknownVendor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"importerName":"nope","normalizedMessage":{}}`), 0o644))

	_, err := execute(t, "extract", path)
	assert.Error(t, err)
}

const archive = `From support@trycaviar.com Tue Jan  5 13:04:05 2021
From: Caviar <support@trycaviar.com>
To: me@example.com
Subject: Your Caviar order from Cafe X
Date: Tue, 05 Jan 2021 13:04:05 +0000
Message-Id: <caviar-1@trycaviar.com>
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

Delivery Address
1 Main St
Total Charged $12.34

--b1
Content-Type: text/html; charset=utf-8

<html><body><p>Total Charged $12.34</p></body></html>
--b1--
`

func TestDownloadCommand_Mbox(t *testing.T) {
	dir := t.TempDir()
	mboxPath := filepath.Join(dir, "mail.mbox")
	require.NoError(t, os.WriteFile(mboxPath, []byte(archive), 0o644))
	outDir := filepath.Join(dir, "out")

	_, err := execute(t, "download",
		"--mbox", mboxPath,
		"--out-dir", outDir,
		"--vendors", "caviar",
		"--artifacts", "json,html,txt",
		"--start-date", "2021-01-01",
		"--end-date", "2021-01-31",
	)
	require.NoError(t, err)

	entries, err := summary.Load(summary.Path(outDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "caviar", entries[0].ImporterName)
	assert.Equal(t, "12.34", entries[0].Metadata.Amount)

	for _, kind := range []api.ArtifactKind{api.ArtifactJSON, api.ArtifactHTML, api.ArtifactText} {
		name, ok := entries[0].File(kind)
		require.True(t, ok, "missing %s artifact", kind)
		assert.FileExists(t, filepath.Join(outDir, name))
	}
	_, ok := entries[0].File(api.ArtifactPDF)
	assert.False(t, ok)
}

func TestDownloadCommand_InvalidDates(t *testing.T) {
	_, err := execute(t, "download", "--mbox", "x.mbox", "--start-date", "2021-02-01", "--end-date", "2021-01-01")
	assert.Error(t, err)
}

func TestFlushSummary(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	previous := []byte(`[{"messageId":"old"}]`)
	entry := api.SummaryEntry{MessageID: "new", ImporterName: "caviar"}
	boom := errors.New("quota exceeded")

	tests := []struct {
		name    string
		result  *pipeline.Result
		runErr  error
		wantIDs []string
	}{
		{"failed run without entries keeps previous", &pipeline.Result{Entries: []api.SummaryEntry{}}, boom, []string{"old"}},
		{"failed run with entries", &pipeline.Result{Entries: []api.SummaryEntry{entry}}, boom, []string{"new"}},
		{"successful empty run", &pipeline.Result{Entries: []api.SummaryEntry{}}, nil, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := summary.Path(t.TempDir())
			require.NoError(t, os.WriteFile(path, previous, 0o644))

			require.NoError(t, flushSummary(path, tc.result, tc.runErr, logger))

			entries, err := summary.Load(path)
			require.NoError(t, err)
			var ids []string
			for _, e := range entries {
				ids = append(ids, e.MessageID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}
