package mbox

import (
	"context"
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
	"github.com/ArionMiles/receiptor/pkg/importers/caviar"
	"github.com/ArionMiles/receiptor/pkg/mimetree"
)

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
Content-Transfer-Encoding: quoted-printable

Delivery Address
1 Main St
Total Charged $12.34

--b1
Content-Type: text/html; charset=utf-8

<html><body><p>Total Charged $12.34</p></body></html>
--b1--

From orders@eat.grubhub.com Fri Jan  1 09:00:00 2021
From: Grubhub <orders@eat.grubhub.com>
Subject: =?UTF-8?Q?Your_order_from_Caf=C3=A9_Y?=
Date: Fri, 01 Jan 2021 09:00:00 +0000
Message-Id: <grubhub-1@grubhub.com>
MIME-Version: 1.0
Content-Type: text/html; charset=windows-1252

<p>Total charge $5.00</p>

From support@trycaviar.com Mon Feb  1 10:00:00 2021
From: Caviar <support@trycaviar.com>
Subject: Your Caviar order from Cafe Z is ready for pickup
Date: Mon, 01 Feb 2021 10:00:00 +0000
Message-Id: <caviar-2@trycaviar.com>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain

Ready
--inner
Content-Type: text/html

<p>Ready</p>
--inner--

--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="receipt.pdf"
Content-Transfer-Encoding: base64

JVBERi0=
--outer--
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func load(t *testing.T) *Source {
	t.Helper()
	src, err := Load(strings.NewReader(archive), "test.mbox", quietLogger())
	require.NoError(t, err)
	require.Equal(t, 3, src.Len())
	return src
}

func list(t *testing.T, src *Source, req api.ListRequest) []string {
	t.Helper()
	page, err := src.List(context.Background(), req)
	require.NoError(t, err)
	return page.IDs
}

func TestLoad_BuildsPartTree(t *testing.T) {
	src := load(t)
	ids := list(t, src, api.ListRequest{})
	require.Len(t, ids, 3)

	raw, err := src.Get(context.Background(), ids[2])
	require.NoError(t, err)

	assert.Equal(t, "multipart/mixed", raw.Payload.MimeType)
	require.Len(t, raw.Payload.Parts, 2)
	assert.Equal(t, "0", raw.Payload.Parts[0].PartID)
	assert.Equal(t, "multipart/alternative", raw.Payload.Parts[0].MimeType)
	assert.Equal(t, "0.1", raw.Payload.Parts[0].Parts[1].PartID)
	assert.Equal(t, "receipt.pdf", raw.Payload.Parts[1].Filename)

	pdf, err := mimetree.DecodeBody(raw.Payload.Parts[1])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", pdf)

	msg, err := mimetree.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Your Caviar order from Cafe Z is ready for pickup", msg.Subject)
	assert.Equal(t, "<p>Ready</p>", msg.HTML)
	assert.True(t, msg.Date.Equal(time.Date(2021, 2, 1, 10, 0, 0, 0, time.UTC)))
}

func TestLoad_DecodesHeadersAndCharsets(t *testing.T) {
	src := load(t)
	ids := list(t, src, api.ListRequest{Query: "from:grubhub"})
	require.Len(t, ids, 1)

	raw, err := src.Get(context.Background(), ids[0])
	require.NoError(t, err)

	msg, err := mimetree.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Your order from Café Y", msg.Subject)
	assert.Contains(t, msg.HTML, "Total charge $5.00")
	assert.False(t, msg.HasText())
}

func TestLoad_StableIDs(t *testing.T) {
	first := list(t, load(t), api.ListRequest{})
	second := list(t, load(t), api.ListRequest{})

	assert.Equal(t, first, second)
	for _, id := range first {
		assert.Len(t, id, 16)
	}
}

func TestList_QueryAndRange(t *testing.T) {
	src := load(t)

	tests := []struct {
		name  string
		req   api.ListRequest
		wantN int
	}{
		{name: "all", req: api.ListRequest{}, wantN: 3},
		{name: "caviar query", req: api.ListRequest{Query: caviar.New().Query().Q}, wantN: 2},
		{name: "negation", req: api.ListRequest{Query: `from:(support@trycaviar.com) -"ready for pickup"`}, wantN: 1},
		{
			name: "january only",
			req: api.ListRequest{
				After:  time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
				Before: time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			wantN: 2,
		},
		{name: "body search", req: api.ListRequest{Query: `"Total Charged"`}, wantN: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, list(t, src, tt.req), tt.wantN)
		})
	}
}

func TestList_Paginates(t *testing.T) {
	src := load(t)
	all := list(t, src, api.ListRequest{})

	var got []string
	token := ""
	calls := 0
	for {
		page, err := src.List(context.Background(), api.ListRequest{PageToken: token, MaxResults: 2})
		require.NoError(t, err)
		calls++
		got = append(got, page.IDs...)
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, all, got)
}

func TestList_BadToken(t *testing.T) {
	_, err := load(t).List(context.Background(), api.ListRequest{PageToken: "x"})
	assert.Error(t, err)
}

func TestGet_Unknown(t *testing.T) {
	_, err := load(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail.mbox")
	require.NoError(t, os.WriteFile(path, []byte(archive), 0o644))

	src, err := Open(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	_, err = Open(filepath.Join(t.TempDir(), "missing.mbox"), quietLogger())
	assert.Error(t, err)
}
