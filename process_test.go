package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bowmanjd/sucker/download"
	"github.com/bowmanjd/sucker/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.jpg":
			w.Write([]byte("JPEGDATA"))
		case "/logo":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("PNGDATA"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessRecords(t *testing.T) {
	srv := newFileServer(t)

	outDir := filepath.Join(t.TempDir(), "out")
	cfg := &Config{OutDir: outDir, Jobs: 1}

	records := []manifest.Record{
		{Name: "Shoes", SKU: "123", URL: srv.URL + "/a.jpg"},
		{Name: "Hat", SKU: "9", URL: ""},
		{Name: "Socks", SKU: "42", URL: srv.URL + "/missing.png"},
		{Name: "Logo", SKU: "7", URL: srv.URL + "/logo"},
	}

	outcomes := processRecords(context.Background(), cfg, records)
	require.Len(t, outcomes, 4)

	assert.Equal(t, StatusWritten, outcomes[0].Status)
	assert.Equal(t, "shoes-123.jpg", outcomes[0].Filename)
	b, err := os.ReadFile(filepath.Join(outDir, "shoes-123.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("JPEGDATA"), b)

	assert.Equal(t, StatusSkipped, outcomes[1].Status)

	assert.Equal(t, StatusFetchFailed, outcomes[2].Status)
	var fe *download.FetchError
	require.ErrorAs(t, outcomes[2].Err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.NoFileExists(t, filepath.Join(outDir, "socks-42.png"))

	// Extension inferred from the response content type.
	assert.Equal(t, StatusWritten, outcomes[3].Status)
	assert.Equal(t, "logo-7.png", outcomes[3].Filename)

	assert.Equal(t, 1, summarize(io.Discard, outcomes))
}

func TestProcessRecordsParallel(t *testing.T) {
	srv := newFileServer(t)

	cfg := &Config{OutDir: filepath.Join(t.TempDir(), "out"), Jobs: 4}

	var records []manifest.Record
	for i := 0; i < 8; i++ {
		records = append(records, manifest.Record{Name: "Shoes", SKU: "123", URL: srv.URL + "/a.jpg"})
	}
	records = append(records, manifest.Record{Name: "Socks", SKU: "42", URL: srv.URL + "/missing.png"})

	outcomes := processRecords(context.Background(), cfg, records)
	require.Len(t, outcomes, 9)

	var written, failed int
	for _, o := range outcomes {
		switch o.Status {
		case StatusWritten:
			written++
		case StatusFetchFailed:
			failed++
		}
	}
	assert.Equal(t, 8, written)
	assert.Equal(t, 1, failed)
}

func TestProcessRecordsIdempotent(t *testing.T) {
	srv := newFileServer(t)

	outDir := filepath.Join(t.TempDir(), "out")
	cfg := &Config{OutDir: outDir, Jobs: 1}
	records := []manifest.Record{{Name: "Shoes", SKU: "123", URL: srv.URL + "/a.jpg"}}

	for i := 0; i < 2; i++ {
		outcomes := processRecords(context.Background(), cfg, records)
		require.Equal(t, StatusWritten, outcomes[0].Status)
	}

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	b, err := os.ReadFile(filepath.Join(outDir, "shoes-123.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("JPEGDATA"), b)
}

func TestProcessRecordsEmpty(t *testing.T) {
	cfg := &Config{OutDir: filepath.Join(t.TempDir(), "out"), Jobs: 1}

	outcomes := processRecords(context.Background(), cfg, nil)
	assert.Empty(t, outcomes)
	assert.Equal(t, 0, summarize(io.Discard, outcomes))
}

func TestProcessRecordsCanceled(t *testing.T) {
	srv := newFileServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &Config{OutDir: filepath.Join(t.TempDir(), "out"), Jobs: 1}
	records := []manifest.Record{
		{Name: "Shoes", SKU: "123", URL: srv.URL + "/a.jpg"},
		{Name: "Socks", SKU: "42", URL: srv.URL + "/a.jpg"},
	}

	outcomes := processRecords(ctx, cfg, records)

	// Nothing succeeds once the context is gone; the run exits nonzero.
	assert.Positive(t, summarize(io.Discard, outcomes))
	for _, o := range outcomes {
		assert.NotEqual(t, StatusWritten, o.Status)
	}
}

func TestSummarizeOutput(t *testing.T) {
	outcomes := []Outcome{
		{Record: manifest.Record{Name: "Shoes", SKU: "123"}, Status: StatusWritten, Filename: "shoes-123.jpg"},
		{Record: manifest.Record{Name: "Hat", SKU: "9"}, Status: StatusSkipped},
		{
			Record: manifest.Record{Name: "Socks", SKU: "42", URL: "https://example.com/missing.png"},
			Status: StatusFetchFailed,
			Err:    &download.FetchError{URL: "https://example.com/missing.png", StatusCode: 404},
		},
	}

	var sb strings.Builder
	failed := summarize(&sb, outcomes)

	assert.Equal(t, 1, failed)
	assert.Contains(t, sb.String(), "name=Socks sku=42")
	assert.Contains(t, sb.String(), "status 404")
	assert.Contains(t, sb.String(), "1 written, 1 skipped, 1 failed")
}

func TestWriteRemapCSV(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "input.csv")

	outcomes := []Outcome{
		{
			Record:   manifest.Record{Name: "Shoes", SKU: "123", URL: "https://example.com/a.jpg"},
			Status:   StatusWritten,
			Filename: "shoes-123.jpg",
		},
		{
			Record: manifest.Record{Name: "Socks", SKU: "42", URL: "https://example.com/missing.png"},
			Status: StatusFetchFailed,
		},
	}

	require.NoError(t, writeRemapCSV(csvPath, outcomes))

	got, err := os.ReadFile(filepath.Join(filepath.Dir(csvPath), "importable_input.csv"))
	require.NoError(t, err)

	want := "Name,SKU,URL\n" +
		"Shoes,123,shoes-123.jpg\n" +
		"Socks,42,https://example.com/missing.png\n"
	assert.Equal(t, want, string(got))
}

func TestReadManifestRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,SKU\nShoes,123\n"), 0644))

	_, err := readManifest(path)

	var ie *manifest.InputError
	require.ErrorAs(t, err, &ie)
}
