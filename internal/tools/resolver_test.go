package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entrezXML = `<?xml version="1.0"?>
<EXPERIMENT_PACKAGE_SET>
  <EXPERIMENT_PACKAGE>
    <STUDY_LINKS>
      <XREF_LINK><DB>pubmed</DB><ID>123456</ID></XREF_LINK>
    </STUDY_LINKS>
    <SAMPLE_LINKS>
      <XREF_LINK><DB>GEO</DB><ID>GSM999001</ID></XREF_LINK>
    </SAMPLE_LINKS>
  </EXPERIMENT_PACKAGE>
</EXPERIMENT_PACKAGE_SET>`

type stubTransport struct {
	fn func(*http.Request) (*http.Response, error)
}

func (s stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return s.fn(req)
}

func xmlClient(t *testing.T, calls *int, body string) *http.Client {
	t.Helper()
	return &http.Client{Transport: stubTransport{fn: func(req *http.Request) (*http.Response, error) {
		*calls++
		assert.Equal(t, "sra", req.URL.Query().Get("db"))
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}}}
}

func TestParseGSM(t *testing.T) {
	gsm, err := parseGSM(strings.NewReader(entrezXML))
	require.NoError(t, err)
	assert.Equal(t, "GSM999001", gsm)
}

func TestParseGSMNoGEOLink(t *testing.T) {
	xml := `<SET><XREF_LINK><DB>pubmed</DB><ID>42</ID></XREF_LINK></SET>`
	gsm, err := parseGSM(strings.NewReader(xml))
	require.NoError(t, err)
	assert.Empty(t, gsm)
}

func TestResolveFetchesAndPersists(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "gsm_cache.json")
	calls := 0
	r := NewGSMResolver(cachePath, "", "ops@example.org", xmlClient(t, &calls, entrezXML), nil)

	gsm, err := r.Resolve(context.Background(), "SRR_1")
	require.NoError(t, err)
	assert.Equal(t, "GSM999001", gsm)
	assert.Equal(t, 1, calls)

	// Second lookup is served from memory.
	gsm, err = r.Resolve(context.Background(), "SRR_1")
	require.NoError(t, err)
	assert.Equal(t, "GSM999001", gsm)
	assert.Equal(t, 1, calls)

	// The resolution survives on disk for the next process.
	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, map[string]string{"SRR_1": "GSM999001"}, stored)
}

func TestResolveUsesSeededCacheWithoutNetwork(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "gsm_cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(`{"SRR_1":"GSM777"}`), 0o644))

	failing := &http.Client{Transport: stubTransport{fn: func(*http.Request) (*http.Response, error) {
		t.Fatal("network must not be touched for a cached accession")
		return nil, nil
	}}}
	r := NewGSMResolver(cachePath, "", "", failing, nil)

	gsm, err := r.Resolve(context.Background(), "SRR_1")
	require.NoError(t, err)
	assert.Equal(t, "GSM777", gsm)
}

func TestResolveNoCrossReference(t *testing.T) {
	calls := 0
	client := xmlClient(t, &calls, `<SET></SET>`)
	r := NewGSMResolver(filepath.Join(t.TempDir(), "c.json"), "", "", client, nil)

	_, err := r.Resolve(context.Background(), "SRR_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GSM cross-reference")
}

func TestFindInfoFile(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "gsm_cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(`{"SRR_1":"GSM777"}`), 0o644))

	barcodeDir := filepath.Join(dir, "barcodes")
	require.NoError(t, os.MkdirAll(barcodeDir, 0o755))
	infoPath := filepath.Join(barcodeDir, "GSM777_pool.Info.txt")
	require.NoError(t, os.WriteFile(infoPath, []byte("AAAA\tcellA\n"), 0o644))

	r := NewGSMResolver(cachePath, barcodeDir, "", http.DefaultClient, nil)

	found, err := r.FindInfoFile(context.Background(), "SRR_1")
	require.NoError(t, err)
	assert.Equal(t, infoPath, found)
}

func TestFindInfoFileMissing(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "gsm_cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(`{"SRR_1":"GSM777"}`), 0o644))

	r := NewGSMResolver(cachePath, dir, "", http.DefaultClient, nil)

	_, err := r.FindInfoFile(context.Background(), "SRR_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no barcode info file")
}
