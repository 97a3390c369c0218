package tools

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBarcodeMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.Info.txt")
	require.NoError(t, os.WriteFile(path, []byte("AAAA\tcellA\nCCCC\tcellB\n\nGGGG\tcellC\n"), 0o644))

	mapping, barcodeLen, err := LoadBarcodeMapping(path)
	require.NoError(t, err)
	assert.Equal(t, 4, barcodeLen)
	assert.Equal(t, map[string]string{"AAAA": "cellA", "CCCC": "cellB", "GGGG": "cellC"}, mapping)
}

func TestLoadBarcodeMappingRejectsBadPools(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"duplicate barcode", "AAAA\tcellA\nAAAA\tcellB\n", "duplicate barcode"},
		{"inconsistent length", "AAAA\tcellA\nCCCCCC\tcellB\n", "inconsistent barcode length"},
		{"malformed line", "AAAA cellA\n", "malformed barcode line"},
		{"empty file", "\n\n", "no barcodes found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pool.Info.txt")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, _, err := LoadBarcodeMapping(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPairedFiles(t *testing.T) {
	r1, r2, err := pairedFiles([]string{"/x/SRR_1_2.fastq", "/x/SRR_1_1.fastq", "/x/SRR_1.fastq"})
	require.NoError(t, err)
	assert.Equal(t, "/x/SRR_1_1.fastq", r1)
	assert.Equal(t, "/x/SRR_1_2.fastq", r2)

	_, _, err = pairedFiles([]string{"/x/SRR_1_1.fastq"})
	require.Error(t, err)
}

func fastqRecord(id, seq string) string {
	qual := strings.Repeat("F", len(seq))
	return "@" + id + "\n" + seq + "\n+\n" + qual + "\n"
}

func TestSplitDemultiplexesByBarcode(t *testing.T) {
	root := t.TempDir()

	// Resolver answers from a seeded cache; no network involved.
	cachePath := filepath.Join(root, "gsm_cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(`{"SRR_1":"GSM100"}`), 0o644))
	barcodeDir := filepath.Join(root, "barcodes")
	require.NoError(t, os.MkdirAll(barcodeDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(barcodeDir, "GSM100.Info.txt"),
		[]byte("AAAA\tcellA\nCCCC\tcellB\n"), 0o644))
	resolver := NewGSMResolver(cachePath, barcodeDir, "", http.DefaultClient, nil)

	// Four read pairs: two for cellA, one for cellB, one unmatched.
	r1Path := filepath.Join(root, "SRR_1_1.fastq")
	r2Path := filepath.Join(root, "SRR_1_2.fastq")
	r1 := fastqRecord("r1", "AAAATTTT") +
		fastqRecord("r2", "CCCCGGGG") +
		fastqRecord("r3", "AAAACCTT") +
		fastqRecord("r4", "GGGGAATT")
	r2 := fastqRecord("r1", "TTTTAAAA") +
		fastqRecord("r2", "GGGGCCCC") +
		fastqRecord("r3", "TTCCAAAA") +
		fastqRecord("r4", "AATTGGGG")
	require.NoError(t, os.WriteFile(r1Path, []byte(r1), 0o644))
	require.NoError(t, os.WriteFile(r2Path, []byte(r2), 0o644))

	splitDir := filepath.Join(root, "split")
	s := NewBarcodeSplitter(splitDir, resolver, nil)

	res := s.Split(context.Background(), "SRR_1", []string{r1Path, r2Path})
	require.True(t, res.OK, res.Message)

	assert.Equal(t, map[string]int{"cellA": 2, "cellB": 1, "unmatched": 1}, res.Summary)
	assert.ElementsMatch(t, []string{
		filepath.Join(splitDir, "cellA_1.fastq"),
		filepath.Join(splitDir, "cellA_2.fastq"),
		filepath.Join(splitDir, "cellB_1.fastq"),
		filepath.Join(splitDir, "cellB_2.fastq"),
		filepath.Join(splitDir, "unmatched_1.fastq"),
		filepath.Join(splitDir, "unmatched_2.fastq"),
	}, res.OutputFiles)

	// Read pairing is preserved: cellA read 2 carries the mate of r3.
	cellA2, err := os.ReadFile(filepath.Join(splitDir, "cellA_2.fastq"))
	require.NoError(t, err)
	assert.Equal(t, fastqRecord("r1", "TTTTAAAA")+fastqRecord("r3", "TTCCAAAA"), string(cellA2))
}

func TestSplitMismatchedPairLengths(t *testing.T) {
	root := t.TempDir()
	cachePath := filepath.Join(root, "gsm_cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(`{"SRR_1":"GSM100"}`), 0o644))
	barcodeDir := filepath.Join(root, "barcodes")
	require.NoError(t, os.MkdirAll(barcodeDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(barcodeDir, "GSM100.Info.txt"),
		[]byte("AAAA\tcellA\n"), 0o644))
	resolver := NewGSMResolver(cachePath, barcodeDir, "", http.DefaultClient, nil)

	r1Path := filepath.Join(root, "SRR_1_1.fastq")
	r2Path := filepath.Join(root, "SRR_1_2.fastq")
	require.NoError(t, os.WriteFile(r1Path, []byte(fastqRecord("r1", "AAAATTTT")+fastqRecord("r2", "AAAAGGGG")), 0o644))
	require.NoError(t, os.WriteFile(r2Path, []byte(fastqRecord("r1", "TTTTAAAA")), 0o644))

	s := NewBarcodeSplitter(filepath.Join(root, "split"), resolver, nil)
	res := s.Split(context.Background(), "SRR_1", []string{r1Path, r2Path})
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "different record counts")
}

func TestSplitWithoutPairedInputs(t *testing.T) {
	s := NewBarcodeSplitter(t.TempDir(), nil, nil)
	res := s.Split(context.Background(), "SRR_1", []string{"/x/SRR_1.fastq"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "paired-end FASTQ files not found")
}
