package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertReportsProducedFiles(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{
		run: func(name string, args []string) (string, string, error) {
			for _, f := range []string{"SRR_1_2.fastq", "SRR_1_1.fastq"} {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("@r\nACGT\n+\nFFFF\n"), 0o644))
			}
			return "", "", nil
		},
	}
	c := NewFASTQConverter(dir, 8, runner, nil)

	res := c.Convert(context.Background(), "SRR_1")
	require.True(t, res.OK)
	assert.Equal(t, []string{
		filepath.Join(dir, "SRR_1_1.fastq"),
		filepath.Join(dir, "SRR_1_2.fastq"),
	}, res.OutputFiles)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"fasterq-dump", "SRR_1", "-O", dir, "-e", "8"}, runner.calls[0])
}

func TestConvertCommandFailure(t *testing.T) {
	runner := &fakeRunner{
		run: func(string, []string) (string, string, error) {
			return "", "disk full\n", errors.New("exit status 3")
		},
	}
	c := NewFASTQConverter(t.TempDir(), 0, runner, nil)

	res := c.Convert(context.Background(), "SRR_1")
	assert.False(t, res.OK)
	assert.Equal(t, "disk full", res.Message)
}

func TestConvertNoOutputIsStillOK(t *testing.T) {
	// A clean exit with zero FASTQ files is reported upward as an empty
	// artifact set; the pipeline decides what that means.
	c := NewFASTQConverter(t.TempDir(), 4, &fakeRunner{}, nil)

	res := c.Convert(context.Background(), "SRR_1")
	assert.True(t, res.OK)
	assert.Empty(t, res.OutputFiles)
}
