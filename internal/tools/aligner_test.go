package tools

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignBuildsSTARCommand(t *testing.T) {
	outDir := t.TempDir()
	runner := &fakeRunner{}
	a := NewSTARAligner("/ref/genome", outDir, 12, runner, nil)

	outputs, err := a.Align(context.Background(), "SRR_1", []string{"r_1.fastq", "r_2.fastq"})
	require.NoError(t, err)

	prefix := filepath.Join(outDir, "STAR_SRR_1_")
	assert.Equal(t, []string{prefix + "Aligned.out.sam"}, outputs)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"STAR",
		"--genomeDir", "/ref/genome",
		"--readFilesIn", "r_1.fastq", "r_2.fastq",
		"--runThreadN", "12",
		"--outFileNamePrefix", prefix,
		"--outSAMtype", "SAM",
	}, runner.calls[0])
}

func TestAlignRejectsNonPairedInput(t *testing.T) {
	runner := &fakeRunner{}
	a := NewSTARAligner("/ref/genome", t.TempDir(), 4, runner, nil)

	_, err := a.Align(context.Background(), "SRR_1", []string{"only_one.fastq"})
	require.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestAlignCommandFailure(t *testing.T) {
	runner := &fakeRunner{
		run: func(string, []string) (string, string, error) {
			return "", "EXITING: fatal error\n", errors.New("exit status 1")
		},
	}
	a := NewSTARAligner("/ref/genome", t.TempDir(), 4, runner, nil)

	_, err := a.Align(context.Background(), "SRR_1", []string{"r_1.fastq", "r_2.fastq"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXITING: fatal error")
}
