package tools

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/seqops/sra-pipeline/internal/pipeline"
)

// FASTQConverter extracts FASTQ files from a downloaded archive with
// fasterq-dump. Output files are reported back so downstream steps consume
// exactly what was produced instead of re-deriving paths.
type FASTQConverter struct {
	outputDir string
	threads   int
	runner    Runner
	log       *slog.Logger
}

func NewFASTQConverter(outputDir string, threads int, runner Runner, logger *slog.Logger) *FASTQConverter {
	if threads <= 0 {
		threads = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FASTQConverter{outputDir: outputDir, threads: threads, runner: runner, log: logger}
}

func (c *FASTQConverter) Convert(ctx context.Context, accession string) pipeline.ConvertResult {
	_, stderr, err := c.runner.Run(ctx, "fasterq-dump",
		accession,
		"-O", c.outputDir,
		"-e", strconv.Itoa(c.threads),
	)
	if err != nil {
		return pipeline.ConvertResult{Message: strings.TrimSpace(string(stderr))}
	}

	files, err := filepath.Glob(filepath.Join(c.outputDir, accession+"*.fastq"))
	if err != nil {
		return pipeline.ConvertResult{Message: err.Error()}
	}
	sort.Strings(files)

	c.log.Info("fasterq-dump complete", "accession", accession, "files", len(files))
	return pipeline.ConvertResult{OK: true, OutputFiles: files}
}
