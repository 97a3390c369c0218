package tools

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqops/sra-pipeline/internal/pipeline"
)

// archiveExtensions are the file suffixes prefetch may produce for an
// accession.
var archiveExtensions = []string{".sra", ".sralite"}

// SRADownloader fetches accession archives with the SRA toolkit's prefetch.
// A pre-existing archive short-circuits to Skipped, which also makes retry
// runs idempotent.
type SRADownloader struct {
	outputDir string
	maxSize   string
	runner    Runner
	log       *slog.Logger
}

func NewSRADownloader(outputDir, maxSize string, runner Runner, logger *slog.Logger) *SRADownloader {
	if maxSize == "" {
		maxSize = "100G"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SRADownloader{outputDir: outputDir, maxSize: maxSize, runner: runner, log: logger}
}

func (d *SRADownloader) Download(ctx context.Context, accession string) pipeline.DownloadResult {
	if d.archiveExists(accession) {
		return pipeline.DownloadResult{Status: pipeline.DownloadSkipped}
	}

	_, stderr, err := d.runner.Run(ctx, "prefetch", "--max-size", d.maxSize, "-O", d.outputDir, accession)
	if err != nil {
		return pipeline.DownloadResult{
			Status:  pipeline.DownloadFailed,
			Message: strings.TrimSpace(string(stderr)),
		}
	}

	// Sanity check: prefetch can exit zero without leaving an archive.
	if !d.archiveExists(accession) {
		return pipeline.DownloadResult{
			Status:  pipeline.DownloadFailed,
			Message: "no archive found after download",
		}
	}
	return pipeline.DownloadResult{Status: pipeline.DownloadSuccess}
}

func (d *SRADownloader) archiveExists(accession string) bool {
	for _, ext := range archiveExtensions {
		path := filepath.Join(d.outputDir, accession, accession+ext)
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}
