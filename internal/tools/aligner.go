package tools

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
)

// STARAligner runs the STAR aligner on a paired-end FASTQ set.
type STARAligner struct {
	genomeDir string
	outputDir string
	threads   int
	runner    Runner
	log       *slog.Logger
}

func NewSTARAligner(genomeDir, outputDir string, threads int, runner Runner, logger *slog.Logger) *STARAligner {
	if threads <= 0 {
		threads = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &STARAligner{
		genomeDir: genomeDir,
		outputDir: outputDir,
		threads:   threads,
		runner:    runner,
		log:       logger,
	}
}

func (a *STARAligner) Align(ctx context.Context, accession string, inputFiles []string) ([]string, error) {
	if len(inputFiles) != 2 {
		return nil, fmt.Errorf("STAR expects paired-end FASTQ files, got %d", len(inputFiles))
	}

	prefix := filepath.Join(a.outputDir, "STAR_"+accession+"_")
	a.log.Info("running STAR", "accession", accession)

	_, stderr, err := a.runner.Run(ctx, "STAR",
		"--genomeDir", a.genomeDir,
		"--readFilesIn", inputFiles[0], inputFiles[1],
		"--runThreadN", strconv.Itoa(a.threads),
		"--outFileNamePrefix", prefix,
		"--outSAMtype", "SAM",
	)
	if err != nil {
		return nil, fmt.Errorf("STAR alignment failed for %s: %s", accession, strings.TrimSpace(string(stderr)))
	}

	a.log.Info("STAR complete", "accession", accession)
	return []string{prefix + "Aligned.out.sam"}, nil
}
