package tools

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqops/sra-pipeline/internal/pipeline"
)

// VDBValidator checks archive integrity with the SRA toolkit's vdb-validate.
type VDBValidator struct {
	outputDir string
	runner    Runner
	log       *slog.Logger
}

func NewVDBValidator(outputDir string, runner Runner, logger *slog.Logger) *VDBValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &VDBValidator{outputDir: outputDir, runner: runner, log: logger}
}

func (v *VDBValidator) Validate(ctx context.Context, accession string) pipeline.ValidationResult {
	archive := filepath.Join(v.outputDir, accession, accession+".sra")
	if _, err := os.Stat(archive); err != nil {
		v.log.Info("archive missing for validation", "accession", accession, "path", archive)
		return pipeline.ValidationResult{Status: pipeline.ValidationFileMissing, Message: "archive file missing"}
	}

	_, stderr, err := v.runner.Run(ctx, "vdb-validate", archive)
	if err != nil {
		return pipeline.ValidationResult{
			Status:  pipeline.ValidationInvalid,
			Message: strings.TrimSpace(string(stderr)),
		}
	}
	return pipeline.ValidationResult{Status: pipeline.ValidationValid}
}
