package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/seqops/sra-pipeline/internal/ledger"
)

// Service renders the job ledger into XLSX bytes for offline review.
type Service struct {
	store  *ledger.Store
	logger *slog.Logger
}

func NewService(store *ledger.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportJobsXLSX returns a workbook with one row per job record.
func (s *Service) ExportJobsXLSX(ctx context.Context) ([]byte, error) {
	jobs, err := s.store.AllJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Jobs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Accession",
		"Download",
		"Validation",
		"Convert",
		"Split",
		"Align",
		"Upload",
		"Pipeline Status",
		"Source File",
		"Updated At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, job := range jobs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, job.Accession)
		write(2, string(job.DownloadStatus))
		write(3, string(job.ValidateStatus))
		write(4, string(job.ConvertStatus))
		write(5, string(job.SplitStatus))
		write(6, string(job.AlignStatus))
		write(7, string(job.UploadStatus))
		write(8, string(job.PipelineStatus))
		write(9, job.SourceFile)
		write(10, job.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	s.logger.Info("exported job ledger", "jobs", len(jobs))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}
