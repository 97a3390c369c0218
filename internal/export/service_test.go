package export

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/seqops/sra-pipeline/constants"
	"github.com/seqops/sra-pipeline/internal/ledger"
)

func TestExportJobsXLSX(t *testing.T) {
	ctx := context.Background()
	store, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"), slog.Default())
	require.NoError(t, err)
	defer store.Close()

	session, err := store.Session(ctx)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.GetOrCreate(ctx, "SRR_1", "list.txt")
	require.NoError(t, err)
	require.NoError(t, session.UpdateStep(ctx, "SRR_1", constants.StepDownload, constants.StepFailed))

	svc := NewService(store, nil)
	data, err := svc.ExportJobsXLSX(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Jobs", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Accession", header)

	accession, err := f.GetCellValue("Jobs", "A2")
	require.NoError(t, err)
	assert.Equal(t, "SRR_1", accession)

	download, err := f.GetCellValue("Jobs", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Failed", download)

	pipelineStatus, err := f.GetCellValue("Jobs", "H2")
	require.NoError(t, err)
	assert.Equal(t, string(constants.PipelineFailed), pipelineStatus)
}

func TestExportEmptyLedger(t *testing.T) {
	ctx := context.Background()
	store, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"), slog.Default())
	require.NoError(t, err)
	defer store.Close()

	data, err := NewService(store, nil).ExportJobsXLSX(ctx)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Jobs")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
