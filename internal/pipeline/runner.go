package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/seqops/sra-pipeline/constants"
	"github.com/seqops/sra-pipeline/internal/ledger"
	"github.com/seqops/sra-pipeline/internal/runlog"
)

// CleanupPolicy controls opportunistic deletion of large intermediate files
// once their consumer step verified success. Deletion is best-effort; a
// failure never changes a step status.
type CleanupPolicy struct {
	Enabled bool
	// WorkDir is the download root; cleanup also removes the accession's
	// archive and prunes its directory when empty.
	WorkDir string
}

// JobRunner binds one accession to an isolated ledger session and runs it to
// completion. It is the unit of work handed to the orchestrator's pool.
type JobRunner struct {
	store   *ledger.Store
	tools   ToolBundle
	cleanup CleanupPolicy
	log     *slog.Logger
}

func NewJobRunner(store *ledger.Store, tools ToolBundle, cleanup CleanupPolicy, logger *slog.Logger) *JobRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRunner{store: store, tools: tools, cleanup: cleanup, log: logger}
}

// Run processes one accession end-to-end and returns its run log row. It
// never returns an error: every failure is captured as status data so one
// bad accession cannot abort a batch.
func (r *JobRunner) Run(ctx context.Context, accession, sourceFile string) runlog.Row {
	session, err := r.store.Session(ctx)
	if err != nil {
		r.log.Error("failed to acquire ledger session", "accession", accession, "error", err)
		return pendingRow(accession, sourceFile)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.log.Warn("failed to release ledger session", "accession", accession, "error", err)
		}
	}()

	job, err := NewJob(ctx, session, r.tools, accession, sourceFile, r.log)
	if err != nil {
		r.log.Error("failed to initialize job", "accession", accession, "error", err)
		return pendingRow(accession, sourceFile)
	}

	job.Run(ctx)

	if r.cleanup.Enabled {
		r.cleanupFiles(accession, job.Consumed())
	}

	return job.Row()
}

// cleanupFiles removes consumed intermediates plus the downloaded archive,
// then prunes the accession directory if it ended up empty.
func (r *JobRunner) cleanupFiles(accession string, consumed []string) {
	files := append([]string{}, consumed...)
	if r.cleanup.WorkDir != "" {
		files = append(files, filepath.Join(r.cleanup.WorkDir, accession, accession+".sra"))
	}

	for _, file := range files {
		if err := os.Remove(file); err != nil {
			if !os.IsNotExist(err) {
				r.log.Warn("failed to delete local file", "file", file, "error", err)
			}
			continue
		}
		r.log.Info("deleted local file", "file", file)
	}

	if r.cleanup.WorkDir == "" {
		return
	}
	dir := filepath.Join(r.cleanup.WorkDir, accession)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil {
		r.log.Warn("failed to remove accession directory", "dir", dir, "error", err)
		return
	}
	r.log.Info("removed empty accession directory", "dir", dir)
}

func pendingRow(accession, sourceFile string) runlog.Row {
	row := runlog.Row{accession}
	for range constants.AllStepNames {
		row = append(row, string(constants.StepPending))
	}
	return append(row, sourceFile)
}
