// Package orchestrator discovers pipeline work and dispatches it across a
// bounded worker pool. It never inspects step-level semantics: accessions go
// in, run log rows come out.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/seqops/sra-pipeline/internal/ledger"
	"github.com/seqops/sra-pipeline/internal/pipeline"
	"github.com/seqops/sra-pipeline/internal/runlog"
)

type workItem struct {
	accession  string
	sourceFile string
}

type Orchestrator struct {
	runner    *pipeline.JobRunner
	runLogs   *runlog.Manager
	store     *ledger.Store
	listsDir  string
	batchSize int
	log       *slog.Logger
}

type Option func(*Orchestrator)

// WithBatchSize bounds the worker pool; one worker owns one accession
// end-to-end.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func New(runner *pipeline.JobRunner, runLogs *runlog.Manager, store *ledger.Store, listsDir string, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		runner:    runner,
		runLogs:   runLogs,
		store:     store,
		listsDir:  listsDir,
		batchSize: 4,
		log:       logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessNew runs every accession from every list file in the lists
// directory. Each list is dispatched as one batch; completed rows are
// appended to the run log as they arrive, so a crash mid-batch keeps the
// rows already finished.
func (o *Orchestrator) ProcessNew(ctx context.Context) error {
	lists, err := runlog.ListFiles(o.listsDir)
	if err != nil {
		return fmt.Errorf("scan accession lists: %w", err)
	}
	if len(lists) == 0 {
		o.log.Warn("no accession list files found", "dir", o.listsDir)
		return nil
	}

	logPath, err := o.runLogs.Create()
	if err != nil {
		return err
	}

	for _, list := range lists {
		accessions, err := runlog.LoadAccessions(list)
		if err != nil {
			o.log.Error("failed to load accession list", "file", list, "error", err)
			continue
		}

		o.log.Info("processing accession list", "file", list, "accessions", len(accessions))
		items := make([]workItem, 0, len(accessions))
		for _, acc := range accessions {
			items = append(items, workItem{accession: acc, sourceFile: list})
		}
		o.dispatch(ctx, logPath, items)
	}
	return nil
}

// RetryFailed re-runs every accession the ledger records as Failed in any
// step. When nothing failed it is a logged no-op and no run log is written.
func (o *Orchestrator) RetryFailed(ctx context.Context) error {
	failed, err := o.store.SelectFailed(ctx, "")
	if err != nil {
		return fmt.Errorf("select failed accessions: %w", err)
	}
	if len(failed) == 0 {
		o.log.Info("no failed accessions to retry")
		return nil
	}

	logPath, err := o.runLogs.Create()
	if err != nil {
		return err
	}

	o.log.Info("retrying failed accessions", "count", len(failed))
	items := make([]workItem, 0, len(failed))
	for _, acc := range failed {
		items = append(items, workItem{accession: acc, sourceFile: "Retry"})
	}
	o.dispatch(ctx, logPath, items)
	return nil
}

// RetryFromLog re-runs the failed rows of the most recent run log file
// instead of consulting the ledger. Useful when the ledger was rebuilt or a
// specific run's failures should be replayed.
func (o *Orchestrator) RetryFromLog(ctx context.Context) error {
	logFile, err := o.runLogs.Latest()
	if err != nil {
		return fmt.Errorf("locate latest run log: %w", err)
	}
	if logFile == "" {
		o.log.Warn("no run log files found; nothing to retry")
		return nil
	}

	failed, err := o.runLogs.FailedAccessions(logFile)
	if err != nil {
		return fmt.Errorf("parse run log %s: %w", logFile, err)
	}
	if len(failed) == 0 {
		o.log.Info("no failed rows in run log", "file", logFile)
		return nil
	}

	logPath, err := o.runLogs.Create()
	if err != nil {
		return err
	}

	o.log.Info("retrying failed rows from run log", "file", logFile, "count", len(failed))
	items := make([]workItem, 0, len(failed))
	for _, acc := range failed {
		items = append(items, workItem{accession: acc, sourceFile: "Retry"})
	}
	o.dispatch(ctx, logPath, items)
	return nil
}

// dispatch fans the items out over batchSize workers and streams each
// completed row into the run log. It returns once the pool drains.
func (o *Orchestrator) dispatch(ctx context.Context, logPath string, items []workItem) {
	batchID := uuid.New()
	o.log.Info("dispatching batch", "batch_id", batchID, "items", len(items), "workers", o.batchSize)

	jobs := make(chan workItem)
	results := make(chan runlog.Row)

	var wg sync.WaitGroup
	for i := 0; i < o.batchSize; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range jobs {
				results <- o.runner.Run(ctx, item.accession, item.sourceFile)
			}
		}(i + 1)
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			jobs <- item
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for row := range results {
		if err := o.runLogs.Append(logPath, row); err != nil {
			o.log.Error("failed to append run log row", "accession", row[0], "error", err)
		}
		done++
	}
	o.log.Info("batch complete", "batch_id", batchID, "items", done)
}
