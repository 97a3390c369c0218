package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seqops/sra-pipeline/internal/common"
	"github.com/seqops/sra-pipeline/internal/export"
	"github.com/seqops/sra-pipeline/internal/ledger"
	"github.com/seqops/sra-pipeline/internal/orchestrator"
	"github.com/seqops/sra-pipeline/internal/pipeline"
	"github.com/seqops/sra-pipeline/internal/runlog"
	"github.com/seqops/sra-pipeline/internal/tools"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile string
	batchSize  int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "sra-pipeline",
		Short:         "Batch SRA download / validate / convert / split / align / upload pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "optional JSON run config file")
	root.PersistentFlags().IntVar(&flags.batchSize, "batch-size", 0, "override worker pool size")

	root.AddCommand(newProcessCmd(flags), newRetryCmd(flags), newExportCmd(flags))
	return root
}

func newProcessCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Process every accession list in the lists directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.orch.ProcessNew(cmd.Context())
		},
	}
}

func newRetryCmd(flags *rootFlags) *cobra.Command {
	var fromLog bool
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-run accessions the ledger records as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()
			if fromLog {
				return app.orch.RetryFromLog(cmd.Context())
			}
			return app.orch.RetryFailed(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&fromLog, "from-log", false, "replay failed rows of the latest run log instead of querying the ledger")
	return cmd
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the job ledger to an XLSX report",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close()

			svc := export.NewService(app.store, app.logger)
			data, err := svc.ExportJobsXLSX(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			app.logger.Info("wrote ledger report", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "jobs.xlsx", "output XLSX file path")
	return cmd
}

type app struct {
	logger *slog.Logger
	store  *ledger.Store
	orch   *orchestrator.Orchestrator
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close ledger", "error", err)
	}
}

func setup(ctx context.Context, flags *rootFlags) (*app, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if flags.configFile != "" {
		if err := cfg.ApplyFile(flags.configFile); err != nil {
			return nil, err
		}
	}
	if flags.batchSize > 0 {
		cfg.Run.BatchSize = flags.batchSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{
		cfg.Paths.SRADir,
		cfg.Paths.FastqDir,
		cfg.Paths.SplitDir,
		cfg.Paths.AlignDir,
		cfg.Paths.RunLogDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	store, err := ledger.Open(ctx, cfg.Ledger.DSN, logger)
	if err != nil {
		return nil, err
	}

	bundle, err := buildTools(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	cleanup := pipeline.CleanupPolicy{
		Enabled: cfg.Run.CleanupLocal,
		WorkDir: cfg.Paths.SRADir,
	}
	runner := pipeline.NewJobRunner(store, bundle, cleanup, logger)
	runLogs := runlog.NewManager(cfg.Paths.RunLogDir, logger)
	orch := orchestrator.New(runner, runLogs, store, cfg.Paths.ListsDir, logger,
		orchestrator.WithBatchSize(cfg.Run.BatchSize))

	return &app{logger: logger, store: store, orch: orch}, nil
}

// buildTools provisions step tools according to the stage toggles. Later
// stages left off simply mark their step Skipped during runs.
func buildTools(ctx context.Context, cfg *common.Config, logger *slog.Logger) (pipeline.ToolBundle, error) {
	runner := tools.NewExecRunner()

	bundle := pipeline.ToolBundle{
		Downloader: tools.NewSRADownloader(cfg.Paths.SRADir, cfg.Run.PrefetchMaxSize, runner, logger),
		Validator:  tools.NewVDBValidator(cfg.Paths.SRADir, runner, logger),
	}

	if cfg.Run.ConvertFastq {
		bundle.Converter = tools.NewFASTQConverter(cfg.Paths.FastqDir, cfg.Run.Threads, runner, logger)
	}
	if cfg.Run.SplitFastq {
		resolver := tools.NewGSMResolver(cfg.Paths.GSMCachePath, cfg.Paths.BarcodeDir, cfg.Entrez.Email, nil, logger)
		bundle.Splitter = tools.NewBarcodeSplitter(cfg.Paths.SplitDir, resolver, logger)
	}
	if cfg.Run.AlignStar {
		bundle.Aligner = tools.NewSTARAligner(cfg.Paths.GenomeDir, cfg.Paths.AlignDir, cfg.Run.Threads, runner, logger)
	}
	if cfg.Run.UploadS3 {
		uploader, err := tools.NewS3Uploader(ctx, cfg.S3.Bucket, cfg.S3.Prefix, logger)
		if err != nil {
			return pipeline.ToolBundle{}, err
		}
		bundle.Uploader = uploader
	}
	return bundle, nil
}
