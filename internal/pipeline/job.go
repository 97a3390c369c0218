package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seqops/sra-pipeline/constants"
	"github.com/seqops/sra-pipeline/internal/ledger"
	"github.com/seqops/sra-pipeline/internal/runlog"
)

// Job drives one accession through the pipeline steps in order, persisting
// every step transition to its ledger session before attempting the next.
// It holds a session-scoped copy of the job record; the session owns truth.
type Job struct {
	accession  string
	sourceFile string
	session    *ledger.Session
	tools      ToolBundle
	record     *ledger.JobRecord
	log        *slog.Logger

	// artifacts is the output of the most recent producing step; consumed
	// collects upstream files eligible for cleanup once the run ends.
	artifacts []string
	consumed  []string
}

// NewJob loads or creates the ledger record for the accession and binds the
// job to the session and tool bundle.
func NewJob(ctx context.Context, session *ledger.Session, tools ToolBundle, accession, sourceFile string, logger *slog.Logger) (*Job, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rec, err := session.GetOrCreate(ctx, accession, sourceFile)
	if err != nil {
		return nil, err
	}
	logger.Info("job initialized from ledger", "accession", accession, "pipeline_status", rec.PipelineStatus)
	return &Job{
		accession:  accession,
		sourceFile: sourceFile,
		session:    session,
		tools:      tools,
		record:     rec,
		log:        logger,
	}, nil
}

// Run executes the steps in pipeline order. The first Failed step stops the
// chain; later steps keep their Pending status. Steps already recorded
// Success from a prior run are re-executed; the tools' own existence checks
// make that idempotent.
func (j *Job) Run(ctx context.Context) {
	if !j.runDownload(ctx).Done() {
		return
	}
	if !j.runValidate(ctx).Done() {
		return
	}
	if !j.runConvert(ctx).Done() {
		return
	}
	if !j.runSplit(ctx).Done() {
		return
	}
	if !j.runAlign(ctx).Done() {
		return
	}
	j.runUpload(ctx)
}

func (j *Job) runDownload(ctx context.Context) constants.StepStatus {
	if j.tools.Downloader == nil {
		j.log.Warn("no downloader provided; skipping download", "accession", j.accession)
		return j.setStep(ctx, constants.StepDownload, constants.StepSkipped)
	}

	res, err := func() (res DownloadResult, err error) {
		defer recoverToError(&err, "downloader")
		return j.tools.Downloader.Download(ctx, j.accession), nil
	}()
	if err != nil {
		j.log.Error("download crashed", "accession", j.accession, "error", err)
		return j.setStep(ctx, constants.StepDownload, constants.StepFailed)
	}

	switch res.Status {
	case DownloadSkipped:
		j.log.Info("archive already downloaded", "accession", j.accession)
		return j.setStep(ctx, constants.StepDownload, constants.StepSkipped)
	case DownloadSuccess:
		j.log.Info("download succeeded", "accession", j.accession)
		return j.setStep(ctx, constants.StepDownload, constants.StepSuccess)
	case DownloadFailed:
		j.log.Error("download failed", "accession", j.accession, "message", res.Message)
		return j.setStep(ctx, constants.StepDownload, constants.StepFailed)
	default:
		j.log.Error("unexpected download status", "accession", j.accession, "status", res.Status)
		return j.setStep(ctx, constants.StepDownload, constants.StepFailed)
	}
}

func (j *Job) runValidate(ctx context.Context) constants.StepStatus {
	if j.tools.Validator == nil {
		j.log.Warn("no validator provided; skipping validation", "accession", j.accession)
		return j.setStep(ctx, constants.StepValidate, constants.StepSkipped)
	}

	res, err := func() (res ValidationResult, err error) {
		defer recoverToError(&err, "validator")
		return j.tools.Validator.Validate(ctx, j.accession), nil
	}()
	if err != nil {
		j.log.Error("validation crashed", "accession", j.accession, "error", err)
		return j.setStep(ctx, constants.StepValidate, constants.StepFailed)
	}

	if res.Status == ValidationValid {
		j.log.Info("validation succeeded", "accession", j.accession)
		return j.setStep(ctx, constants.StepValidate, constants.StepSuccess)
	}
	j.log.Error("validation failed", "accession", j.accession, "status", res.Status, "message", res.Message)
	return j.setStep(ctx, constants.StepValidate, constants.StepFailed)
}

func (j *Job) runConvert(ctx context.Context) constants.StepStatus {
	if j.tools.Converter == nil {
		j.log.Warn("no converter provided; skipping conversion", "accession", j.accession)
		return j.setStep(ctx, constants.StepConvert, constants.StepSkipped)
	}

	res, err := func() (res ConvertResult, err error) {
		defer recoverToError(&err, "converter")
		return j.tools.Converter.Convert(ctx, j.accession), nil
	}()
	if err != nil {
		j.log.Error("conversion crashed", "accession", j.accession, "error", err)
		return j.setStep(ctx, constants.StepConvert, constants.StepFailed)
	}

	if !res.OK {
		j.log.Error("conversion failed", "accession", j.accession, "message", res.Message)
		return j.setStep(ctx, constants.StepConvert, constants.StepFailed)
	}

	j.log.Info("conversion succeeded", "accession", j.accession, "files", len(res.OutputFiles))
	j.artifacts = res.OutputFiles
	return j.setStep(ctx, constants.StepConvert, constants.StepSuccess)
}

func (j *Job) runSplit(ctx context.Context) constants.StepStatus {
	if j.tools.Splitter == nil {
		j.log.Warn("no splitter provided; skipping split", "accession", j.accession)
		return j.setStep(ctx, constants.StepSplit, constants.StepSkipped)
	}
	if len(j.artifacts) == 0 {
		j.log.Error("no FASTQ files available to split", "accession", j.accession)
		return j.setStep(ctx, constants.StepSplit, constants.StepFailed)
	}

	inputs := j.artifacts
	res, err := func() (res SplitResult, err error) {
		defer recoverToError(&err, "splitter")
		return j.tools.Splitter.Split(ctx, j.accession, inputs), nil
	}()
	if err != nil {
		j.log.Error("split crashed", "accession", j.accession, "error", err)
		return j.setStep(ctx, constants.StepSplit, constants.StepFailed)
	}

	if !res.OK {
		j.log.Error("split failed", "accession", j.accession, "message", res.Message)
		return j.setStep(ctx, constants.StepSplit, constants.StepFailed)
	}

	j.log.Info("split succeeded", "accession", j.accession, "files", len(res.OutputFiles), "summary", res.Summary)
	j.consumed = append(j.consumed, inputs...)
	j.artifacts = res.OutputFiles
	return j.setStep(ctx, constants.StepSplit, constants.StepSuccess)
}

func (j *Job) runAlign(ctx context.Context) constants.StepStatus {
	if j.tools.Aligner == nil {
		j.log.Warn("no aligner provided; skipping alignment", "accession", j.accession)
		return j.setStep(ctx, constants.StepAlign, constants.StepSkipped)
	}
	if len(j.artifacts) == 0 {
		j.log.Error("no input files available to align", "accession", j.accession)
		return j.setStep(ctx, constants.StepAlign, constants.StepFailed)
	}

	inputs := j.artifacts
	outputs, err := func() (out []string, err error) {
		defer recoverToError(&err, "aligner")
		return j.tools.Aligner.Align(ctx, j.accession, inputs)
	}()
	if err != nil {
		j.log.Error("alignment failed", "accession", j.accession, "error", err)
		return j.setStep(ctx, constants.StepAlign, constants.StepFailed)
	}

	j.log.Info("alignment succeeded", "accession", j.accession, "files", len(outputs))
	j.consumed = append(j.consumed, inputs...)
	j.artifacts = outputs
	return j.setStep(ctx, constants.StepAlign, constants.StepSuccess)
}

func (j *Job) runUpload(ctx context.Context) constants.StepStatus {
	if j.tools.Uploader == nil {
		j.log.Warn("no uploader provided; skipping upload", "accession", j.accession)
		return j.setStep(ctx, constants.StepUpload, constants.StepSkipped)
	}
	if len(j.artifacts) == 0 {
		j.log.Error("no artifacts available to upload", "accession", j.accession)
		return j.setStep(ctx, constants.StepUpload, constants.StepFailed)
	}

	for _, file := range j.artifacts {
		err := func() (err error) {
			defer recoverToError(&err, "uploader")
			return j.tools.Uploader.Upload(ctx, file)
		}()
		if err != nil {
			j.log.Error("upload failed", "accession", j.accession, "file", file, "error", err)
			return j.setStep(ctx, constants.StepUpload, constants.StepFailed)
		}
		j.log.Info("uploaded artifact", "accession", j.accession, "file", file)
		j.consumed = append(j.consumed, file)
	}
	return j.setStep(ctx, constants.StepUpload, constants.StepSuccess)
}

// setStep records the transition locally and flushes it to the ledger before
// the next step runs. A persistence error is logged; the in-memory record
// still advances so the run log row reflects what actually happened.
func (j *Job) setStep(ctx context.Context, step constants.StepName, status constants.StepStatus) constants.StepStatus {
	j.record.SetStep(step, status)
	if err := j.session.UpdateStep(ctx, j.accession, step, status); err != nil {
		j.log.Error("failed to persist step status",
			"accession", j.accession,
			"step", step,
			"status", status,
			"error", err,
		)
	}
	return status
}

// Consumed returns files whose consumer step verified success; they are safe
// to delete under the cleanup policy.
func (j *Job) Consumed() []string {
	return j.consumed
}

// Row flattens the final step statuses into a run log row.
func (j *Job) Row() runlog.Row {
	return runlog.Row{
		j.accession,
		string(j.record.DownloadStatus),
		string(j.record.ValidateStatus),
		string(j.record.ConvertStatus),
		string(j.record.SplitStatus),
		string(j.record.AlignStatus),
		string(j.record.UploadStatus),
		j.sourceFile,
	}
}

func recoverToError(err *error, tool string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panic: %v", tool, r)
	}
}
