package ledger

import (
	"time"

	"github.com/seqops/sra-pipeline/constants"
)

// JobRecord is the durable per-accession row in the jobs table. The accession
// is externally assigned and immutable; rows are created once and only their
// status columns and updated_at ever change.
type JobRecord struct {
	Accession      string                   `db:"accession"`
	SourceFile     string                   `db:"source_file"`
	DownloadStatus constants.StepStatus     `db:"download_status"`
	ValidateStatus constants.StepStatus     `db:"validate_status"`
	ConvertStatus  constants.StepStatus     `db:"convert_status"`
	SplitStatus    constants.StepStatus     `db:"split_status"`
	AlignStatus    constants.StepStatus     `db:"align_status"`
	UploadStatus   constants.StepStatus     `db:"upload_status"`
	PipelineStatus constants.PipelineStatus `db:"pipeline_status"`
	CreatedAt      time.Time                `db:"created_at"`
	UpdatedAt      time.Time                `db:"updated_at"`
}

// Step returns the status of the named step.
func (r *JobRecord) Step(name constants.StepName) constants.StepStatus {
	switch name {
	case constants.StepDownload:
		return r.DownloadStatus
	case constants.StepValidate:
		return r.ValidateStatus
	case constants.StepConvert:
		return r.ConvertStatus
	case constants.StepSplit:
		return r.SplitStatus
	case constants.StepAlign:
		return r.AlignStatus
	case constants.StepUpload:
		return r.UploadStatus
	}
	return constants.StepPending
}

// SetStep sets the status of the named step. Unknown names are ignored.
func (r *JobRecord) SetStep(name constants.StepName, status constants.StepStatus) {
	switch name {
	case constants.StepDownload:
		r.DownloadStatus = status
	case constants.StepValidate:
		r.ValidateStatus = status
	case constants.StepConvert:
		r.ConvertStatus = status
	case constants.StepSplit:
		r.SplitStatus = status
	case constants.StepAlign:
		r.AlignStatus = status
	case constants.StepUpload:
		r.UploadStatus = status
	}
}

// StepStatuses returns the six step statuses in pipeline order.
func (r *JobRecord) StepStatuses() []constants.StepStatus {
	return []constants.StepStatus{
		r.DownloadStatus,
		r.ValidateStatus,
		r.ConvertStatus,
		r.SplitStatus,
		r.AlignStatus,
		r.UploadStatus,
	}
}

// Derive computes the aggregate pipeline status from step statuses.
// Any Failed step fails the pipeline; a job whose steps are all Pending has
// not started yet and reports Pending.
func Derive(steps []constants.StepStatus) constants.PipelineStatus {
	allDone := true
	allPending := true
	for _, s := range steps {
		switch {
		case s == constants.StepFailed:
			return constants.PipelineFailed
		case !s.Done():
			allDone = false
		}
		if s != constants.StepPending {
			allPending = false
		}
	}
	if allPending {
		return constants.PipelinePending
	}
	if allDone {
		return constants.PipelineCompleted
	}
	return constants.PipelineInProgress
}
