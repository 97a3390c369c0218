package constants

// StepStatus is the canonical status for a single pipeline step.
type StepStatus string

// Stable values (store these exact strings in DB and run logs).
const (
	StepPending StepStatus = "Pending"
	StepSuccess StepStatus = "Success"
	StepFailed  StepStatus = "Failed"
	StepSkipped StepStatus = "Skipped"
)

// Done reports whether the step no longer blocks its successor.
func (s StepStatus) Done() bool {
	return s == StepSuccess || s == StepSkipped
}

// PipelineStatus is the aggregate status of one accession's job.
// It is always derived from the six step statuses, never set directly.
type PipelineStatus string

const (
	PipelinePending    PipelineStatus = "Pending"
	PipelineInProgress PipelineStatus = "InProgress"
	PipelineCompleted  PipelineStatus = "Completed"
	PipelineFailed     PipelineStatus = "Failed"
)

// StepName identifies one stage of the pipeline.
type StepName string

const (
	StepDownload StepName = "download"
	StepValidate StepName = "validate"
	StepConvert  StepName = "convert"
	StepSplit    StepName = "split"
	StepAlign    StepName = "align"
	StepUpload   StepName = "upload"
)

// AllStepNames is the fixed execution order. A step may only run after its
// predecessor reached Success or Skipped.
var AllStepNames = []StepName{
	StepDownload,
	StepValidate,
	StepConvert,
	StepSplit,
	StepAlign,
	StepUpload,
}
