package pipeline

import "context"

// Step tool contracts. Each pipeline stage is an external collaborator behind
// a narrow interface so runs can provision any subset of the later stages.

type Downloader interface {
	Download(ctx context.Context, accession string) DownloadResult
}

type Validator interface {
	Validate(ctx context.Context, accession string) ValidationResult
}

type Converter interface {
	Convert(ctx context.Context, accession string) ConvertResult
}

type Splitter interface {
	Split(ctx context.Context, accession string, fastqFiles []string) SplitResult
}

type Aligner interface {
	Align(ctx context.Context, accession string, inputFiles []string) ([]string, error)
}

type Uploader interface {
	Upload(ctx context.Context, localFile string) error
}

// ToolBundle is the set of provisioned step tools for a run. A nil field
// means the stage was not requested; the job marks it Skipped.
type ToolBundle struct {
	Downloader Downloader
	Validator  Validator
	Converter  Converter
	Splitter   Splitter
	Aligner    Aligner
	Uploader   Uploader
}
