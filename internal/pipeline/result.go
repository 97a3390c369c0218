package pipeline

// DownloadOutcome is what a downloader reports for one accession.
type DownloadOutcome string

const (
	DownloadSuccess DownloadOutcome = "Success"
	DownloadFailed  DownloadOutcome = "Failed"
	// DownloadSkipped means the archive already exists locally. Not an error.
	DownloadSkipped DownloadOutcome = "Skipped"
)

// DownloadResult carries the downloader's outcome and diagnostic message.
type DownloadResult struct {
	Status  DownloadOutcome
	Message string
}

// ValidationOutcome is the validator's verdict on a downloaded archive.
type ValidationOutcome string

const (
	ValidationValid       ValidationOutcome = "Valid"
	ValidationInvalid     ValidationOutcome = "Invalid"
	ValidationFileMissing ValidationOutcome = "FileMissing"
)

type ValidationResult struct {
	Status  ValidationOutcome
	Message string
}

// ConvertResult reports a format conversion and the files it produced.
type ConvertResult struct {
	OK          bool
	OutputFiles []string
	Message     string
}

// SplitResult reports a demultiplex run: per-cell output files plus a
// summary of read counts per output.
type SplitResult struct {
	OK          bool
	OutputFiles []string
	Summary     map[string]int
	Message     string
}
