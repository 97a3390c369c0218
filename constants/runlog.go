package constants

// CSVHeader is the fixed header row of every run log file. Column order must
// match AllStepNames between the accession and source file columns.
var CSVHeader = []string{
	"Accession",
	"Download Status",
	"Validation Status",
	"Convert Status",
	"Split Status",
	"Align Status",
	"Upload Status",
	"Source File",
}
