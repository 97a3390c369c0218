// Package runlog maintains the append-only CSV audit trail of per-accession
// pipeline outcomes. One file is created per batch run; failed rows feed the
// retry flow alongside the ledger.
package runlog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seqops/sra-pipeline/constants"
)

// Row is one flattened per-accession outcome: accession, the six step
// statuses in pipeline order, and the source file.
type Row []string

// Failed reports whether any step status column in the row is Failed.
func (r Row) Failed() bool {
	if len(r) < 7 {
		return false
	}
	for _, status := range r[1:7] {
		if status == string(constants.StepFailed) {
			return true
		}
	}
	return false
}

// Manager creates and appends to run log files under a fixed directory.
type Manager struct {
	dir string
	log *slog.Logger
}

func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, log: logger}
}

// Create starts a new timestamped run log containing only the header row and
// returns its path.
func (m *Manager) Create() (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create run log dir: %w", err)
	}

	path := filepath.Join(m.dir, fmt.Sprintf("progress_%s.csv", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create run log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(constants.CSVHeader); err != nil {
		return "", fmt.Errorf("write run log header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush run log header: %w", err)
	}

	m.log.Info("created run log", "path", path)
	return path, nil
}

// Append adds rows to an existing run log. Each call opens, writes and syncs
// so a crash mid-batch keeps every completed row.
func (m *Manager) Append(path string, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("append run log row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush run log: %w", err)
	}
	return f.Sync()
}

// Latest returns the most recently modified run log, or "" when none exist.
func (m *Manager) Latest() (string, error) {
	entries, err := filepath.Glob(filepath.Join(m.dir, "*.csv"))
	if err != nil {
		return "", err
	}

	var latest string
	var latestMod time.Time
	for _, path := range entries {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = path
			latestMod = info.ModTime()
		}
	}
	return latest, nil
}

// FailedAccessions parses a run log and returns the accessions of rows with
// any Failed step status.
func (m *Manager) FailedAccessions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse run log: %w", err)
	}

	var failed []string
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if Row(rec).Failed() {
			failed = append(failed, rec[0])
		}
	}
	return failed, nil
}

// LoadAccessions reads an accession list file: one identifier per non-blank
// line.
func LoadAccessions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accession list: %w", err)
	}

	var accessions []string
	for _, line := range strings.Split(string(data), "\n") {
		if acc := strings.TrimSpace(line); acc != "" {
			accessions = append(accessions, acc)
		}
	}
	return accessions, nil
}

// ListFiles returns the accession list files (*.txt) in a directory, sorted.
func ListFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	return paths, nil
}
