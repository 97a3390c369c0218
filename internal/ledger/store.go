package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	// Database drivers. SQLite serves single-host runs, Postgres shared ones.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/seqops/sra-pipeline/constants"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	accession        TEXT PRIMARY KEY,
	source_file      TEXT NOT NULL DEFAULT '',
	download_status  TEXT NOT NULL DEFAULT 'Pending',
	validate_status  TEXT NOT NULL DEFAULT 'Pending',
	convert_status   TEXT NOT NULL DEFAULT 'Pending',
	split_status     TEXT NOT NULL DEFAULT 'Pending',
	align_status     TEXT NOT NULL DEFAULT 'Pending',
	upload_status    TEXT NOT NULL DEFAULT 'Pending',
	pipeline_status  TEXT NOT NULL DEFAULT 'Pending',
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
)`

// Store owns the jobs table. Workers never share a Store handle directly;
// each unit of work checks out its own Session.
type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

// Open connects to the ledger database and ensures the schema exists.
// A DSN starting with postgres:// selects the pgx driver; anything else is
// treated as a SQLite path (":memory:" included).
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	} else {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		logger.Error("failed to connect to ledger database", "driver", driver, "error", err)
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}

	logger.Info("ledger ready", "driver", driver)
	return &Store{db: db, log: logger}, nil
}

// sqliteDSN appends the connection pragmas every pooled SQLite handle needs.
// SQLite locks the whole database, and the driver registers no busy handler,
// so without a busy timeout a worker committing its step update would make a
// concurrent worker's write fail immediately with SQLITE_BUSY instead of
// waiting its turn. WAL keeps readers off the writer's lock.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session checks out a dedicated connection for one unit of work. The caller
// must Close it when the job finishes.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire ledger session: %w", err)
	}
	return &Session{conn: conn, log: s.log}, nil
}

// stepColumn maps a step name to its status column. The switch keeps column
// names out of caller-supplied strings.
func stepColumn(name constants.StepName) (string, bool) {
	switch name {
	case constants.StepDownload:
		return "download_status", true
	case constants.StepValidate:
		return "validate_status", true
	case constants.StepConvert:
		return "convert_status", true
	case constants.StepSplit:
		return "split_status", true
	case constants.StepAlign:
		return "align_status", true
	case constants.StepUpload:
		return "upload_status", true
	}
	return "", false
}

// SelectFailed returns accessions whose named step is Failed, or, when step is
// empty, accessions with a Failed status in any step.
func (s *Store) SelectFailed(ctx context.Context, step constants.StepName) ([]string, error) {
	var query string
	if step == "" {
		conds := make([]string, 0, len(constants.AllStepNames))
		for _, n := range constants.AllStepNames {
			col, _ := stepColumn(n)
			conds = append(conds, col+" = ?")
		}
		query = "SELECT accession FROM jobs WHERE " + strings.Join(conds, " OR ") + " ORDER BY accession"
	} else {
		col, ok := stepColumn(step)
		if !ok {
			return nil, fmt.Errorf("unknown step name %q", step)
		}
		query = "SELECT accession FROM jobs WHERE " + col + " = ? ORDER BY accession"
	}

	args := make([]interface{}, strings.Count(query, "?"))
	for i := range args {
		args[i] = constants.StepFailed
	}

	var accessions []string
	if err := s.db.SelectContext(ctx, &accessions, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select failed jobs: %w", err)
	}
	return accessions, nil
}

// AllJobs returns every job record, ordered by accession.
func (s *Store) AllJobs(ctx context.Context) ([]JobRecord, error) {
	var jobs []JobRecord
	query := s.db.Rebind("SELECT * FROM jobs ORDER BY accession")
	if err := s.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}
