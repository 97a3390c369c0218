package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "sra_pipeline.db", cfg.Ledger.DSN)
	assert.Equal(t, 5, cfg.Run.BatchSize)
	assert.Equal(t, 4, cfg.Run.Threads)
	assert.Equal(t, "100G", cfg.Run.PrefetchMaxSize)
	assert.False(t, cfg.Run.UploadS3)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LEDGER_DSN", "postgres://ledger/jobs")
	t.Setenv("BATCH_SIZE", "12")
	t.Setenv("UPLOAD_S3", "true")
	t.Setenv("S3_BUCKET", "results")

	cfg := LoadConfig()
	assert.Equal(t, "postgres://ledger/jobs", cfg.Ledger.DSN)
	assert.Equal(t, 12, cfg.Run.BatchSize)
	assert.True(t, cfg.Run.UploadS3)
	assert.Equal(t, "results", cfg.S3.Bucket)
}

func TestLoadConfigIgnoresUnparseableEnv(t *testing.T) {
	t.Setenv("BATCH_SIZE", "many")
	t.Setenv("UPLOAD_S3", "yep")

	cfg := LoadConfig()
	assert.Equal(t, 5, cfg.Run.BatchSize)
	assert.False(t, cfg.Run.UploadS3)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := LoadConfig()
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("missing DSN", func(t *testing.T) {
		cfg := base()
		cfg.Ledger.DSN = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LEDGER_DSN")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non-positive batch size", func(t *testing.T) {
		cfg := base()
		cfg.Run.BatchSize = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("upload without bucket", func(t *testing.T) {
		cfg := base()
		cfg.Run.UploadS3 = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S3_BUCKET")
	})

	t.Run("split without entrez email", func(t *testing.T) {
		cfg := base()
		cfg.Run.SplitFastq = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ENTREZ_EMAIL")
	})
}

func TestApplyFileOverlaysOnTopOfEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"run": {"batch_size": 2, "align_star": true},
		"s3": {"bucket": "overridden"}
	}`), 0o644))

	cfg := LoadConfig()
	require.NoError(t, cfg.ApplyFile(path))

	assert.Equal(t, 2, cfg.Run.BatchSize)
	assert.True(t, cfg.Run.AlignStar)
	assert.Equal(t, "overridden", cfg.S3.Bucket)
	// Untouched sections keep their environment values.
	assert.Equal(t, "sra_pipeline.db", cfg.Ledger.DSN)
	assert.Equal(t, 4, cfg.Run.Threads)
}

func TestApplyFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run": {"batchsize": 2}}`), 0o644))

	cfg := LoadConfig()
	err := cfg.ApplyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestApplyFileRejectsWrongTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run": {"batch_size": "two"}}`), 0o644))

	cfg := LoadConfig()
	require.Error(t, cfg.ApplyFile(path))
}

func TestApplyFileMissingFile(t *testing.T) {
	cfg := LoadConfig()
	require.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.json")))
}
