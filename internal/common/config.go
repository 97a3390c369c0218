package common

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Ledger LedgerConfig `json:"ledger"`
	Paths  PathsConfig  `json:"paths"`
	Run    RunConfig    `json:"run"`
	S3     S3Config     `json:"s3"`
	Entrez EntrezConfig `json:"entrez"`
}

// LedgerConfig holds job-ledger database configuration
type LedgerConfig struct {
	// DSN is a SQLite path or a postgres:// URL.
	DSN string `json:"dsn"`
}

// PathsConfig holds every directory the pipeline reads or writes
type PathsConfig struct {
	ListsDir     string `json:"lists_dir"`
	SRADir       string `json:"sra_dir"`
	FastqDir     string `json:"fastq_dir"`
	SplitDir     string `json:"split_dir"`
	AlignDir     string `json:"align_dir"`
	GenomeDir    string `json:"genome_dir"`
	BarcodeDir   string `json:"barcode_dir"`
	RunLogDir    string `json:"runlog_dir"`
	GSMCachePath string `json:"gsm_cache_path"`
}

// RunConfig holds batch sizing and stage toggles
type RunConfig struct {
	BatchSize       int    `json:"batch_size"`
	Threads         int    `json:"threads"`
	PrefetchMaxSize string `json:"prefetch_max_size"`
	ConvertFastq    bool   `json:"convert_fastq"`
	SplitFastq      bool   `json:"split_fastq"`
	AlignStar       bool   `json:"align_star"`
	UploadS3        bool   `json:"upload_s3"`
	CleanupLocal    bool   `json:"cleanup_local"`
}

// S3Config holds artifact upload configuration
type S3Config struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// EntrezConfig holds NCBI Entrez client configuration
type EntrezConfig struct {
	Email string `json:"email"`
}

// LoadConfig loads configuration from environment variables, after reading a
// .env file if one is present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Ledger: LedgerConfig{
			DSN: getEnv("LEDGER_DSN", "sra_pipeline.db"),
		},
		Paths: PathsConfig{
			ListsDir:     getEnv("SRA_LISTS_DIR", "./sra_lists"),
			SRADir:       getEnv("SRA_OUTPUT_DIR", "./sra"),
			FastqDir:     getEnv("FASTQ_DIR", "./fastq"),
			SplitDir:     getEnv("SPLIT_FASTQ_DIR", "./split_fastq"),
			AlignDir:     getEnv("STAR_OUTPUT_DIR", "./star_output"),
			GenomeDir:    getEnv("GENOME_DIR", "./genome"),
			BarcodeDir:   getEnv("BARCODE_DIR", "./barcodes"),
			RunLogDir:    getEnv("RUNLOG_DIR", "./logs"),
			GSMCachePath: getEnv("GSM_CACHE_PATH", "srr_gsm_cache.json"),
		},
		Run: RunConfig{
			BatchSize:       getEnvAsInt("BATCH_SIZE", 5),
			Threads:         getEnvAsInt("THREADS", 4),
			PrefetchMaxSize: getEnv("PREFETCH_MAX_SIZE", "100G"),
			ConvertFastq:    getEnvAsBool("CONVERT_FASTQ", false),
			SplitFastq:      getEnvAsBool("SPLIT_FASTQ", false),
			AlignStar:       getEnvAsBool("ALIGN_STAR", false),
			UploadS3:        getEnvAsBool("UPLOAD_S3", false),
			CleanupLocal:    getEnvAsBool("CLEANUP_LOCAL", false),
		},
		S3: S3Config{
			Bucket: getEnv("S3_BUCKET", ""),
			Prefix: getEnv("S3_PREFIX", ""),
		},
		Entrez: EntrezConfig{
			Email: getEnv("ENTREZ_EMAIL", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Ledger.DSN == "" {
		return NewAppError("CONFIG_ERROR", "LEDGER_DSN is required", ErrInvalidInput)
	}
	if c.Paths.ListsDir == "" {
		return NewAppError("CONFIG_ERROR", "SRA_LISTS_DIR is required", ErrInvalidInput)
	}
	if c.Run.BatchSize <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if c.Run.UploadS3 && c.S3.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "S3_BUCKET is required when UPLOAD_S3 is set", ErrInvalidInput)
	}
	if c.Run.SplitFastq && c.Entrez.Email == "" {
		return NewAppError("CONFIG_ERROR", "ENTREZ_EMAIL is required when SPLIT_FASTQ is set", ErrInvalidInput)
	}
	return nil
}
