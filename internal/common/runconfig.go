package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// runConfigSchema constrains the optional run-config file. Overrides layer
// on top of the environment config, so every section is optional.
const runConfigSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"ledger": {
			"type": "object",
			"additionalProperties": false,
			"properties": {"dsn": {"type": "string"}}
		},
		"paths": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"lists_dir": {"type": "string"},
				"sra_dir": {"type": "string"},
				"fastq_dir": {"type": "string"},
				"split_dir": {"type": "string"},
				"align_dir": {"type": "string"},
				"genome_dir": {"type": "string"},
				"barcode_dir": {"type": "string"},
				"runlog_dir": {"type": "string"},
				"gsm_cache_path": {"type": "string"}
			}
		},
		"run": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"batch_size": {"type": "integer", "minimum": 1},
				"threads": {"type": "integer", "minimum": 1},
				"prefetch_max_size": {"type": "string"},
				"convert_fastq": {"type": "boolean"},
				"split_fastq": {"type": "boolean"},
				"align_star": {"type": "boolean"},
				"upload_s3": {"type": "boolean"},
				"cleanup_local": {"type": "boolean"}
			}
		},
		"s3": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"bucket": {"type": "string"},
				"prefix": {"type": "string"}
			}
		},
		"entrez": {
			"type": "object",
			"additionalProperties": false,
			"properties": {"email": {"type": "string"}}
		}
	}
}`

// ApplyFile overlays a JSON run-config file onto the config. The file is
// validated against the schema first so typos fail loudly instead of being
// silently ignored.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read run config: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("runconfig.json", bytes.NewReader([]byte(runConfigSchema))); err != nil {
		return fmt.Errorf("add run config schema: %w", err)
	}
	schema, err := compiler.Compile("runconfig.json")
	if err != nil {
		return fmt.Errorf("compile run config schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse run config: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("run config does not match schema: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("apply run config: %w", err)
	}
	return nil
}
