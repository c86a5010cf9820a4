package parser

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"github.com/bench-track/bench-track/tracker/types"
)

// recordSchema is the wire contract for imported result files. Validation
// happens before decoding so a malformed file is rejected as a whole with a
// pointer to the offending field.
const recordSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["component_name", "benchmark_name", "duration_ns", "timestamp"],
		"properties": {
			"component_name": {"type": "string", "minLength": 1},
			"benchmark_name": {"type": "string", "minLength": 1},
			"duration_ns": {"type": "integer", "minimum": 0},
			"memory_bytes": {"type": "integer", "minimum": 0},
			"cpu_percent": {"type": "number", "minimum": 0},
			"timestamp": {"type": "string", "format": "date-time"},
			"version_id": {"type": "string"},
			"metadata": {
				"type": "object",
				"additionalProperties": {"type": "string"}
			}
		}
	}
}`

// resultsEnvelope accepts both a bare JSON array and the {"results": [...]}
// wrapper some exporters emit.
type resultsEnvelope struct {
	Results json.RawMessage `json:"results"`
}

// LoadResultsFile reads a JSON result file, validates it against the record
// schema, and decodes it into records. Schema violations surface as
// InvalidRecordError so the CLI can exit with the malformed-input code.
func LoadResultsFile(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	return DecodeResults(data)
}

// DecodeResults validates and decodes a JSON result payload.
func DecodeResults(data []byte) ([]types.Record, error) {
	payload := unwrap(data)

	schemaLoader := gojsonschema.NewStringLoader(recordSchema)
	documentLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, &types.InvalidRecordError{Reason: "results are not valid JSON: " + err.Error()}
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return nil, &types.InvalidRecordError{
			Reason: fmt.Sprintf("schema violation at %s: %s", first.Field(), first.Description()),
		}
	}

	var records []types.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, &types.InvalidRecordError{Reason: "failed to decode records: " + err.Error()}
	}
	return records, nil
}

func unwrap(data []byte) []byte {
	var envelope resultsEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Results) > 0 {
		return envelope.Results
	}
	return data
}
