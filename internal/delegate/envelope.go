package delegate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ExecuteRequest is the wire envelope sent to the delegate environment
// for one call.
type ExecuteRequest struct {
	ID        string `json:"id"`
	Module    string `json:"module"`
	Operation string `json:"operation"`
	Args      []any  `json:"args"`
	TimeoutMs int64  `json:"timeout_ms"`
	Priority  string `json:"priority"`
	// Resource envelope.
	RequireGPU     bool              `json:"require_gpu,omitempty"`
	MaxMemoryMB    int64             `json:"max_memory_mb,omitempty"`
	NetworkAllowed bool              `json:"network_allowed"`
	Sandboxed      bool              `json:"sandboxed"`
	Env            map[string]string `json:"env,omitempty"`
}

// ExecuteResult is the wire envelope returned by the delegate.
// Success=false with a populated Error is a delegate-reported failure,
// distinct from transport errors.
type ExecuteResult struct {
	Success   bool           `json:"success"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ElapsedMs int64          `json:"elapsed_ms"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// resultSchema validates delegate result envelopes before they are
// trusted. The delegate is an external process; a malformed reply must
// fail the attempt instead of propagating garbage to the caller.
const resultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["success", "elapsed_ms"],
  "properties": {
    "success": {"type": "boolean"},
    "result": {},
    "error": {"type": "string"},
    "elapsed_ms": {"type": "number", "minimum": 0},
    "metadata": {"type": "object"}
  }
}`

var compiledResultSchema = mustCompileSchema(resultSchema)

func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("delegate: unmarshal result schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("result.json", doc); err != nil {
		panic(fmt.Sprintf("delegate: add result schema: %v", err))
	}
	schema, err := c.Compile("result.json")
	if err != nil {
		panic(fmt.Sprintf("delegate: compile result schema: %v", err))
	}
	return schema
}

// DecodeResult validates raw envelope bytes against the result schema
// and unmarshals them.
func DecodeResult(raw json.RawMessage) (*ExecuteResult, error) {
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// validator requires.
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("invalid result envelope: %w", err)
	}
	if err := compiledResultSchema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("result envelope schema validation failed: %w", err)
	}
	var result ExecuteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode result envelope: %w", err)
	}
	return &result, nil
}
