package decomposer

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// planStepSchema is the strict JSON-array schema model responses are
// checked against locally (spec §4.4); the request sent to the model
// itself carries only {"type":"array"}.
var planStepSchema = &jsonschema.Schema{
	Type: "array",
	Items: &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":          {Type: "string"},
			"description": {Type: "string"},
			"fileTarget":  {Type: "string"},
			"dependencies": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"role": {Type: "string"},
			"toolCall": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"toolName":  {Type: "string"},
					"arguments": {Type: "object"},
				},
			},
		},
		Required: []string{"id", "description"},
	},
}

var (
	compileOnce     sync.Once
	compiledSchema  *validator.Schema
	compileErr      error
)

// compiledPlanSchema compiles planStepSchema once and caches it, the same
// sync.Once-guarded pattern the teacher uses for its own schema
// validation stack.
func compiledPlanSchema() (*validator.Schema, error) {
	compileOnce.Do(func() {
		raw, err := json.Marshal(planStepSchema)
		if err != nil {
			compileErr = fmt.Errorf("decomposer: marshal plan schema: %w", err)
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr = fmt.Errorf("decomposer: unmarshal plan schema: %w", err)
			return
		}
		compiler := validator.NewCompiler()
		const schemaURL = "mem://maker/plan-step.schema.json"
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("decomposer: add plan schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile(schemaURL)
		if err != nil {
			compileErr = fmt.Errorf("decomposer: compile plan schema: %w", err)
			return
		}
		compiledSchema = schema
	})
	return compiledSchema, compileErr
}

// validatePlanJSON validates a candidate array-of-steps JSON document
// against planStepSchema before tolerant parsing is attempted (SPEC_FULL
// §4.4). Validation failure is not a distinct error: the caller logs it
// and still attempts tolerant recovery.
func validatePlanJSON(doc any) error {
	schema, err := compiledPlanSchema()
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}
