// Package decomposer turns a user prompt and a project context into a
// dependency DAG of steps (spec §4.4), and produces rescue steps when a
// step must be re-planned after exhausting local recovery.
package decomposer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/makercode/maker/pkg/engine/ctxassembler"
	"github.com/makercode/maker/pkg/engine/enginerr"
	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("engine:decomposer")

const maxRescueSteps = 3

// systemPrompt carries the planning rules (spec §4.4); the architect
// context itself goes into the user prompt (buildArchitectUserPrompt).
const systemPrompt = `You are the architect for an AI coding agent. Decompose the user's
request into an ordered, minimal set of steps forming a dependency DAG.

Rules:
- TOOL STEPS must include a toolCall field.
- CODING STEPS MUST NOT include a toolCall field.
- Directories must precede files inside them.
- Respond with a strict JSON array of steps and nothing else.`

// PartialStep is the loosely-typed step the model returns before it is
// normalized into a model.Step (spec §4.4).
type PartialStep struct {
	ID           string            `json:"id"`
	Description  string            `json:"description"`
	FileTarget   string            `json:"fileTarget"`
	Dependencies []string          `json:"dependencies"`
	Role         string            `json:"role"`
	ToolCall     *partialToolCall  `json:"toolCall,omitempty"`
}

type partialToolCall struct {
	ToolName  string            `json:"toolName"`
	Arguments map[string]string `json:"arguments"`
}

// Decomposer drives the architect and replan model calls.
type Decomposer struct {
	llm ports.LLMClient
}

// New returns a Decomposer backed by llm.
func New(llm ports.LLMClient) *Decomposer {
	return &Decomposer{llm: llm}
}

// Decompose implements spec §4.4's decompose(prompt, tools) -> [PartialStep].
func (d *Decomposer) Decompose(ctx context.Context, prompt string, architectCtx ctxassembler.ArchitectContext) ([]PartialStep, error) {
	userPrompt := buildArchitectUserPrompt(prompt, architectCtx)
	schemaJSON := json.RawMessage(`{"type":"array"}`)
	raw, err := d.llm.Generate(ctx, systemPrompt, userPrompt, &schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", enginerr.ErrModel, err)
	}

	steps, err := recoverStepArray(raw)
	if err != nil {
		log.Printf("decomposition failed to recover a step array: %v", err)
		return nil, enginerr.ErrDecomposition
	}
	if log.Enabled() {
		log.Printf("decomposed %q into %d step(s)", prompt, len(steps))
	}
	return steps, nil
}

// Replan implements spec §4.4's replan(failedStep, errorLog) -> [PartialStep].
func (d *Decomposer) Replan(ctx context.Context, failedStep *model.Step, errorLog string) ([]PartialStep, error) {
	userPrompt := fmt.Sprintf(
		"Step %q (%s) failed irrecoverably with the following log. Produce 1-3 rescue "+
			"steps that accomplish the same goal differently.\n\nLOG:\n%s",
		failedStep.ID, failedStep.Description, errorLog,
	)
	schemaJSON := json.RawMessage(`{"type":"array"}`)
	raw, err := d.llm.Generate(ctx, systemPrompt, userPrompt, &schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", enginerr.ErrModel, err)
	}

	steps, err := recoverStepArray(raw)
	if err != nil {
		return nil, nil // no rescue recovered; caller treats as empty
	}
	if len(steps) > maxRescueSteps {
		steps = steps[:maxRescueSteps]
	}
	for i := range steps {
		steps[i].ID = fmt.Sprintf("%s-rescue-%d", failedStep.ID, rand.Intn(1_000_000))
		if len(steps[i].Dependencies) == 0 {
			steps[i].Dependencies = append([]string(nil), failedStep.Dependencies...)
		}
	}
	return steps, nil
}

// NormalizeStep converts a validated PartialStep into a model.Step ready
// for QUEUED status, defaulting id/status and inheriting dependencies
// where the caller (the Scheduler splice path) supplies them (spec §4.11
// step 5).
func NormalizeStep(p PartialStep, fallbackID string, inheritDeps []string) *model.Step {
	id := p.ID
	if id == "" {
		id = fallbackID
	}
	deps := p.Dependencies
	if deps == nil {
		deps = inheritDeps
	}
	step := &model.Step{
		ID:           id,
		Description:  p.Description,
		FileTarget:   p.FileTarget,
		Status:       model.StatusQueued,
		Dependencies: deps,
		Role:         model.AgentRole(p.Role),
	}
	if p.ToolCall != nil {
		step.ToolCall = &model.ToolCall{
			ToolName:  p.ToolCall.ToolName,
			Arguments: p.ToolCall.Arguments,
		}
	}
	return step
}

func buildArchitectUserPrompt(prompt string, c ctxassembler.ArchitectContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "REQUEST: %s\n\n", prompt)
	fmt.Fprintf(&b, "PRIMARY LANGUAGE: %s (%s)\n\n", c.PrimaryLanguage, c.PackageManager)
	fmt.Fprintf(&b, "PROJECT TREE:\n%s\n\n", c.FileTree)
	fmt.Fprintf(&b, "MANIFESTS:\n%s\n\n", c.Manifests)
	for _, sf := range c.ScoutedFiles {
		fmt.Fprintf(&b, "SCOUTED %s:\n%s\n\n", sf.Path, sf.Content)
	}
	if len(c.Tools) > 0 {
		fmt.Fprintf(&b, "AVAILABLE TOOLS:\n")
		for _, t := range c.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}
	return b.String()
}

// recoverStepArray implements the tolerant parse of spec §4.4: strip code
// fences, validate against the schema, then accept a bare array, a single
// object carrying a {steps,tasks,decomposition,items} array property, or
// a single {id,description} object wrapped as one element.
func recoverStepArray(raw string) ([]PartialStep, error) {
	text := stripCodeFences(raw)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("decomposer: invalid JSON: %w", err)
	}
	if err := validatePlanJSON(normalizeForSchema(doc)); err != nil {
		log.Printf("plan schema validation failed, attempting tolerant recovery: %v", err)
	}

	switch v := doc.(type) {
	case []any:
		return decodeSteps(v)
	case map[string]any:
		for _, key := range []string{"steps", "tasks", "decomposition", "items"} {
			if arr, ok := v[key].([]any); ok {
				return decodeSteps(arr)
			}
		}
		if _, hasID := v["id"]; hasID {
			if _, hasDesc := v["description"]; hasDesc {
				return decodeSteps([]any{v})
			}
		}
	}
	return nil, fmt.Errorf("decomposer: no step array recovered")
}

// normalizeForSchema returns a bare array unchanged and substitutes an
// empty array for any other shape, so only the bare-array form is checked
// against the schema; wrapper objects and single-step objects are not
// schema-validated.
func normalizeForSchema(doc any) any {
	if arr, ok := doc.([]any); ok {
		return arr
	}
	return []any{}
}

func decodeSteps(items []any) ([]PartialStep, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	var steps []PartialStep
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("decomposer: empty step array")
	}
	return steps, nil
}

func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.Index(t, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(t[:idx])
		if firstLine == "json" || firstLine == "" {
			t = t[idx+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
