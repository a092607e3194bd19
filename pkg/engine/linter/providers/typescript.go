package providers

import (
	"context"
	"fmt"
	"strings"
)

const typescriptGuidelines = `Write strict TypeScript: no "any", prefer union types and
generics, exhaustive switch statements over union discriminants.`

// TypeScript is the Language Provider for .ts/.tsx files. It runs a
// lightweight static check rather than shelling out to tsc/eslint, since
// the engine cannot assume a node_modules install exists in the worktree
// the step is generating into (spec §4.7 example, S3).
type TypeScript struct{}

// NewTypeScript returns the TypeScript Language Provider.
func NewTypeScript() TypeScript { return TypeScript{} }

func (TypeScript) Supports(path string) bool {
	return strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".tsx")
}

func (TypeScript) GetManifestFiles() []string { return []string{"package.json", "tsconfig.json"} }

func (TypeScript) GetSystemPrompt() string { return typescriptGuidelines }

func (TypeScript) Lint(ctx context.Context, path, root string) ([]string, error) {
	content, err := readForLint(path)
	if err != nil {
		return nil, err
	}
	var diagnostics []string
	if strings.Contains(content, ": any") || strings.Contains(content, "<any>") {
		diagnostics = append(diagnostics, "Explicit 'any' type is forbidden.")
	}
	if strings.Contains(content, "// @ts-ignore") {
		diagnostics = append(diagnostics, "@ts-ignore suppressions are forbidden.")
	}
	if strings.Contains(content, "eval(") {
		diagnostics = append(diagnostics, fmt.Sprintf("SECURITY: eval() use in %s is forbidden.", path))
	}
	return diagnostics, nil
}
