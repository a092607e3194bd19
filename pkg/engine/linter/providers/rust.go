package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const rustGuidelines = `Write idiomatic Rust: prefer Result over panics in library code, avoid
unwrap() outside tests, run clippy-clean.`

// Rust is the Language Provider for .rs files.
type Rust struct{}

// NewRust returns the Rust Language Provider.
func NewRust() Rust { return Rust{} }

func (Rust) Supports(path string) bool { return strings.HasSuffix(path, ".rs") }

func (Rust) GetManifestFiles() []string { return []string{"Cargo.toml", "Cargo.lock"} }

func (Rust) GetSystemPrompt() string { return rustGuidelines }

func (Rust) Lint(ctx context.Context, path, root string) ([]string, error) {
	content, err := readForLint(path)
	if err != nil {
		return nil, err
	}
	var diagnostics []string
	if strings.Contains(content, "unsafe {") {
		diagnostics = append(diagnostics, fmt.Sprintf("SECURITY: 'unsafe' block in %s requires manual review.", path))
	}
	if strings.Contains(content, ".unwrap()") {
		diagnostics = append(diagnostics, "unwrap() outside test code is forbidden.")
	}
	return diagnostics, nil
}

func readForLint(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("linter: reading %s: %w", path, err)
	}
	return string(b), nil
}
