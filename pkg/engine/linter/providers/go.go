// Package providers holds the concrete Language Provider implementations
// Linter Loop dispatches to, one per supported ecosystem (spec §4.7).
package providers

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"

	"github.com/securego/gosec/v2"
	"github.com/securego/gosec/v2/rules"
	"golang.org/x/tools/go/packages"

	"github.com/makercode/maker/pkg/logger"
)

var goLog = logger.New("engine:linter:go")

// goGuidelines is the guideline text the Context Assembler attaches when
// the target file's Language Provider is Go.
const goGuidelines = `Write idiomatic Go: explicit error returns, no panics for
expected failure paths, gofmt-clean formatting, package doc comments on
exported identifiers that need one.`

// Go is the Language Provider for .go files, backed by gosec for the
// SECURITY: diagnostics the Linter Loop treats as fatal (spec §4.7).
type Go struct{}

// NewGo returns the Go Language Provider.
func NewGo() Go { return Go{} }

func (Go) Supports(path string) bool { return strings.HasSuffix(path, ".go") }

func (Go) GetManifestFiles() []string { return []string{"go.mod", "go.sum"} }

func (Go) GetSystemPrompt() string { return goGuidelines }

// Lint runs gosec's security analyzer over the package containing path
// and returns each finding as a diagnostic, SECURITY:-prefixed for
// anything gosec rates medium severity or higher.
func (Go) Lint(ctx context.Context, path, root string) ([]string, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.LoadSyntax,
		Dir:     root,
	}
	pkgDir := filepath.Dir(path)
	pkgs, err := packages.Load(cfg, "./"+relTo(root, pkgDir))
	if err != nil {
		return nil, fmt.Errorf("go provider: load package: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, nil
	}

	logger := stdlog.New(os.Stderr, "", 0)
	analyzer := gosec.NewAnalyzer(gosec.NewConfig(), true, false, false, 1, logger)
	analyzer.LoadRules(rules.Generate(false).Builders())

	for _, pkg := range pkgs {
		analyzer.Check(pkg)
	}
	issues, _, errs := analyzer.Report()
	if len(errs) > 0 && goLog.Enabled() {
		goLog.Printf("gosec reported %d analysis error(s)", len(errs))
	}

	var diagnostics []string
	for _, issue := range issues {
		if !strings.HasSuffix(issue.File, filepath.Base(path)) {
			continue
		}
		prefix := ""
		if issue.Severity >= gosec.Medium {
			prefix = "SECURITY: "
		}
		diagnostics = append(diagnostics, fmt.Sprintf("%s%s (%s) at %s:%s", prefix, issue.What, issue.RuleID, issue.File, issue.Line))
	}
	return diagnostics, nil
}

func relTo(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "."
	}
	return rel
}
