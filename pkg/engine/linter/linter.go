// Package linter runs the matching Language Provider over a written
// candidate file and classifies its diagnostics (spec §4.7).
package linter

import (
	"context"
	"strings"

	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("engine:linter")

// MaxRetries is the auto-fix retry budget before the Step Executor
// escalates to re-plan (spec §4.7, §7).
const MaxRetries = 2

const securityMarker = "SECURITY:"

// Result is the outcome of one lint pass.
type Result struct {
	Diagnostics []string
	Security    bool
}

// Registry resolves the Language Provider matching a file path.
type Registry struct {
	providers []ports.LanguageProvider
}

// NewRegistry returns a Registry over the given providers, consulted in
// order for the first Supports match.
func NewRegistry(providers ...ports.LanguageProvider) *Registry {
	return &Registry{providers: providers}
}

// For returns the provider matching path, or nil if none supports it.
func (r *Registry) For(path string) ports.LanguageProvider {
	for _, p := range r.providers {
		if p.Supports(path) {
			return p
		}
	}
	return nil
}

// All returns every registered provider, for manifest-file aggregation.
func (r *Registry) All() []ports.LanguageProvider {
	return r.providers
}

// Lint runs the provider matching path and classifies the result
// (spec §4.7): any SECURITY: diagnostic makes the result fatal.
func Lint(ctx context.Context, provider ports.LanguageProvider, path, root string) (Result, error) {
	if provider == nil {
		return Result{}, nil
	}
	diagnostics, err := provider.Lint(ctx, path, root)
	if err != nil {
		return Result{}, err
	}
	res := Result{Diagnostics: diagnostics}
	for _, d := range diagnostics {
		if strings.Contains(d, securityMarker) {
			res.Security = true
			break
		}
	}
	if log.Enabled() {
		log.Printf("lint %s: %d diagnostic(s), security=%v", path, len(diagnostics), res.Security)
	}
	return res, nil
}
