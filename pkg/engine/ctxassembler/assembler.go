// Package ctxassembler gathers the project context fed into the
// Decomposer and Step Executor prompts: the file tree, manifests,
// scouted files, and per-language guideline text (spec §4.3).
package ctxassembler

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/logger"
	"golang.org/x/mod/modfile"
)

var log = logger.New("engine:ctxassembler")

const scoutedFileLimit = 3
const scoutedTruncateLen = 1000
const minTokenLen = 4

// ArchitectContext is the bundle handed to the Decomposer for the initial
// plan (spec §4.3).
type ArchitectContext struct {
	FileTree          string
	Manifests         string
	ScoutedFiles      []ScoutedFile
	PrimaryLanguage   string
	PackageManager    string
	ForbiddenKeywords []string
	Tools             []config.ToolDefinition
}

// ScoutedFile is one basename-matched file surfaced to the architect.
type ScoutedFile struct {
	Path    string
	Content string
}

// forbiddenKeywordsByLanguage backs the Red-Flag Guard's cross-language
// sanity checks (spec §4.6): a keyword that belongs to a different
// ecosystem's package manager showing up in generated content is a sign
// the model drifted language.
var forbiddenKeywordsByLanguage = map[string][]string{
	"python": {"npm install"},
	"rust":   {"pip install"},
}

// Assembler builds prompt context by walking a FileSystem and consulting
// the registered Language Providers.
type Assembler struct {
	fs        ports.FileSystem
	providers []ports.LanguageProvider
}

// New returns an Assembler backed by fs and the given provider registry,
// queried in order for Supports/manifest matches.
func New(fs ports.FileSystem, providers []ports.LanguageProvider) *Assembler {
	return &Assembler{fs: fs, providers: providers}
}

// GetArchitectContext implements spec §4.3's first operation.
func (a *Assembler) GetArchitectContext(ctx context.Context, prompt string, tools []config.ToolDefinition) (ArchitectContext, error) {
	tree, err := a.fs.GetDirectoryTree(ctx)
	if err != nil {
		return ArchitectContext{}, fmt.Errorf("ctxassembler: directory tree: %w", err)
	}
	rendered := renderTree(tree, 0)

	manifests, primaryLanguage, packageManager := a.collectManifests(ctx, tree)
	scouted := a.scoutFiles(ctx, tree, prompt)

	if log.Enabled() {
		log.Printf("assembled architect context: %d manifest bytes, %d scouted files, language=%s",
			len(manifests), len(scouted), primaryLanguage)
	}

	return ArchitectContext{
		FileTree:          rendered,
		Manifests:         manifests,
		ScoutedFiles:      scouted,
		PrimaryLanguage:   primaryLanguage,
		PackageManager:    packageManager,
		ForbiddenKeywords: forbiddenKeywordsByLanguage[primaryLanguage],
		Tools:             tools,
	}, nil
}

// GetTaskContext implements spec §4.3's second operation.
func (a *Assembler) GetTaskContext(ctx context.Context, fileTarget string, dependencyStepIDs []string, allSteps []*model.Step) (string, error) {
	var b strings.Builder

	if fileTarget != "" {
		current, err := a.fs.Read(ctx, fileTarget)
		if err == nil {
			fmt.Fprintf(&b, "--- current content of %s ---\n%s\n", fileTarget, current)
		} else {
			fmt.Fprintf(&b, "--- %s does not exist yet ---\n", fileTarget)
		}
	}

	byID := make(map[string]*model.Step, len(allSteps))
	for _, s := range allSteps {
		byID[s.ID] = s
	}
	for _, depID := range dependencyStepIDs {
		dep, ok := byID[depID]
		if !ok {
			continue
		}
		if len(dep.Logs) > 0 {
			fmt.Fprintf(&b, "--- tool output from dependency %s ---\n%s\n", depID, strings.Join(dep.Logs, "\n"))
			continue
		}
		if dep.FileTarget != "" {
			fmt.Fprintf(&b, "--- dependency %s produced %s ---\n", depID, dep.FileTarget)
		}
	}

	if fileTarget != "" {
		for _, p := range a.providers {
			if p.Supports(fileTarget) {
				fmt.Fprintf(&b, "--- guidelines ---\n%s\n", p.GetSystemPrompt())
				break
			}
		}
	}

	return b.String(), nil
}

// ExpandContext implements spec §4.3's third operation: on a generation
// failure, extract the first quoted token from errorMessage and search
// the tree for a matching filename.
func (a *Assembler) ExpandContext(ctx context.Context, errorMessage string) (string, error) {
	token := firstQuotedToken(errorMessage)
	if token == "" {
		return "", nil
	}
	tree, err := a.fs.GetDirectoryTree(ctx)
	if err != nil {
		return "", fmt.Errorf("ctxassembler: directory tree: %w", err)
	}
	candidates := []string{token + ".ts", token + ".tsx", token + ".rs", token + ".py"}
	match := findFirstMatchingFile(tree, "", candidates)
	if match == "" {
		return "", nil
	}
	content, err := a.fs.Read(ctx, match)
	if err != nil {
		return "", fmt.Errorf("ctxassembler: reading auto-discovered file: %w", err)
	}
	return fmt.Sprintf("--- AUTO-DISCOVERED: %s ---\n%s\n", match, content), nil
}

func firstQuotedToken(msg string) string {
	start := strings.IndexAny(msg, "'\"")
	if start < 0 {
		return ""
	}
	quote := msg[start]
	rest := msg[start+1:]
	end := strings.IndexByte(rest, quote)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func findFirstMatchingFile(node ports.TreeEntry, prefix string, candidates []string) string {
	full := path.Join(prefix, node.Name)
	if !node.IsDir {
		lower := strings.ToLower(node.Name)
		for _, c := range candidates {
			if lower == strings.ToLower(c) {
				return full
			}
		}
		return ""
	}
	for _, child := range node.Children {
		childPrefix := full
		if prefix == "" && node.Name == "" {
			childPrefix = ""
		}
		if m := findFirstMatchingFile(child, childPrefix, candidates); m != "" {
			return m
		}
	}
	return ""
}

func renderTree(node ports.TreeEntry, depth int) string {
	var b strings.Builder
	renderTreeInto(&b, node, depth, "")
	return b.String()
}

func renderTreeInto(b *strings.Builder, node ports.TreeEntry, depth int, relPath string) {
	full := relPath
	if relPath != "" || node.Name != "" {
		full = path.Join(relPath, node.Name)
	}
	if node.Name != "" {
		if isExcluded(full) {
			return
		}
		fmt.Fprintf(b, "%s%s\n", strings.Repeat("  ", depth), node.Name)
	}
	children := append([]ports.TreeEntry(nil), node.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	nextDepth := depth
	if node.Name != "" {
		nextDepth = depth + 1
	}
	for _, child := range children {
		renderTreeInto(b, child, nextDepth, full)
	}
}

func (a *Assembler) collectManifests(ctx context.Context, tree ports.TreeEntry) (manifests, primaryLanguage, packageManager string) {
	manifestNames := make(map[string]bool)
	for _, p := range a.providers {
		for _, name := range p.GetManifestFiles() {
			manifestNames[name] = true
		}
	}

	var b strings.Builder
	var found []string
	walkFiles(tree, "", func(relPath string) {
		if isExcluded(relPath) {
			return
		}
		if manifestNames[path.Base(relPath)] {
			found = append(found, relPath)
		}
	})
	sort.Strings(found)

	for _, relPath := range found {
		content, err := a.fs.Read(ctx, relPath)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n", relPath, content)

		if path.Base(relPath) == "go.mod" {
			if modulePath, ok := parseGoModModulePath(content); ok {
				primaryLanguage = "go"
				packageManager = "go modules"
				_ = modulePath
			}
		}
		if primaryLanguage == "" {
			primaryLanguage, packageManager = languageForManifest(path.Base(relPath))
		}
	}

	return b.String(), primaryLanguage, packageManager
}

// parseGoModModulePath validates go.mod with x/mod/modfile rather than
// treating it as opaque text (SPEC_FULL §4.3).
func parseGoModModulePath(content string) (string, bool) {
	f, err := modfile.Parse("go.mod", []byte(content), nil)
	if err != nil || f.Module == nil {
		return "", false
	}
	return f.Module.Mod.Path, true
}

func languageForManifest(basename string) (language, packageManager string) {
	switch basename {
	case "package.json":
		return "typescript", "npm"
	case "Cargo.toml":
		return "rust", "cargo"
	case "pyproject.toml", "requirements.txt":
		return "python", "pip"
	case "go.mod":
		return "go", "go modules"
	default:
		return "", ""
	}
}

func (a *Assembler) scoutFiles(ctx context.Context, tree ports.TreeEntry, prompt string) []ScoutedFile {
	tokens := scoutTokens(prompt)
	if len(tokens) == 0 {
		return nil
	}

	var scouted []ScoutedFile
	walkFiles(tree, "", func(relPath string) {
		if len(scouted) >= scoutedFileLimit || isExcluded(relPath) {
			return
		}
		basename := path.Base(relPath)
		for _, token := range tokens {
			if basenameMatchesToken(basename, token) {
				content, err := a.fs.Read(ctx, relPath)
				if err != nil {
					return
				}
				if len(content) > scoutedTruncateLen {
					content = content[:scoutedTruncateLen]
				}
				scouted = append(scouted, ScoutedFile{Path: relPath, Content: content})
				return
			}
		}
	})
	return scouted
}

func scoutTokens(prompt string) []string {
	fields := strings.Fields(prompt)
	var tokens []string
	for _, f := range fields {
		if len(f) > minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func walkFiles(node ports.TreeEntry, relPath string, visit func(path string)) {
	full := relPath
	if relPath != "" || node.Name != "" {
		full = path.Join(relPath, node.Name)
	}
	if node.Name != "" && isExcluded(full) {
		return
	}
	if !node.IsDir && node.Name != "" {
		visit(full)
		return
	}
	for _, child := range node.Children {
		walkFiles(child, full, visit)
	}
}
