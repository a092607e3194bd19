package ctxassembler

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludedDirs is the fileTree exclusion set (spec §4.3).
var excludedDirs = []string{
	"node_modules", "target", "venv", ".git", "dist", ".maker", "build",
	"__pycache__", ".vscode",
}

// excludedGlobs expresses excludedDirs as doublestar patterns so both the
// tree walk and scoutedFiles matching share one glob helper.
var excludedGlobs = buildExcludedGlobs()

func buildExcludedGlobs() []string {
	globs := make([]string, len(excludedDirs))
	for i, dir := range excludedDirs {
		globs[i] = "**/" + dir + "/**"
	}
	return globs
}

// isExcluded reports whether a slash-separated relative path falls under
// one of the excluded directories.
func isExcluded(relPath string) bool {
	clean := strings.TrimPrefix(relPath, "/")
	for _, g := range excludedGlobs {
		if ok, _ := doublestar.Match(g, clean); ok {
			return true
		}
	}
	for _, dir := range excludedDirs {
		if clean == dir {
			return true
		}
	}
	return false
}

// basenameMatchesToken reports whether basename contains token,
// case-insensitively, using doublestar's glob matching for consistency
// with the exclusion-set matcher.
func basenameMatchesToken(basename, token string) bool {
	pattern := "*" + strings.ToLower(token) + "*"
	ok, _ := doublestar.Match(pattern, strings.ToLower(basename))
	return ok
}
