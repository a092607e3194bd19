package providers

import (
	"context"
	"fmt"
	"strings"
)

const pythonGuidelines = `Write idiomatic Python 3: type hints on public functions, no bare
except, f-strings over .format()/%.`

// Python is the Language Provider for .py files.
type Python struct{}

// NewPython returns the Python Language Provider.
func NewPython() Python { return Python{} }

func (Python) Supports(path string) bool { return strings.HasSuffix(path, ".py") }

func (Python) GetManifestFiles() []string {
	return []string{"pyproject.toml", "requirements.txt", "setup.py"}
}

func (Python) GetSystemPrompt() string { return pythonGuidelines }

func (Python) Lint(ctx context.Context, path, root string) ([]string, error) {
	content, err := readForLint(path)
	if err != nil {
		return nil, err
	}
	var diagnostics []string
	if strings.Contains(content, "import subprocess") {
		diagnostics = append(diagnostics, fmt.Sprintf("SECURITY: 'subprocess' module forbidden in %s.", path))
	}
	if strings.Contains(content, "except:") {
		diagnostics = append(diagnostics, "Bare 'except:' clause is forbidden.")
	}
	if strings.Contains(content, "eval(") || strings.Contains(content, "exec(") {
		diagnostics = append(diagnostics, fmt.Sprintf("SECURITY: eval/exec use in %s is forbidden.", path))
	}
	return diagnostics, nil
}
