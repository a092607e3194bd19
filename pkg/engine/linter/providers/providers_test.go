//go:build !integration

package providers_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/engine/linter/providers"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPythonSupportsOnlyPyFiles(t *testing.T) {
	p := providers.NewPython()
	assert.True(t, p.Supports("src/app.py"))
	assert.False(t, p.Supports("src/app.rs"))
	assert.Equal(t, []string{"pyproject.toml", "requirements.txt", "setup.py"}, p.GetManifestFiles())
}

func TestPythonLintFlagsSubprocessImportAsSecurity(t *testing.T) {
	path := writeTemp(t, "run.py", "import subprocess\nsubprocess.run(['ls'])\n")
	diags, err := providers.NewPython().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "SECURITY:")
	assert.Contains(t, diags[0], "subprocess")
}

func TestPythonLintFlagsBareExceptAsNonSecurity(t *testing.T) {
	path := writeTemp(t, "app.py", "try:\n    pass\nexcept:\n    pass\n")
	diags, err := providers.NewPython().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.NotContains(t, diags[0], "SECURITY:")
}

func TestPythonLintFlagsEvalAndExecAsSecurity(t *testing.T) {
	path := writeTemp(t, "app.py", "eval('1+1')\n")
	diags, err := providers.NewPython().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "SECURITY:")
}

func TestPythonLintReturnsNoDiagnosticsForCleanCode(t *testing.T) {
	path := writeTemp(t, "app.py", "def greet(name: str) -> str:\n    return f'hi {name}'\n")
	diags, err := providers.NewPython().Lint(context.Background(), path, "")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestRustSupportsOnlyRsFiles(t *testing.T) {
	r := providers.NewRust()
	assert.True(t, r.Supports("src/main.rs"))
	assert.False(t, r.Supports("src/main.go"))
}

func TestRustLintFlagsUnsafeBlockAsSecurity(t *testing.T) {
	path := writeTemp(t, "lib.rs", "fn f() {\n  unsafe {\n    // raw pointer deref\n  }\n}\n")
	diags, err := providers.NewRust().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "SECURITY:")
}

func TestRustLintFlagsUnwrapAsNonSecurity(t *testing.T) {
	path := writeTemp(t, "lib.rs", "fn f() { let x = might_fail().unwrap(); }\n")
	diags, err := providers.NewRust().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.NotContains(t, diags[0], "SECURITY:")
}

func TestTypeScriptSupportsTsAndTsx(t *testing.T) {
	ts := providers.NewTypeScript()
	assert.True(t, ts.Supports("src/app.ts"))
	assert.True(t, ts.Supports("src/App.tsx"))
	assert.False(t, ts.Supports("src/app.js"))
}

func TestTypeScriptLintFlagsExplicitAny(t *testing.T) {
	path := writeTemp(t, "app.ts", "function f(x: any) { return x; }\n")
	diags, err := providers.NewTypeScript().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "'any'")
}

func TestTypeScriptLintFlagsTsIgnoreSuppressions(t *testing.T) {
	path := writeTemp(t, "app.ts", "// @ts-ignore\nconst x: number = 'oops';\n")
	diags, err := providers.NewTypeScript().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "@ts-ignore")
}

func TestTypeScriptLintFlagsEvalAsSecurity(t *testing.T) {
	path := writeTemp(t, "app.ts", "eval('2+2');\n")
	diags, err := providers.NewTypeScript().Lint(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "SECURITY:")
}

func TestTypeScriptLintReturnsNoDiagnosticsForCleanCode(t *testing.T) {
	path := writeTemp(t, "app.ts", "export function greet(name: string): string {\n  return `hi ${name}`;\n}\n")
	diags, err := providers.NewTypeScript().Lint(context.Background(), path, "")
	require.NoError(t, err)
	assert.Empty(t, diags)
}
