//go:build !integration

package toolrunner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/enginerr"
	"github.com/makercode/maker/pkg/toolrunner"
)

func TestExecuteExpandsTemplateAndCapturesStdout(t *testing.T) {
	r := toolrunner.New()
	def := config.ToolDefinition{Name: "greet", CommandTemplate: "echo hello {{name}}"}

	out, err := r.Execute(context.Background(), def, map[string]string{"name": "world"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestExecutePassesUnresolvedPlaceholdersThroughLiterally(t *testing.T) {
	r := toolrunner.New()
	def := config.ToolDefinition{Name: "broken", CommandTemplate: "echo {{missing}}"}

	out, err := r.Execute(context.Background(), def, map[string]string{}, "", "")
	require.NoError(t, err)
	assert.Contains(t, out, "{{missing}}")
}

func TestExecuteWrapsNonZeroExitInErrTool(t *testing.T) {
	r := toolrunner.New()
	def := config.ToolDefinition{Name: "failer", CommandTemplate: "exit 1"}

	_, err := r.Execute(context.Background(), def, nil, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, enginerr.ErrTool)
}

func TestExecuteRunsInGivenWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	r := toolrunner.New()
	def := config.ToolDefinition{Name: "pwd", CommandTemplate: "pwd"}

	out, err := r.Execute(context.Background(), def, nil, dir, "")
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, out, resolved)
}

func TestExecuteWritesOutputFileRelativeToCwd(t *testing.T) {
	dir := t.TempDir()
	r := toolrunner.New()
	def := config.ToolDefinition{Name: "writer", CommandTemplate: "echo contents"}

	_, err := r.Execute(context.Background(), def, nil, dir, "out.txt")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "contents\n", string(data))
}
