//go:build !integration

package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/fileutil"
)

func TestValidateAbsolutePathRejectsAnEmptyPath(t *testing.T) {
	_, err := fileutil.ValidateAbsolutePath("")
	assert.Error(t, err)
}

func TestValidateAbsolutePathRejectsARelativePath(t *testing.T) {
	_, err := fileutil.ValidateAbsolutePath("relative/path")
	assert.Error(t, err)
}

func TestValidateAbsolutePathCleansAndAcceptsAnAbsolutePath(t *testing.T) {
	cleaned, err := fileutil.ValidateAbsolutePath("/tmp/a/../b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/tmp/b"), cleaned)
}

func TestFileExistsDistinguishesFilesFromDirectories(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, fileutil.FileExists(file))
	assert.False(t, fileutil.FileExists(dir))
	assert.False(t, fileutil.FileExists(filepath.Join(dir, "missing")))
}

func TestDirExistsDistinguishesDirectoriesFromFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, fileutil.DirExists(dir))
	assert.False(t, fileutil.DirExists(file))
	assert.False(t, fileutil.DirExists(filepath.Join(dir, "missing")))
}

func TestIsDirEmptyReportsTrueForAnEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, fileutil.IsDirEmpty(dir))
}

func TestIsDirEmptyReportsFalseOnceAFileExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))
	assert.False(t, fileutil.IsDirEmpty(dir))
}

func TestIsDirEmptyReportsTrueForAnUnreadableDirectory(t *testing.T) {
	assert.True(t, fileutil.IsDirEmpty(filepath.Join(t.TempDir(), "missing")))
}

func TestCalculateDirectorySizeSumsFileSizesRecursively(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("12345"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.txt"), []byte("1234567890"), 0o644))

	assert.EqualValues(t, 15, fileutil.CalculateDirectorySize(dir))
}
