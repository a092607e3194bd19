//go:build !integration

package stringutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/makercode/maker/pkg/stringutil"
)

func TestStripANSIReturnsPlainTextUnchanged(t *testing.T) {
	assert.Equal(t, "src/a.go\nsrc/b.go\n", stringutil.StripANSI("src/a.go\nsrc/b.go\n"))
}

func TestStripANSIRemovesCSIColorSequences(t *testing.T) {
	assert.Equal(t, "Hello World", stringutil.StripANSI("Hello \x1b[31mWorld\x1b[0m"))
}

func TestStripANSIRemovesOSCSequences(t *testing.T) {
	assert.Equal(t, "linktext", stringutil.StripANSI("\x1b]8;;http://example.com\x07linktext\x1b]8;;\x07"))
}

func TestStripANSIHandlesATrailingIncompleteEscape(t *testing.T) {
	assert.Equal(t, "tail", stringutil.StripANSI("tail\x1b"))
}

func TestStripANSIReturnsEmptyForEmptyInput(t *testing.T) {
	assert.Equal(t, "", stringutil.StripANSI(""))
}
