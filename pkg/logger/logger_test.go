//go:build !integration

package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/makercode/maker/pkg/logger"
)

func TestSetEnabledOverridesTheDefault(t *testing.T) {
	l := logger.New("pkg:test")

	logger.SetEnabled(true)
	assert.True(t, l.Enabled())

	logger.SetEnabled(false)
	assert.False(t, l.Enabled())
}

func TestPrintAndPrintfDoNotPanicRegardlessOfEnabledState(t *testing.T) {
	l := logger.New("pkg:test")

	logger.SetEnabled(false)
	assert.NotPanics(t, func() {
		l.Print("quiet message")
		l.Printf("quiet %s", "formatted")
	})

	logger.SetEnabled(true)
	assert.NotPanics(t, func() {
		l.Print("loud message")
		l.Printf("loud %s", "formatted")
	})
	logger.SetEnabled(false)
}

func TestNewScopesAreIndependentOfEachOther(t *testing.T) {
	a := logger.New("pkg:a")
	b := logger.New("pkg:b")

	logger.SetEnabled(true)
	defer logger.SetEnabled(false)

	assert.True(t, a.Enabled())
	assert.True(t, b.Enabled())
}
