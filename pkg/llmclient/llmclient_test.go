//go:build !integration

package llmclient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/llmclient"
)

func TestNewDefaultsToGeminiWhenProviderUnset(t *testing.T) {
	client, err := llmclient.New(config.MakerConfig{})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewSelectsOpenAI(t *testing.T) {
	client, err := llmclient.New(config.MakerConfig{LLMProvider: config.ProviderOpenAI})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := llmclient.New(config.MakerConfig{LLMProvider: "anthropic"})
	assert.Error(t, err)
}

func TestNewFailsOnUnopenableCredentials(t *testing.T) {
	_, err := llmclient.New(config.MakerConfig{ProviderCredentials: []byte("not-a-sealed-blob")})
	assert.Error(t, err)
}
