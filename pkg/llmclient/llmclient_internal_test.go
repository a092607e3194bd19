//go:build !integration

package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/engine/enginerr"
)

func TestStripCodeFencesRemovesFence(t *testing.T) {
	assert.Equal(t, "hello world", stripCodeFences("```\nhello world\n```"))
	assert.Equal(t, "hello world", stripCodeFences("```json\nhello world\n```"))
}

func TestStripCodeFencesLeavesPlainTextUntouched(t *testing.T) {
	assert.Equal(t, "hello world", stripCodeFences("  hello world  "))
}

func TestDoJSONDecodesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := doJSON(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, map[string]string{"a": "b"}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDoJSONWrapsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	err := doJSON(context.Background(), srv.Client(), http.MethodGet, srv.URL, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, enginerr.ErrModel)
}

func TestGeminiGenerateHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"` + "```go\\npackage main\\n```" + `"}]}}]}`))
	}))
	defer srv.Close()

	c := &geminiClient{apiKey: "test-key", http: srv.Client(), endpoint: srv.URL}
	out, err := c.Generate(context.Background(), "system", "user", nil)
	require.NoError(t, err)
	assert.Equal(t, "package main", out)
}

func TestGeminiGenerateBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	c := &geminiClient{apiKey: "k", http: srv.Client(), endpoint: srv.URL}
	_, err := c.Generate(context.Background(), "s", "u", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, enginerr.ErrModel)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGeminiGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := &geminiClient{apiKey: "k", http: srv.Client(), endpoint: srv.URL}
	_, err := c.Generate(context.Background(), "s", "u", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, enginerr.ErrModel)
}

func TestGeminiGenerateIncludesSchemaWhenProvided(t *testing.T) {
	var seenMimeType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		json.NewDecoder(r.Body).Decode(&req)
		seenMimeType = req.GenerationConfig.ResponseMimeType
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[]"}]}}]}`))
	}))
	defer srv.Close()

	schema := json.RawMessage(`{"type":"array"}`)
	c := &geminiClient{apiKey: "k", http: srv.Client(), endpoint: srv.URL}
	_, err := c.Generate(context.Background(), "s", "u", &schema)
	require.NoError(t, err)
	assert.Equal(t, "application/json", seenMimeType)
}

func TestOpenAIGenerateHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + "```\\nok\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	c := &openAIClient{apiKey: "test-key", http: srv.Client(), endpoint: srv.URL}
	out, err := c.Generate(context.Background(), "system", "user", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestOpenAIGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	c := &openAIClient{apiKey: "bad", http: srv.Client(), endpoint: srv.URL}
	_, err := c.Generate(context.Background(), "s", "u", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, enginerr.ErrModel)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAIGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := &openAIClient{apiKey: "k", http: srv.Client(), endpoint: srv.URL}
	_, err := c.Generate(context.Background(), "s", "u", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, enginerr.ErrModel)
}

func TestOpenAIGenerateSetsJSONSchemaResponseFormatWhenSchemaGiven(t *testing.T) {
	var gotFormat *openAIResponseFormat
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotFormat = req.ResponseFormat
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer srv.Close()

	schema := json.RawMessage(`{"type":"array"}`)
	c := &openAIClient{apiKey: "k", http: srv.Client(), endpoint: srv.URL}
	_, err := c.Generate(context.Background(), "s", "u", &schema)
	require.NoError(t, err)
	require.NotNil(t, gotFormat)
	assert.Equal(t, "json_schema", gotFormat.Type)
	assert.Equal(t, "maker_plan", gotFormat.JSONSchema.Name)
}
