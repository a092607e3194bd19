package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/makercode/maker/pkg/engine/enginerr"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type openAIClient struct {
	apiKey string
	http   *http.Client
	// endpoint defaults to openAIEndpoint; overridable in tests.
	endpoint string
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type       string               `json:"type"`
	JSONSchema *openAIJSONSchemaDef `json:"json_schema,omitempty"`
}

type openAIJSONSchemaDef struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const openAIModel = "gpt-4o"

func (c *openAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string, schema *json.RawMessage) (string, error) {
	req := openAIRequest{
		Model: openAIModel,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if schema != nil {
		req.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchemaDef{
				Name:   "maker_plan",
				Schema: *schema,
				Strict: true,
			},
		}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}

	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = openAIEndpoint
	}

	var resp openAIResponse
	if err := doJSON(ctx, c.http, http.MethodPost, endpoint, headers, req, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("%w: %s", enginerr.ErrModel, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", enginerr.ErrModel)
	}

	return stripCodeFences(resp.Choices[0].Message.Content), nil
}
