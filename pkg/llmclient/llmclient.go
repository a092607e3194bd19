// Package llmclient implements the language-model transport (spec §6):
// generate(system, user, schema?) -> text, with two concrete backends
// selected by MakerConfig.llmProvider. Neither provider has a
// model-specific SDK in the teacher's dependency stack, so both are
// plain net/http JSON clients (SPEC_FULL §6).
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/enginerr"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("llmclient")

const requestTimeout = 120 * time.Second

// New builds the LLMClient selected by cfg.LLMProvider, sealing
// credential handling behind config.Open so the key is never logged.
func New(cfg config.MakerConfig) (ports.LLMClient, error) {
	var apiKey string
	if len(cfg.ProviderCredentials) > 0 {
		opened, err := config.Open(cfg.ProviderCredentials)
		if err != nil {
			return nil, fmt.Errorf("llmclient: opening sealed credentials: %w", err)
		}
		apiKey = opened
	}

	httpClient := &http.Client{Timeout: requestTimeout}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return &openAIClient{apiKey: apiKey, http: httpClient}, nil
	case config.ProviderGemini, "":
		return &geminiClient{apiKey: apiKey, http: httpClient}, nil
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", cfg.LLMProvider)
	}
}

func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshaling request: %v", enginerr.ErrModel, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", enginerr.ErrModel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", enginerr.ErrModel, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", enginerr.ErrModel, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", enginerr.ErrModel, resp.StatusCode, string(data))
	}
	if log.Enabled() {
		log.Printf("%s %s -> %d (%d bytes)", method, url, resp.StatusCode, len(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", enginerr.ErrModel, err)
		}
	}
	return nil
}

// stripCodeFences removes a single leading/trailing triple-backtick fence
// from model output, per spec.md §6.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) >= 2 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
