package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// OpenRouterClient calls the OpenRouter Chat Completions API
// (OpenAI-compatible). See: https://openrouter.ai/docs/api-reference
type OpenRouterClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewOpenRouterClient creates an OpenRouter client. If apiKey is empty,
// it falls back to the OPENROUTER_API_KEY env var.
func NewOpenRouterClient(apiKey, model string) (*OpenRouterClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return &OpenRouterClient{
		http:    &http.Client{Timeout: 180 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://openrouter.ai/api/v1/chat/completions",
	}, nil
}

func (c *OpenRouterClient) Name() string { return "OpenRouter:" + c.model }
func (c *OpenRouterClient) Close() error { return nil }

type chatReq struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenRouterClient) Generate(ctx context.Context, messages []Message) (string, error) {
	b, _ := json.Marshal(chatReq{Model: c.model, Messages: messages})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(body) > max {
			body = body[:max]
		}
		return "", fmt.Errorf("openrouter: unexpected status %s: %s", resp.Status, string(body))
	}
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}
