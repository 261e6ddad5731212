package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mainos-ai/mainos/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the OpenAI chat completions API (or any
// API-compatible endpoint via base_url).
type OpenAIClient struct {
	name   string
	cfg    config.LLMProvider
	client *http.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(name string, cfg config.LLMProvider) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends one chat completion request.
func (c *OpenAIClient) Generate(ctx context.Context, model, system, user string, temperature float64) (string, error) {
	apiKey := c.cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", c.failure(FailureUnknown, model, errors.New("API key not configured"))
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Temperature: temperature})
	if err != nil {
		return "", c.failure(FailureUnknown, model, fmt.Errorf("marshal: %w", err))
	}

	baseURL := c.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", c.failure(FailureUnknown, model, fmt.Errorf("request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		// Client timeouts and connection errors count as the provider
		// being unavailable for fallback purposes.
		return "", c.failure(FailureUnavailable, model, err)
	}
	defer resp.Body.Close()

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return "", c.failure(kind, model, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", c.failure(FailureInvalidResponse, model, fmt.Errorf("decode: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", c.failure(FailureInvalidResponse, model, errors.New("no choices"))
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) failure(kind FailureKind, model string, err error) error {
	return &ProviderError{Kind: kind, Provider: c.name, Model: model, Err: err}
}

// classifyStatus maps an HTTP status to a FailureKind; ok is false for 2xx.
func classifyStatus(status int) (FailureKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return FailureUnknown, false
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		return FailureRateLimited, true
	case status >= 500, status == http.StatusRequestTimeout:
		return FailureUnavailable, true
	default:
		return FailureUnknown, true
	}
}
