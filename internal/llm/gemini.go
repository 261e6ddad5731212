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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the Google Gemini generateContent API. Gemini has no
// native system-message concept, so the system prompt is folded into the user
// content.
type GeminiClient struct {
	name   string
	cfg    config.LLMProvider
	client *http.Client
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(name string, cfg config.LLMProvider) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type geminiRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig *struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends one generateContent request.
func (c *GeminiClient) Generate(ctx context.Context, model, system, user string, temperature float64) (string, error) {
	apiKey := c.cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", c.failure(FailureUnknown, model, errors.New("API key not configured"))
	}

	prompt := user
	if system != "" {
		prompt = fmt.Sprintf("System instructions: %s\n\nUser request: %s", system, user)
	}

	var reqBody geminiRequest
	reqBody.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	reqBody.Contents[0].Parts = []struct {
		Text string `json:"text"`
	}{{Text: prompt}}
	reqBody.GenerationConfig = &struct {
		Temperature float64 `json:"temperature"`
	}{Temperature: temperature}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", c.failure(FailureUnknown, model, fmt.Errorf("marshal: %w", err))
	}

	baseURL := c.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", c.failure(FailureUnknown, model, fmt.Errorf("request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.failure(FailureUnavailable, model, err)
	}
	defer resp.Body.Close()

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return "", c.failure(kind, model, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", c.failure(FailureInvalidResponse, model, fmt.Errorf("decode: %w", err))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", c.failure(FailureInvalidResponse, model, errors.New("no candidates"))
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func (c *GeminiClient) failure(kind FailureKind, model string, err error) error {
	return &ProviderError{Kind: kind, Provider: c.name, Model: model, Err: err}
}
