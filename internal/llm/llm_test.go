package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mainos-ai/mainos/config"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   FailureKind
		failed bool
	}{
		{200, FailureUnknown, false},
		{429, FailureRateLimited, true},
		{402, FailureRateLimited, true},
		{500, FailureUnavailable, true},
		{503, FailureUnavailable, true},
		{400, FailureUnknown, true},
		{401, FailureUnknown, true},
	}
	for _, tc := range cases {
		kind, failed := classifyStatus(tc.status)
		if failed != tc.failed || kind != tc.kind {
			t.Fatalf("classifyStatus(%d) = (%v, %v), want (%v, %v)", tc.status, kind, failed, tc.kind, tc.failed)
		}
	}
}

func TestOpenAIClientRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", config.LLMProvider{APIKey: "test", BaseURL: srv.URL, Timeout: 5 * time.Second})
	_, err := c.Generate(context.Background(), "gpt-4o", "", "hello", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if Classify(err) != FailureRateLimited {
		t.Fatalf("expected rate_limited, got %v", Classify(err))
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "openai" {
		t.Fatalf("expected ProviderError for provider openai, got %v", err)
	}
}

func TestOpenAIClientSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"generated text"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", config.LLMProvider{APIKey: "test", BaseURL: srv.URL, Timeout: 5 * time.Second})
	out, err := c.Generate(context.Background(), "gpt-4o", "system", "hello", 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if out != "generated text" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestOpenAIClientInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", config.LLMProvider{APIKey: "test", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), "gpt-4o", "", "hi", 0)
	if Classify(err) != FailureInvalidResponse {
		t.Fatalf("expected invalid_response, got %v", err)
	}
}

func TestGeminiClientSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"fallback text"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("gemini", config.LLMProvider{APIKey: "test", BaseURL: srv.URL})
	out, err := c.Generate(context.Background(), "gemini-1.5-pro", "sys", "user", 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if out != "fallback text" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRouterUnknownProvider(t *testing.T) {
	r, err := NewRouter(config.LLMConfig{Providers: map[string]config.LLMProvider{
		"openai": {Type: "openai", APIKey: "k"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Invoke(context.Background(), Request{Provider: "missing", Model: "m", UserPrompt: "x"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestFailureKindTransient(t *testing.T) {
	if !FailureRateLimited.Transient() || !FailureUnavailable.Transient() {
		t.Fatal("rate_limited and unavailable must be transient")
	}
	if FailureInvalidResponse.Transient() || FailureUnknown.Transient() {
		t.Fatal("invalid_response and unknown must not be transient")
	}
}
