package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxReadableChars = 8000

// Reader fetches a page over plain HTTP and extracts its readable text.
type Reader struct {
	client *http.Client
}

// NewReader builds a Reader with the given per-fetch timeout.
func NewReader(timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Reader{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads link and returns the article body text, truncated to a
// snippet-friendly size.
func (r *Reader) Fetch(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > maxReadableChars {
		text = text[:maxReadableChars]
	}
	return text, nil
}
