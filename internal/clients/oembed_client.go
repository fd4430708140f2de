package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	defaultOEmbedBaseURL = "https://publish.twitter.com"
	oembedTimeout        = 15 * time.Second
)

// OEmbedClient fetches the sanitized embed-widget fragment for a social post.
// This is the credential-free fallback when the grounded path is unavailable.
type OEmbedClient struct {
	baseURL string
	client  *http.Client
}

type OEmbedResult struct {
	HTML       string `json:"html"`
	AuthorName string `json:"author_name"`
	AuthorURL  string `json:"author_url"`
}

func NewOEmbedClient() *OEmbedClient {
	baseURL := os.Getenv("OEMBED_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOEmbedBaseURL
	}
	return NewOEmbedClientAt(baseURL)
}

// NewOEmbedClientAt builds a client against an explicit endpoint. Used by tests.
func NewOEmbedClientAt(baseURL string) *OEmbedClient {
	return &OEmbedClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: oembedTimeout},
	}
}

// Fetch returns the embed fragment for the post, or an error when the post is
// unavailable (deleted, protected, or the endpoint rejected the URL).
func (o *OEmbedClient) Fetch(ctx context.Context, postURL string) (*OEmbedResult, error) {
	endpoint := fmt.Sprintf("%s/oembed?url=%s&omit_script=true&dnt=true", o.baseURL, url.QueryEscape(postURL))

	var lastErr error
	backoff := INITIAL_BACKOFF
	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("[OEmbedClient] failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", USER_AGENT)

		resp, err := o.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = readErr
			case resp.StatusCode == http.StatusOK:
				var result OEmbedResult
				if err := json.Unmarshal(data, &result); err != nil {
					return nil, fmt.Errorf("[OEmbedClient] failed to decode response: %w", err)
				}
				if result.HTML == "" {
					return nil, fmt.Errorf("[OEmbedClient] embed fragment was empty")
				}
				return &result, nil
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
			default:
				return nil, fmt.Errorf("[OEmbedClient] request rejected with status %d", resp.StatusCode)
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("[OEmbedClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return nil, fmt.Errorf("[OEmbedClient] request failed after %d attempts: %w", MAX_RETRIES, lastErr)
}
