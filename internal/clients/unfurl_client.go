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
	defaultUnfurlBaseURL = "https://www.tikwm.com"
	unfurlTimeout        = 20 * time.Second
)

// UnfurlClient resolves a short-video page into a signed, directly-fetchable
// playback URL via a third-party unfurl endpoint.
type UnfurlClient struct {
	baseURL string
	client  *http.Client
}

// UnfurlResult is what the pipeline needs from the unfurl payload: a playable
// URL plus whatever descriptive metadata the endpoint happened to return.
type UnfurlResult struct {
	PlayURL string
	Title   string
	Author  string
}

func NewUnfurlClient() *UnfurlClient {
	baseURL := os.Getenv("UNFURL_BASE_URL")
	if baseURL == "" {
		baseURL = defaultUnfurlBaseURL
	}
	return NewUnfurlClientAt(baseURL)
}

// NewUnfurlClientAt builds a client against an explicit endpoint. Used by tests.
func NewUnfurlClientAt(baseURL string) *UnfurlClient {
	return &UnfurlClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: unfurlTimeout},
	}
}

type unfurlResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Play   string `json:"play"`
		HDPlay string `json:"hdplay"`
		Title  string `json:"title"`
		Author struct {
			Nickname string `json:"nickname"`
		} `json:"author"`
	} `json:"data"`
}

// Unfurl resolves the page URL. A nil result with nil error means the
// endpoint answered but offered no playable URL.
func (u *UnfurlClient) Unfurl(ctx context.Context, pageURL string) (*UnfurlResult, error) {
	endpoint := fmt.Sprintf("%s/api/?url=%s", u.baseURL, url.QueryEscape(pageURL))

	var lastErr error
	backoff := INITIAL_BACKOFF
	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("[UnfurlClient] failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", USER_AGENT)

		resp, err := u.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = readErr
			case resp.StatusCode == http.StatusOK:
				return parseUnfurl(data)
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
			default:
				return nil, fmt.Errorf("[UnfurlClient] request rejected with status %d", resp.StatusCode)
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("[UnfurlClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return nil, fmt.Errorf("[UnfurlClient] request failed after %d attempts: %w", MAX_RETRIES, lastErr)
}

func parseUnfurl(data []byte) (*UnfurlResult, error) {
	var parsed unfurlResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("[UnfurlClient] failed to decode response: %w", err)
	}
	if parsed.Code != 0 {
		slog.Warn("[UnfurlClient] Unfurl endpoint returned an error code",
			slog.Int("code", parsed.Code),
			slog.String("msg", parsed.Msg))
		return nil, nil
	}

	playURL := parsed.Data.Play
	if playURL == "" {
		playURL = parsed.Data.HDPlay
	}
	if playURL == "" {
		return nil, nil
	}

	return &UnfurlResult{
		PlayURL: playURL,
		Title:   parsed.Data.Title,
		Author:  parsed.Data.Author.Nickname,
	}, nil
}
