package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	fetchTimeout = 30 * time.Second

	// Some publishers refuse obvious bot traffic, so page fetches carry
	// browser-like headers instead of the API user agent.
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	maxDownloadBytes = 64 << 20
)

// FetchClient is the generic HTTP surface: article page retrieval, media
// download for the transcription fallback, and single-hop redirect
// resolution for shortened links.
type FetchClient struct {
	client     *http.Client
	noRedirect *http.Client
}

func NewFetchClient() *FetchClient {
	return &FetchClient{
		client: &http.Client{Timeout: fetchTimeout},
		noRedirect: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// FetchPage retrieves a page with browser-like headers. Any non-2xx status is
// an error carrying the status code.
func (f *FetchClient) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("[FetchClient] failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("[FetchClient] fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("[FetchClient] fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", fmt.Errorf("[FetchClient] failed to read body: %w", err)
	}
	return string(data), nil
}

// Download retrieves a binary payload, reporting its content type.
func (f *FetchClient) Download(ctx context.Context, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("[FetchClient] failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("[FetchClient] download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("[FetchClient] download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("[FetchClient] failed to read media: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ResolveRedirect follows exactly one redirect hop and returns the target
// location, or "" when the response was not a redirect. Further hops are the
// caller's decision; chasing chains is deliberately not done here.
func (f *FetchClient) ResolveRedirect(ctx context.Context, shortURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shortURL, nil)
	if err != nil {
		return "", fmt.Errorf("[FetchClient] failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.noRedirect.Do(req)
	if err != nil {
		return "", fmt.Errorf("[FetchClient] redirect probe failed: %w", err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", nil
	}
	return resp.Header.Get("Location"), nil
}
