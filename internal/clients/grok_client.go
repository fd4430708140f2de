package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	defaultGrokBaseURL = "https://api.x.ai"
	defaultGrokModel   = "grok-3-latest"
	grokRequestTimeout = 90 * time.Second

	// USD per 1M tokens, plus a flat fee per live-search request.
	grokPromptPrice     = 3.00
	grokCompletionPrice = 15.00
	grokSearchFee       = 0.025
)

// GrokClient talks to the x.ai chat-completions API with live search enabled.
// It is the grounded path for social-post extraction: one call retrieves the
// post's content and cites the URLs it found on the way.
type GrokClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// GrokResult carries the generated answer plus the provenance gathered by
// live search.
type GrokResult struct {
	Text      string
	Author    string
	Citations []string
	Cost      float64
}

// NewGrokClient returns nil without error when XAI_API_KEY is unset; the
// grounded path is optional and callers fall back to the embed-widget path.
func NewGrokClient() *GrokClient {
	apiKey := os.Getenv("XAI_API_KEY")
	if apiKey == "" {
		slog.Info("[GrokClient] XAI_API_KEY not set, grounded social extraction disabled")
		return nil
	}

	baseURL := os.Getenv("XAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGrokBaseURL
	}
	model := os.Getenv("XAI_MODEL")
	if model == "" {
		model = defaultGrokModel
	}

	return &GrokClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: grokRequestTimeout},
	}
}

// NewGrokClientAt builds a client against an explicit endpoint. Used by tests.
func NewGrokClientAt(baseURL, apiKey string) *GrokClient {
	return &GrokClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   defaultGrokModel,
		client:  &http.Client{Timeout: grokRequestTimeout},
	}
}

type grokChatRequest struct {
	Model            string        `json:"model"`
	Messages         []grokMessage `json:"messages"`
	SearchParameters grokSearch    `json:"search_parameters"`
}

type grokMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type grokSearch struct {
	Mode            string `json:"mode"`
	ReturnCitations bool   `json:"return_citations"`
}

type grokChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
	Usage     struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

const grokPostPrompt = `Look up the social media post at %s using live search.
Respond with a JSON object:
{
  "text": "the full text of the post; if the post contains a video, append its transcript",
  "author": "the posting account's handle"
}
If the post cannot be retrieved, return {"text": "", "author": ""}.`

// FetchPost retrieves a social post's text and author through live search.
// A nil result with nil error means the post could not be retrieved; the
// caller falls back to the embed-widget path.
func (g *GrokClient) FetchPost(ctx context.Context, postURL string) (*GrokResult, error) {
	body := grokChatRequest{
		Model: g.model,
		Messages: []grokMessage{
			{Role: "user", Content: fmt.Sprintf(grokPostPrompt, postURL)},
		},
		SearchParameters: grokSearch{Mode: "on", ReturnCitations: true},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("[GrokClient] failed to marshal request: %w", err)
	}

	var resp grokChatResponse
	if err := g.postJSON(ctx, g.baseURL+"/v1/chat/completions", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("[GrokClient] response contained no choices")
	}

	cost := float64(resp.Usage.PromptTokens)/1e6*grokPromptPrice +
		float64(resp.Usage.CompletionTokens)/1e6*grokCompletionPrice +
		grokSearchFee

	cleaned := CleanJSONResponse(resp.Choices[0].Message.Content)
	if cleaned == "" {
		return nil, fmt.Errorf("[GrokClient] response was not a JSON object")
	}

	var post struct {
		Text   string `json:"text"`
		Author string `json:"author"`
	}
	if err := json.Unmarshal([]byte(cleaned), &post); err != nil {
		return nil, fmt.Errorf("[GrokClient] failed to parse post payload: %w", err)
	}
	if post.Text == "" {
		slog.Warn("[GrokClient] Live search returned no post content",
			slog.String("url", postURL))
		return nil, nil
	}

	return &GrokResult{
		Text:      post.Text,
		Author:    post.Author,
		Citations: resp.Citations,
		Cost:      cost,
	}, nil
}

func (g *GrokClient) postJSON(ctx context.Context, url string, payload []byte, out any) error {
	var lastErr error
	backoff := INITIAL_BACKOFF

	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("[GrokClient] failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
		req.Header.Set("User-Agent", USER_AGENT)

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			data, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = readErr
			case resp.StatusCode == http.StatusOK:
				return json.Unmarshal(data, out)
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
			default:
				// 4xx is a terminal rejection, retrying will not help.
				return fmt.Errorf("[GrokClient] request rejected with status %d", resp.StatusCode)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("[GrokClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return fmt.Errorf("[GrokClient] request failed after %d attempts: %w", MAX_RETRIES, lastErr)
}
