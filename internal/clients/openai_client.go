package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openAIRequestTimeout = 60 * time.Second
	defaultChatModel     = openai.GPT4oMini
)

// chatPricing maps a model to its USD cost per 1M prompt/completion tokens.
var chatPricing = map[string]struct{ prompt, completion float64 }{
	openai.GPT4oMini: {0.15, 0.60},
	openai.GPT4o:     {2.50, 10.00},
}

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("[OpenAIClient] Missing OPENAI_API_KEY in environment variables")
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: openAIRequestTimeout}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultChatModel
	}

	slog.Info("[OpenAIClient] OpenAI client initialized",
		slog.String("model", model),
		slog.Duration("timeout", openAIRequestTimeout))

	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// CompleteJSON issues one chat completion expected to return a JSON object and
// reports the generated text plus the USD cost of the call. Transient failures
// are retried with bounded backoff.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, system, user string) (string, float64, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var resp openai.ChatCompletionResponse
	var err error
	backoff := INITIAL_BACKOFF
	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		start := time.Now()
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		slog.Warn("[OpenAIClient] Completion failed, retrying...",
			slog.Int("attempt", attempt+1),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}
	if err != nil {
		return "", 0, fmt.Errorf("[OpenAIClient] completion failed after %d attempts: %w", MAX_RETRIES, err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("[OpenAIClient] completion returned no choices")
	}

	return resp.Choices[0].Message.Content, c.usageCost(resp.Usage), nil
}

func (c *OpenAIClient) usageCost(usage openai.Usage) float64 {
	pricing, ok := chatPricing[c.model]
	if !ok {
		pricing = chatPricing[defaultChatModel]
	}
	return float64(usage.PromptTokens)/1e6*pricing.prompt +
		float64(usage.CompletionTokens)/1e6*pricing.completion
}

// CleanJSONResponse strips markdown code fences from generated text and trims
// whitespace. Returns "" when the remainder does not look like a JSON object.
func CleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "\n")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	if !strings.HasPrefix(cleaned, "{") || !strings.HasSuffix(cleaned, "}") {
		slog.Warn("[OpenAIClient] Response does not look like a JSON object after cleaning",
			slog.String("snippet", snippet(response, 100)))
		return ""
	}
	return cleaned
}

func snippet(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
