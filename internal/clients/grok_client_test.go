package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grokServer(t *testing.T, content string, citations []string, promptTokens, completionTokens int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		search, ok := req["search_parameters"].(map[string]any)
		require.True(t, ok, "live search must be requested")
		assert.Equal(t, "on", search["mode"])
		assert.Equal(t, true, search["return_citations"])

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
			"citations": citations,
			"usage": map[string]int{
				"prompt_tokens":     promptTokens,
				"completion_tokens": completionTokens,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGrokFetchPost(t *testing.T) {
	content := `{"text": "just shipped v2 of our parser, details in the repo", "author": "devperson"}`
	citations := []string{"https://github.com/acme/parser", "https://example.com/changelog"}
	server := grokServer(t, content, citations, 2000, 500)

	client := NewGrokClientAt(server.URL, "xai-key")
	result, err := client.FetchPost(context.Background(), "https://x.com/devperson/status/1")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "just shipped v2 of our parser, details in the repo", result.Text)
	assert.Equal(t, "devperson", result.Author)
	assert.Equal(t, citations, result.Citations)

	wantCost := 2000.0/1e6*grokPromptPrice + 500.0/1e6*grokCompletionPrice + grokSearchFee
	assert.InDelta(t, wantCost, result.Cost, 1e-9)
}

func TestGrokFetchPostEmptyMeansFallback(t *testing.T) {
	server := grokServer(t, `{"text": "", "author": ""}`, nil, 100, 10)

	client := NewGrokClientAt(server.URL, "xai-key")
	result, err := client.FetchPost(context.Background(), "https://x.com/devperson/status/1")
	require.NoError(t, err)
	assert.Nil(t, result, "unretrievable post is a fallback signal, not an error")
}

func TestGrokFetchPostFencedPayload(t *testing.T) {
	content := "```json\n{\"text\": \"post body\", \"author\": \"a\"}\n```"
	server := grokServer(t, content, nil, 100, 10)

	client := NewGrokClientAt(server.URL, "xai-key")
	result, err := client.FetchPost(context.Background(), "https://x.com/a/status/1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "post body", result.Text)
}

func TestGrokFetchPostNonJSONResponse(t *testing.T) {
	server := grokServer(t, "I could not access that post.", nil, 100, 10)

	client := NewGrokClientAt(server.URL, "xai-key")
	_, err := client.FetchPost(context.Background(), "https://x.com/a/status/1")
	require.Error(t, err)
}

func TestGrokRejectedStatusIsTerminal(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "invalid api key"}`)
	}))
	defer server.Close()

	client := NewGrokClientAt(server.URL, "bad-key")
	_, err := client.FetchPost(context.Background(), "https://x.com/a/status/1")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not be retried")
}
