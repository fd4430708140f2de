package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOEmbedFetch(t *testing.T) {
	var gotURL, gotOmit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		gotOmit = r.URL.Query().Get("omit_script")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"html": "<blockquote class=\"twitter-tweet\"><p>hello</p></blockquote>",
			"author_name": "Dev Person",
			"author_url": "https://twitter.com/devperson"
		}`))
	}))
	defer server.Close()

	client := NewOEmbedClientAt(server.URL)
	result, err := client.Fetch(context.Background(), "https://x.com/devperson/status/1")
	require.NoError(t, err)

	assert.Equal(t, "https://x.com/devperson/status/1", gotURL)
	assert.Equal(t, "true", gotOmit)
	assert.Contains(t, result.HTML, "twitter-tweet")
	assert.Equal(t, "Dev Person", result.AuthorName)
}

func TestOEmbedUnavailablePost(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"deleted post", http.StatusNotFound, `{"errors":[{"message":"not found"}]}`},
		{"empty fragment", http.StatusOK, `{"html": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOEmbedClientAt(server.URL)
			_, err := client.Fetch(context.Background(), "https://x.com/u/status/1")
			require.Error(t, err)
		})
	}
}
