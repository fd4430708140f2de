package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnfurlSuccess(t *testing.T) {
	var gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"code": 0,
			"data": {
				"play": "https://cdn.example.com/signed/v.mp4",
				"title": "how I automate everything",
				"author": {"nickname": "creator"}
			}
		}`))
	}))
	defer server.Close()

	client := NewUnfurlClientAt(server.URL)
	result, err := client.Unfurl(context.Background(), "https://www.tiktok.com/@creator/video/1")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "https://www.tiktok.com/@creator/video/1", gotURL)
	assert.Equal(t, "https://cdn.example.com/signed/v.mp4", result.PlayURL)
	assert.Equal(t, "how I automate everything", result.Title)
	assert.Equal(t, "creator", result.Author)
}

func TestUnfurlHDFallbackAndMisses(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantPlay string
	}{
		{"hdplay when play missing", `{"code":0,"data":{"hdplay":"https://cdn.example.com/hd.mp4"}}`, "https://cdn.example.com/hd.mp4"},
		{"error code", `{"code":-1,"msg":"url invalid"}`, ""},
		{"no playable url", `{"code":0,"data":{"title":"t"}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseUnfurl([]byte(tt.body))
			require.NoError(t, err)
			if tt.wantPlay == "" {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.wantPlay, result.PlayURL)
		})
	}
}

func TestUnfurlRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewUnfurlClientAt(server.URL)
	_, err := client.Unfurl(context.Background(), "https://www.tiktok.com/@creator/video/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
