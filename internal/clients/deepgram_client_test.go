package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deepgramOK = `{
	"results": {
		"channels": [{
			"alternatives": [{"transcript": "today we are talking about build systems"}]
		}]
	}
}`

func TestDeepgramTranscribeURL(t *testing.T) {
	var gotBody map[string]string
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(deepgramOK))
	}))
	defer server.Close()

	client := NewDeepgramClientAt(server.URL, "dg-key")
	transcript, err := client.TranscribeURL(context.Background(), "https://cdn.example.com/v.mp4")
	require.NoError(t, err)

	assert.Equal(t, "today we are talking about build systems", transcript)
	assert.Equal(t, "Token dg-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "https://cdn.example.com/v.mp4", gotBody["url"])
}

func TestDeepgramTranscribeUpload(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(deepgramOK))
	}))
	defer server.Close()

	client := NewDeepgramClientAt(server.URL, "dg-key")
	transcript, err := client.TranscribeUpload(context.Background(), []byte("fake-mp4-bytes"), "video/mp4")
	require.NoError(t, err)

	assert.Equal(t, "today we are talking about build systems", transcript)
	assert.Equal(t, "video/mp4", gotContentType)
	assert.Equal(t, []byte("fake-mp4-bytes"), gotBody)
}

func TestDeepgramFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rejected request", http.StatusBadRequest, `{"err_code":"INVALID_URL"}`},
		{"no channels", http.StatusOK, `{"results":{"channels":[]}}`},
		{"empty transcript", http.StatusOK, `{"results":{"channels":[{"alternatives":[{"transcript":""}]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewDeepgramClientAt(server.URL, "dg-key")
			_, err := client.TranscribeURL(context.Background(), "https://cdn.example.com/v.mp4")
			require.Error(t, err)
		})
	}
}
