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
	defaultDeepgramBaseURL = "https://api.deepgram.com"
	deepgramModel          = "nova-2"
	deepgramTimeout        = 120 * time.Second
)

// DeepgramClient transcribes prerecorded audio/video. Two tiers: by remote
// URL reference (no local download) and by binary upload.
type DeepgramClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewDeepgramClient() (*DeepgramClient, error) {
	apiKey := os.Getenv("DEEPGRAM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("[DeepgramClient] Missing DEEPGRAM_API_KEY in environment variables")
	}

	baseURL := os.Getenv("DEEPGRAM_BASE_URL")
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}

	return &DeepgramClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: deepgramTimeout},
	}, nil
}

// NewDeepgramClientAt builds a client against an explicit endpoint. Used by tests.
func NewDeepgramClientAt(baseURL, apiKey string) *DeepgramClient {
	return &DeepgramClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: deepgramTimeout},
	}
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// TranscribeURL asks the service to ingest the media directly by reference.
func (d *DeepgramClient) TranscribeURL(ctx context.Context, mediaURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"url": mediaURL})
	if err != nil {
		return "", fmt.Errorf("[DeepgramClient] failed to marshal request: %w", err)
	}
	return d.transcribe(ctx, bytes.NewReader(payload), "application/json")
}

// TranscribeUpload sends the media bytes as a binary payload.
func (d *DeepgramClient) TranscribeUpload(ctx context.Context, media []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return d.transcribe(ctx, bytes.NewReader(media), contentType)
}

func (d *DeepgramClient) transcribe(ctx context.Context, body io.Reader, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/listen?model=%s&smart_format=true", d.baseURL, deepgramModel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("[DeepgramClient] failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", USER_AGENT)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("[DeepgramClient] request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("[DeepgramClient] transcription rejected with status %d", resp.StatusCode)
	}

	var parsed deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("[DeepgramClient] failed to decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("[DeepgramClient] response contained no transcript")
	}

	transcript := parsed.Results.Channels[0].Alternatives[0].Transcript
	if transcript == "" {
		return "", fmt.Errorf("[DeepgramClient] transcript was empty")
	}

	slog.Info("[DeepgramClient] Transcription successful",
		slog.Int("chars", len(transcript)),
		slog.Duration("elapsed", time.Since(start)))
	return transcript, nil
}
