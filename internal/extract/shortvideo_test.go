package extract

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhoard/linkhoard/internal/clients"
	"github.com/linkhoard/linkhoard/internal/models"
)

type fakeUnfurler struct {
	res *clients.UnfurlResult
	err error
}

func (f *fakeUnfurler) Unfurl(ctx context.Context, pageURL string) (*clients.UnfurlResult, error) {
	return f.res, f.err
}

type fakeTranscriber struct {
	calls      []string
	urlText    string
	urlErr     error
	uploadText string
	uploadErr  error
}

func (f *fakeTranscriber) TranscribeURL(ctx context.Context, mediaURL string) (string, error) {
	f.calls = append(f.calls, "url")
	return f.urlText, f.urlErr
}

func (f *fakeTranscriber) TranscribeUpload(ctx context.Context, media []byte, contentType string) (string, error) {
	f.calls = append(f.calls, "upload")
	return f.uploadText, f.uploadErr
}

type fakeDownloader struct {
	calls int
	data  []byte
	err   error
}

func (f *fakeDownloader) Download(ctx context.Context, mediaURL string) ([]byte, string, error) {
	f.calls++
	return f.data, "video/mp4", f.err
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	fn    func(system, user string) (string, float64, error)
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, system, user string) (string, float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn == nil {
		return `{"candidates":[],"techniques":[]}`, 0, nil
	}
	return f.fn(system, user)
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string) (*models.RepoMetadata, error)
}

func (f *fakeSearcher) SearchRepo(ctx context.Context, query string) (*models.RepoMetadata, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(query)
}

func TestShortVideoExplicitReferenceSkipsCandidates(t *testing.T) {
	ai := &fakeCompleter{}
	extractor := NewShortVideoExtractor(
		&fakeUnfurler{res: &clients.UnfurlResult{PlayURL: "https://cdn.example.com/v.mp4", Title: "clip", Author: "creator"}},
		&fakeTranscriber{urlText: "great tool, see github.com/acme/tool. end of video"},
		&fakeDownloader{},
		NewCandidateFinder(ai, &fakeSearcher{}),
	)

	result, err := extractor.Extract(context.Background(), "https://www.tiktok.com/@creator/video/1")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://github.com/acme/tool"}, result.RepoURLs)
	assert.Equal(t, []string{"https://github.com/acme/tool"}, result.Entities.Repos)
	assert.Zero(t, ai.calls, "explicit reference must suppress the candidate sub-pipeline")
}

func TestShortVideoUploadFallbackAfterReferenceFailure(t *testing.T) {
	transcriber := &fakeTranscriber{
		urlErr:     errors.New("remote fetch rejected"),
		uploadText: "talking about testing strategies",
	}
	downloader := &fakeDownloader{data: []byte("fake-mp4")}
	extractor := NewShortVideoExtractor(
		&fakeUnfurler{res: &clients.UnfurlResult{PlayURL: "https://cdn.example.com/v.mp4"}},
		transcriber,
		downloader,
		nil,
	)

	result, err := extractor.Extract(context.Background(), "https://vm.tiktok.com/abc")
	require.NoError(t, err)

	assert.Equal(t, []string{"url", "upload"}, transcriber.calls)
	assert.Equal(t, 1, downloader.calls)
	assert.Equal(t, "talking about testing strategies", result.Text)
}

func TestShortVideoBothTiersFail(t *testing.T) {
	transcriber := &fakeTranscriber{
		urlErr:    errors.New("remote fetch rejected"),
		uploadErr: errors.New("payload too large"),
	}
	extractor := NewShortVideoExtractor(
		&fakeUnfurler{res: &clients.UnfurlResult{PlayURL: "https://cdn.example.com/v.mp4"}},
		transcriber,
		&fakeDownloader{data: []byte("fake-mp4")},
		nil,
	)

	_, err := extractor.Extract(context.Background(), "https://vm.tiktok.com/abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "by-reference")
	assert.Contains(t, err.Error(), "upload")
	assert.Equal(t, []string{"url", "upload"}, transcriber.calls)
}

func TestShortVideoUnfurlFailures(t *testing.T) {
	t.Run("unfurl error", func(t *testing.T) {
		extractor := NewShortVideoExtractor(
			&fakeUnfurler{err: errors.New("upstream 500")},
			&fakeTranscriber{}, &fakeDownloader{}, nil)
		_, err := extractor.Extract(context.Background(), "https://www.tiktok.com/@a/video/1")
		require.Error(t, err)
	})

	t.Run("no playable url", func(t *testing.T) {
		extractor := NewShortVideoExtractor(
			&fakeUnfurler{res: nil},
			&fakeTranscriber{}, &fakeDownloader{}, nil)
		_, err := extractor.Extract(context.Background(), "https://www.tiktok.com/@a/video/1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no playable URL")
	})
}

func TestShortVideoUnconfiguredTranscriber(t *testing.T) {
	extractor := NewShortVideoExtractor(&fakeUnfurler{}, nil, &fakeDownloader{}, nil)
	_, err := extractor.Extract(context.Background(), "https://www.tiktok.com/@a/video/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestShortVideoCandidateFailureIsPartialSuccess(t *testing.T) {
	ai := &fakeCompleter{fn: func(system, user string) (string, float64, error) {
		return "", 0, errors.New("model unavailable")
	}}
	extractor := NewShortVideoExtractor(
		&fakeUnfurler{res: &clients.UnfurlResult{PlayURL: "https://cdn.example.com/v.mp4"}},
		&fakeTranscriber{urlText: "no explicit links here, just vibes"},
		&fakeDownloader{},
		NewCandidateFinder(ai, &fakeSearcher{}),
	)

	result, err := extractor.Extract(context.Background(), "https://vm.tiktok.com/abc")
	require.NoError(t, err, "candidate failure must not fail the extraction")
	assert.Equal(t, "no explicit links here, just vibes", result.Text)
	assert.Empty(t, result.RepoURLs)
}
