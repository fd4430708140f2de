package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linkhoard/linkhoard/internal/clients"
	"github.com/linkhoard/linkhoard/internal/models"
)

// Unfurler resolves a short-video page into a signed playback URL.
type Unfurler interface {
	Unfurl(ctx context.Context, pageURL string) (*clients.UnfurlResult, error)
}

// Transcriber is the two-tier speech-to-text surface: by remote reference and
// by binary upload.
type Transcriber interface {
	TranscribeURL(ctx context.Context, mediaURL string) (string, error)
	TranscribeUpload(ctx context.Context, media []byte, contentType string) (string, error)
}

// MediaDownloader fetches the video for the upload fallback tier.
type MediaDownloader interface {
	Download(ctx context.Context, mediaURL string) ([]byte, string, error)
}

// ShortVideoExtractor transcribes short-form videos and mines the transcript
// for repository references.
type ShortVideoExtractor struct {
	unfurler    Unfurler
	transcriber Transcriber
	downloader  MediaDownloader
	candidates  *CandidateFinder
}

func NewShortVideoExtractor(unfurler Unfurler, transcriber Transcriber, downloader MediaDownloader, candidates *CandidateFinder) *ShortVideoExtractor {
	return &ShortVideoExtractor{
		unfurler:    unfurler,
		transcriber: transcriber,
		downloader:  downloader,
		candidates:  candidates,
	}
}

func (e *ShortVideoExtractor) Extract(ctx context.Context, url string) (*models.ExtractResult, error) {
	if e.unfurler == nil || e.transcriber == nil || e.downloader == nil {
		return nil, fmt.Errorf("short-video extraction is not configured")
	}

	unfurled, err := e.unfurler.Unfurl(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("short-video unfurl failed: %w", err)
	}
	if unfurled == nil {
		return nil, fmt.Errorf("short-video unfurl returned no playable URL")
	}

	transcript, err := e.transcribe(ctx, unfurled.PlayURL)
	if err != nil {
		return nil, err
	}

	result := &models.ExtractResult{
		Title:  unfurled.Title,
		Author: unfurled.Author,
		Text:   transcript,
		Entities: models.ExtractedEntities{
			Repos:      []string{},
			Tools:      []string{},
			Techniques: []string{},
		},
	}

	// Explicit references take precedence over inference: the candidate
	// sub-pipeline only runs when the transcript names no repository.
	repos := ScanRepoLinks(transcript)
	if len(repos) > 0 {
		result.RepoURLs = repos
		result.Entities.Repos = repos
		return result, nil
	}
	result.RepoURLs = []string{}

	if e.candidates == nil {
		return result, nil
	}

	outcome, err := e.candidates.FindValidated(ctx, transcript, nil)
	if err != nil {
		// Transcript in hand is a partial success; a failed candidate pass
		// yields an empty repo list, not a failed extraction.
		slog.Warn("[ShortVideoExtractor] Candidate sub-pipeline failed",
			slog.String("error", err.Error()))
		return result, nil
	}

	for _, repo := range outcome.Repos {
		result.RepoURLs = append(result.RepoURLs, repo.URL)
		result.Entities.Repos = append(result.Entities.Repos, repo.URL)
	}
	result.Entities.Tools = outcome.Tools
	result.Entities.Techniques = outcome.Techniques
	result.RepoValidationCost = outcome.Cost
	return result, nil
}

// transcribe tries direct ingestion by reference first; only if that fails is
// the video downloaded and uploaded as a binary payload. By-reference first
// is the cost-conservative ordering.
func (e *ShortVideoExtractor) transcribe(ctx context.Context, playURL string) (string, error) {
	transcript, refErr := e.transcriber.TranscribeURL(ctx, playURL)
	if refErr == nil && transcript != "" {
		return transcript, nil
	}
	if refErr != nil {
		slog.Warn("[ShortVideoExtractor] By-reference transcription failed, falling back to upload",
			slog.String("error", refErr.Error()))
	}

	media, contentType, err := e.downloader.Download(ctx, playURL)
	if err != nil {
		return "", fmt.Errorf("transcription failed: by-reference (%v) and media download (%v)", refErr, err)
	}

	transcript, upErr := e.transcriber.TranscribeUpload(ctx, media, contentType)
	if upErr != nil {
		return "", fmt.Errorf("transcription failed: by-reference (%v) and upload (%v)", refErr, upErr)
	}
	if transcript == "" {
		return "", fmt.Errorf("transcription produced an empty transcript")
	}
	return transcript, nil
}
