package extract

import (
	"context"
	"fmt"

	"github.com/linkhoard/linkhoard/internal/models"
)

// RepoFetcher looks up repository metadata by owner and name.
type RepoFetcher interface {
	GetRepo(ctx context.Context, owner, name string) (*models.RepoMetadata, error)
}

// RepoMetaExtractor handles directly-captured repository URLs.
type RepoMetaExtractor struct {
	github RepoFetcher
}

func NewRepoMetaExtractor(github RepoFetcher) *RepoMetaExtractor {
	return &RepoMetaExtractor{github: github}
}

func (e *RepoMetaExtractor) Extract(ctx context.Context, repoURL string) (*models.ExtractResult, error) {
	owner, name, ok := ParseRepoPath(repoURL)
	if !ok {
		return nil, fmt.Errorf("could not parse owner/repo from %s", repoURL)
	}

	meta, err := e.github.GetRepo(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("repository metadata lookup failed: %w", err)
	}

	canonical := "https://github.com/" + meta.FullName
	if meta.URL == "" {
		meta.URL = canonical
	}

	return &models.ExtractResult{
		Title:    meta.FullName,
		Text:     meta.Description,
		RepoMeta: meta,
		RepoURLs: []string{meta.URL},
		Entities: models.ExtractedEntities{
			Repos:      []string{meta.URL},
			Tools:      []string{},
			Techniques: []string{},
		},
	}, nil
}
