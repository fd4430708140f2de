package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/linkhoard/linkhoard/internal/models"
)

const (
	defaultGitHubBaseURL = "https://api.github.com"
	githubTimeout        = 15 * time.Second
)

// GitHubClient covers the two lookups the pipeline needs: repository metadata
// by owner/name and free-text repository search. A bearer credential is
// optional; unauthenticated calls work within GitHub's lower rate limits.
type GitHubClient struct {
	baseURL string
	client  *http.Client
}

func NewGitHubClient() *GitHubClient {
	return NewGitHubClientAt(defaultGitHubBaseURL, os.Getenv("GITHUB_TOKEN"))
}

// NewGitHubClientAt builds a client against an explicit endpoint. Used by tests.
func NewGitHubClientAt(baseURL, token string) *GitHubClient {
	httpClient := &http.Client{Timeout: githubTimeout}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
		httpClient.Timeout = githubTimeout
		slog.Info("[GitHubClient] Using authenticated client")
	}

	return &GitHubClient{baseURL: baseURL, client: httpClient}
}

type githubRepoResponse struct {
	FullName        string   `json:"full_name"`
	HTMLURL         string   `json:"html_url"`
	Description     string   `json:"description"`
	StargazersCount int      `json:"stargazers_count"`
	Language        string   `json:"language"`
	Topics          []string `json:"topics"`
}

func (r githubRepoResponse) toMetadata() *models.RepoMetadata {
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return &models.RepoMetadata{
		URL:         r.HTMLURL,
		FullName:    r.FullName,
		Description: r.Description,
		Stars:       r.StargazersCount,
		Language:    r.Language,
		Topics:      topics,
	}
}

// GetRepo fetches metadata for owner/name. Any non-success response or
// network failure returns an error, never a partial record.
func (g *GitHubClient) GetRepo(ctx context.Context, owner, name string) (*models.RepoMetadata, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s", g.baseURL, owner, name)

	var repo githubRepoResponse
	if err := g.getJSON(ctx, endpoint, &repo); err != nil {
		return nil, err
	}
	return repo.toMetadata(), nil
}

// SearchRepo returns the best-matching repository for a free-text query, or
// nil when the search finds nothing.
func (g *GitHubClient) SearchRepo(ctx context.Context, query string) (*models.RepoMetadata, error) {
	endpoint := fmt.Sprintf("%s/search/repositories?q=%s&per_page=1", g.baseURL, url.QueryEscape(query))

	var result struct {
		Items []githubRepoResponse `json:"items"`
	}
	if err := g.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil
	}
	return result.Items[0].toMetadata(), nil
}

func (g *GitHubClient) getJSON(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	backoff := INITIAL_BACKOFF

	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("[GitHubClient] failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
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
				return fmt.Errorf("[GitHubClient] request rejected with status %d", resp.StatusCode)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("[GitHubClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return fmt.Errorf("[GitHubClient] request failed after %d attempts: %w", MAX_RETRIES, lastErr)
}
