// Package extract turns captured URLs into structured content, one strategy
// per source kind.
package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/linkhoard/linkhoard/internal/models"
)

// Extractor is one per-source-kind strategy. A nil result means the strategy
// failed; the returned error carries the diagnostic the orchestrator persists.
type Extractor interface {
	Extract(ctx context.Context, url string) (*models.ExtractResult, error)
}

var repoLinkPattern = regexp.MustCompile(`(?i)\bgithub\.com/[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+`)

// trailing punctuation that sentence context glues onto a spoken or written
// repository reference.
const trailingPunct = ".,;:!?)'\"]"

// ScanRepoLinks finds explicit repository references in free text, strips
// trailing punctuation, canonicalizes to https URLs, and deduplicates while
// preserving first-seen order.
func ScanRepoLinks(text string) []string {
	matches := repoLinkPattern.FindAllString(text, -1)

	seen := make(map[string]struct{}, len(matches))
	links := []string{}
	for _, m := range matches {
		canonical := NormalizeRepoURL(m)
		if canonical == "" {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		links = append(links, canonical)
	}
	return links
}

// NormalizeRepoURL reduces any github.com reference to the canonical
// https://github.com/owner/repo form. Returns "" when owner or repo is
// missing after cleanup.
func NormalizeRepoURL(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	ref = strings.TrimPrefix(ref, "www.")
	ref = strings.TrimRight(ref, trailingPunct)

	if !strings.HasPrefix(strings.ToLower(ref), "github.com/") {
		return ""
	}

	parts := strings.Split(ref[len("github.com/"):], "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	owner := parts[0]
	repo := strings.TrimRight(parts[1], trailingPunct)
	if repo == "" {
		return ""
	}
	return "https://github.com/" + owner + "/" + repo
}

// ParseRepoPath extracts owner and repo from a repository URL, tolerating a
// trailing slash and arbitrary sub-paths (branches, files) by taking only the
// first two path segments.
func ParseRepoPath(repoURL string) (owner, repo string, ok bool) {
	ref := strings.TrimSpace(repoURL)
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	ref = strings.TrimPrefix(ref, "www.")
	if !strings.HasPrefix(strings.ToLower(ref), "github.com/") {
		return "", "", false
	}

	path := strings.Trim(ref[len("github.com/"):], "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
