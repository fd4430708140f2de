package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkhoard/linkhoard/internal/clients"
	"github.com/linkhoard/linkhoard/internal/models"
)

// GrokFetcher is the grounded primary path: one live-search AI call that
// returns the post plus cited URLs.
type GrokFetcher interface {
	FetchPost(ctx context.Context, postURL string) (*clients.GrokResult, error)
}

// OEmbedFetcher is the credential-free fallback path.
type OEmbedFetcher interface {
	Fetch(ctx context.Context, postURL string) (*clients.OEmbedResult, error)
}

// RedirectResolver resolves exactly one redirect hop of a shortened link.
type RedirectResolver interface {
	ResolveRedirect(ctx context.Context, shortURL string) (string, error)
}

var (
	shortLinkPattern = regexp.MustCompile(`https?://t\.co/[A-Za-z0-9]+`)
	lineBreakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
	articlePermalink = regexp.MustCompile(`(?i)^https?://(?:www\.|mobile\.)?(?:x|twitter)\.com/[^/]+/article/`)
)

// shortenerHosts are never followed past the first hop: a resolved target on
// one of these is discarded rather than chased, bounding latency and cycles.
var shortenerHosts = map[string]struct{}{
	"t.co":        {},
	"bit.ly":      {},
	"buff.ly":     {},
	"tinyurl.com": {},
	"ow.ly":       {},
}

// SocialPostExtractor extracts a social post's text either through the
// grounded-search AI (when configured) or the embed-widget fallback.
type SocialPostExtractor struct {
	grok     GrokFetcher // nil when no grounded credential is configured
	oembed   OEmbedFetcher
	resolver RedirectResolver
}

func NewSocialPostExtractor(grok GrokFetcher, oembed OEmbedFetcher, resolver RedirectResolver) *SocialPostExtractor {
	return &SocialPostExtractor{grok: grok, oembed: oembed, resolver: resolver}
}

func (e *SocialPostExtractor) Extract(ctx context.Context, postURL string) (*models.ExtractResult, error) {
	if e.grok != nil {
		result, err := e.extractGrounded(ctx, postURL)
		if err != nil {
			slog.Warn("[SocialPostExtractor] Grounded extraction failed, falling back to embed widget",
				slog.String("error", err.Error()))
		} else if result != nil {
			return result, nil
		}
	}
	return e.extractFromEmbed(ctx, postURL)
}

// extractGrounded runs the single grounded AI call. Citations pointing at
// recognized code-hosting links become resolved repository references
// directly; the grounding call already supplies justified provenance, so no
// separate validation pass runs.
func (e *SocialPostExtractor) extractGrounded(ctx context.Context, postURL string) (*models.ExtractResult, error) {
	post, err := e.grok.FetchPost(ctx, postURL)
	if err != nil {
		return nil, err
	}
	if post == nil {
		slog.Info("[SocialPostExtractor] Grounded path returned nothing, falling back",
			slog.String("url", postURL))
		return nil, nil
	}

	repos := []string{}
	seen := map[string]struct{}{}
	for _, citation := range post.Citations {
		canonical := NormalizeRepoURL(citation)
		if canonical == "" {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		repos = append(repos, canonical)
	}

	return &models.ExtractResult{
		Text:     post.Text,
		Author:   post.Author,
		RepoURLs: repos,
		Entities: models.ExtractedEntities{
			Repos:      repos,
			Tools:      []string{},
			Techniques: []string{},
		},
		UsedGrok:      true,
		GrokCost:      post.Cost,
		ResolvedLinks: []string{},
	}, nil
}

func (e *SocialPostExtractor) extractFromEmbed(ctx context.Context, postURL string) (*models.ExtractResult, error) {
	embed, err := e.oembed.Fetch(ctx, postURL)
	if err != nil {
		return nil, fmt.Errorf("embed-widget fetch failed: %w", err)
	}

	text := embedHTMLToText(embed.HTML)
	if text == "" {
		return nil, fmt.Errorf("embed fragment contained no text")
	}

	shortLinks := shortLinkPattern.FindAllString(text, -1)
	isLinkOnly := len(shortLinks) == 1 && isNegligible(shortLinkPattern.ReplaceAllString(text, ""))

	resolved := []string{}
	articleURL := ""
	for _, short := range shortLinks {
		target, err := e.resolver.ResolveRedirect(ctx, short)
		if err != nil {
			slog.Warn("[SocialPostExtractor] Redirect resolution failed",
				slog.String("short_url", short),
				slog.String("error", err.Error()))
			continue
		}
		if target == "" {
			continue
		}
		if isShortenerURL(target) {
			// One hop only; a shortener pointing at a shortener is dropped.
			slog.Debug("[SocialPostExtractor] Discarding chained shortener target",
				slog.String("target", target))
			continue
		}
		if articlePermalink.MatchString(target) && articleURL == "" {
			articleURL = target
			continue
		}
		resolved = append(resolved, target)
	}

	repos := ScanRepoLinks(text + " " + strings.Join(resolved, " "))

	return &models.ExtractResult{
		Text:     text,
		Author:   embed.AuthorName,
		RepoURLs: repos,
		Entities: models.ExtractedEntities{
			Repos:      repos,
			Tools:      []string{},
			Techniques: []string{},
		},
		UsedGrok:      false,
		IsLinkOnly:    isLinkOnly,
		ArticleURL:    articleURL,
		ResolvedLinks: resolved,
	}, nil
}

// embedHTMLToText reconstructs a post's plain text from the sanitized embed
// fragment: line-break tags become newlines, markup is stripped, HTML
// entities are decoded.
func embedHTMLToText(fragment string) string {
	withBreaks := lineBreakPattern.ReplaceAllString(fragment, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(withBreaks))
	if err != nil {
		return ""
	}

	// The post body lives in the blockquote's paragraphs; the rest of the
	// fragment is attribution chrome.
	paras := doc.Find("blockquote p")
	if paras.Length() == 0 {
		return strings.TrimSpace(doc.Text())
	}

	parts := make([]string, 0, paras.Length())
	paras.Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// isNegligible reports whether what's left of a post after removing its links
// carries no content of its own. Posts that are just a link plus a couple of
// framing words ("Only link: ...") count as link-only.
func isNegligible(residual string) bool {
	return len(strings.Fields(residual)) <= 3
}

func isShortenerURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	_, ok := shortenerHosts[host]
	return ok
}
