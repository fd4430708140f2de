package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/linkhoard/linkhoard/internal/models"
)

// PageFetcher retrieves a page with browser-like headers.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// ArticleExtractor is the generic strategy: readability over a fetched page.
type ArticleExtractor struct {
	fetcher PageFetcher
}

func NewArticleExtractor(fetcher PageFetcher) *ArticleExtractor {
	return &ArticleExtractor{fetcher: fetcher}
}

func (e *ArticleExtractor) Extract(ctx context.Context, pageURL string) (*models.ExtractResult, error) {
	page, err := e.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("article fetch failed: %w", err)
	}

	// Probe for a publication timestamp before readability runs; the
	// readability pass may discard the metadata nodes it lives in.
	publishedAt := probePublishedAt(page)

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse article URL: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(page), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability pass failed: %w", err)
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return nil, fmt.Errorf("readability pass yielded no usable content")
	}

	repos := ScanRepoLinks(article.TextContent)

	return &models.ExtractResult{
		Title:       article.Title,
		Text:        article.TextContent,
		Author:      article.Byline,
		SiteName:    article.SiteName,
		Excerpt:     article.Excerpt,
		PublishedAt: publishedAt,
		RepoURLs:    repos,
		Entities: models.ExtractedEntities{
			Repos:      repos,
			Tools:      []string{},
			Techniques: []string{},
		},
	}, nil
}

// timestampProbes are checked in order; the first parseable hit wins.
var timestampProbes = []struct {
	selector string
	attr     string
}{
	{`meta[property="article:published_time"]`, "content"},
	{`meta[name="article:published_time"]`, "content"},
	{`meta[name="pubdate"]`, "content"},
	{`meta[name="publish-date"]`, "content"},
	{`meta[name="date"]`, "content"},
	{`[pubdate]`, "datetime"},
	{`time[datetime]`, "datetime"},
	{`time`, ""},
}

func probePublishedAt(page string) *time.Time {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	for _, probe := range timestampProbes {
		sel := doc.Find(probe.selector).First()
		if sel.Length() == 0 {
			continue
		}

		var raw string
		if probe.attr != "" {
			raw, _ = sel.Attr(probe.attr)
		} else {
			raw = sel.Text()
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		ts, err := dateparse.ParseAny(raw)
		if err != nil {
			slog.Debug("[ArticleExtractor] Unparseable timestamp candidate",
				slog.String("selector", probe.selector),
				slog.String("value", raw))
			continue
		}
		return &ts
	}
	return nil
}
