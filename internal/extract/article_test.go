package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhoard/linkhoard/internal/clients"
)

const articlePage = `<!DOCTYPE html>
<html>
<head>
<title>Why We Rewrote Our Ingestion Layer</title>
<meta property="article:published_time" content="2026-03-14T09:30:00Z">
<meta name="date" content="2020-01-01">
</head>
<body>
<article>
<h1>Why We Rewrote Our Ingestion Layer</h1>
<p>Our old ingestion layer grew out of a weekend prototype, and it showed. Every
new source format meant another special case in a parser nobody wanted to touch,
and the retry logic had become a maze of flags that interacted in ways nobody
could predict. After the third incident caused by a half-applied retry we
decided the cheapest path forward was a rewrite with a single normalized
internal representation.</p>
<p>The new design splits ingestion into fetch, normalize, and persist stages
with an explicit queue between each pair. Stages are idempotent, so a crashed
worker can be restarted without reconciliation. Most of the normalization logic
came from the open-source parser at github.com/acme/normalizer, which handled
nine of our eleven source formats out of the box and was easy to extend for the
remaining two.</p>
<p>Migration took six weeks. We ran both pipelines in parallel and diffed their
outputs daily, which caught two subtle bugs in the old system that had been
silently corrupting timestamps for years. Throughput is up four times and the
on-call rotation has been quiet since the cutover.</p>
</article>
</body>
</html>`

func TestArticleExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer server.Close()

	extractor := NewArticleExtractor(clients.NewFetchClient())
	result, err := extractor.Extract(context.Background(), server.URL+"/posts/rewrite")
	require.NoError(t, err)

	assert.Contains(t, result.Title, "Why We Rewrote Our Ingestion Layer")
	assert.Contains(t, result.Text, "single normalized")
	assert.NotContains(t, result.Text, "<p>")
	assert.Equal(t, []string{"https://github.com/acme/normalizer"}, result.RepoURLs)

	// The og-style meta wins over the plain date meta further down the list.
	require.NotNil(t, result.PublishedAt)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), result.PublishedAt.UTC())
}

func TestArticleFetch404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	extractor := NewArticleExtractor(clients.NewFetchClient())
	_, err := extractor.Extract(context.Background(), server.URL+"/gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestArticleEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>t</title></head><body></body></html>`))
	}))
	defer server.Close()

	extractor := NewArticleExtractor(clients.NewFetchClient())
	_, err := extractor.Extract(context.Background(), server.URL)
	require.Error(t, err)
}

func TestProbePublishedAt(t *testing.T) {
	tests := []struct {
		name string
		page string
		want *time.Time
	}{
		{
			name: "time element datetime",
			page: `<html><body><time datetime="2025-11-02T12:00:00Z">Nov 2</time></body></html>`,
			want: timePtr(time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)),
		},
		{
			name: "pubdate meta",
			page: `<html><head><meta name="pubdate" content="2025-06-01"></head></html>`,
			want: timePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		},
		{
			name: "unparseable value skipped",
			page: `<html><head><meta name="pubdate" content="yesterday-ish"></head></html>`,
			want: nil,
		},
		{
			name: "no timestamp at all",
			page: `<html><body><p>hello</p></body></html>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := probePublishedAt(tt.page)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestArticleStripsQueryNoise(t *testing.T) {
	// Sanity check that the extractor tolerates URLs with query strings the
	// way real shares arrive.
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage))
	}))
	defer server.Close()

	extractor := NewArticleExtractor(clients.NewFetchClient())
	_, err := extractor.Extract(context.Background(), server.URL+"/posts/rewrite?ref=feed")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotPath, "/posts/rewrite"))
}
