package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhoard/linkhoard/internal/clients"
)

type fakeGrok struct {
	res *clients.GrokResult
	err error
}

func (f *fakeGrok) FetchPost(ctx context.Context, postURL string) (*clients.GrokResult, error) {
	return f.res, f.err
}

type fakeOEmbed struct {
	res *clients.OEmbedResult
	err error
}

func (f *fakeOEmbed) Fetch(ctx context.Context, postURL string) (*clients.OEmbedResult, error) {
	return f.res, f.err
}

type fakeResolver struct {
	targets map[string]string
}

func (f *fakeResolver) ResolveRedirect(ctx context.Context, shortURL string) (string, error) {
	return f.targets[shortURL], nil
}

const tweetEmbed = `<blockquote class="twitter-tweet"><p lang="en" dir="ltr">Shipped a new release of our parser.<br>Changelog: https://t.co/abc123</p>&mdash; Dev Person (@devperson) <a href="https://twitter.com/devperson/status/1">January 1, 2026</a></blockquote>`

func TestSocialPostGroundedPath(t *testing.T) {
	grok := &fakeGrok{res: &clients.GrokResult{
		Text:   "check out the new release of acme/tool",
		Author: "devperson",
		Citations: []string{
			"https://github.com/acme/tool",
			"https://example.com/blog/release",
			"https://github.com/acme/tool/releases/tag/v1",
		},
		Cost: 0.031,
	}}
	extractor := NewSocialPostExtractor(grok, &fakeOEmbed{}, &fakeResolver{})

	result, err := extractor.Extract(context.Background(), "https://x.com/devperson/status/1")
	require.NoError(t, err)

	assert.True(t, result.UsedGrok)
	assert.Equal(t, 0.031, result.GrokCost)
	assert.Equal(t, "devperson", result.Author)
	// Citations collapse to canonical repo URLs; the non-hosting one is dropped.
	assert.Equal(t, []string{"https://github.com/acme/tool"}, result.RepoURLs)
}

func TestSocialPostGroundedEmptyFallsBack(t *testing.T) {
	extractor := NewSocialPostExtractor(
		&fakeGrok{res: nil},
		&fakeOEmbed{res: &clients.OEmbedResult{HTML: tweetEmbed, AuthorName: "Dev Person"}},
		&fakeResolver{},
	)

	result, err := extractor.Extract(context.Background(), "https://x.com/devperson/status/1")
	require.NoError(t, err)

	assert.False(t, result.UsedGrok)
	assert.Zero(t, result.GrokCost)
	assert.Contains(t, result.Text, "Shipped a new release of our parser.")
	assert.Contains(t, result.Text, "\nChangelog:")
	assert.Equal(t, "Dev Person", result.Author)
}

func TestSocialPostGroundedErrorFallsBack(t *testing.T) {
	extractor := NewSocialPostExtractor(
		&fakeGrok{err: errors.New("live search quota exceeded")},
		&fakeOEmbed{res: &clients.OEmbedResult{HTML: tweetEmbed}},
		&fakeResolver{},
	)

	result, err := extractor.Extract(context.Background(), "https://x.com/devperson/status/1")
	require.NoError(t, err)
	assert.False(t, result.UsedGrok)
}

func TestSocialPostLinkOnlyDetection(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     bool
	}{
		{"bare link", `<blockquote class="twitter-tweet"><p>https://t.co/xyz</p></blockquote>`, true},
		{"framed link", `<blockquote class="twitter-tweet"><p>Only link: https://t.co/xyz</p></blockquote>`, true},
		{"substantive text", `<blockquote class="twitter-tweet"><p>Long thoughts about why this approach to caching is wrong https://t.co/xyz</p></blockquote>`, false},
		{"two links", `<blockquote class="twitter-tweet"><p>https://t.co/abc https://t.co/def</p></blockquote>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewSocialPostExtractor(nil,
				&fakeOEmbed{res: &clients.OEmbedResult{HTML: tt.fragment}},
				&fakeResolver{})
			result, err := extractor.Extract(context.Background(), "https://x.com/u/status/1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.IsLinkOnly)
			assert.False(t, result.UsedGrok)
		})
	}
}

func TestSocialPostRedirectResolution(t *testing.T) {
	fragment := `<blockquote class="twitter-tweet"><p>Wrote this up: https://t.co/art1 repo here https://t.co/repo1 and https://t.co/chain1</p></blockquote>`
	resolver := &fakeResolver{targets: map[string]string{
		"https://t.co/art1":   "https://x.com/devperson/article/1892345",
		"https://t.co/repo1":  "https://github.com/acme/tool",
		"https://t.co/chain1": "https://bit.ly/deeper",
	}}
	extractor := NewSocialPostExtractor(nil,
		&fakeOEmbed{res: &clients.OEmbedResult{HTML: fragment}},
		resolver)

	result, err := extractor.Extract(context.Background(), "https://x.com/devperson/status/1")
	require.NoError(t, err)

	// Article permalinks are surfaced distinctly, repo targets feed the repo
	// scan, and a shortener pointing at another shortener is discarded.
	assert.Equal(t, "https://x.com/devperson/article/1892345", result.ArticleURL)
	assert.Equal(t, []string{"https://github.com/acme/tool"}, result.ResolvedLinks)
	assert.Equal(t, []string{"https://github.com/acme/tool"}, result.RepoURLs)
}

func TestSocialPostEmbedFailure(t *testing.T) {
	extractor := NewSocialPostExtractor(nil,
		&fakeOEmbed{err: errors.New("oembed returned 404")},
		&fakeResolver{})
	_, err := extractor.Extract(context.Background(), "https://x.com/u/status/1")
	require.Error(t, err)
}

func TestEmbedHTMLToText(t *testing.T) {
	got := embedHTMLToText(`<blockquote class="twitter-tweet"><p>line one<br/>line two &amp; more</p>&mdash; A (@a)</blockquote>`)
	assert.Equal(t, "line one\nline two & more", got)
}
