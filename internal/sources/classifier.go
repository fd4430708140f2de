// Package sources maps captured URLs onto the closed set of source kinds.
package sources

import (
	"net/url"
	"strings"

	"github.com/linkhoard/linkhoard/internal/models"
)

// hostPatterns are checked in priority order; the first match wins.
var hostPatterns = []struct {
	suffixes []string
	kind     models.SourceKind
}{
	{[]string{"tiktok.com"}, models.SourceShortVideo},
	{[]string{"twitter.com", "x.com"}, models.SourceSocialPost},
	{[]string{"github.com"}, models.SourceCodeRepo},
}

// Classify maps a URL onto one source kind. Total and deterministic: any URL
// that matches no specific pattern is an article, including unparseable input.
func Classify(rawURL string) models.SourceKind {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return models.SourceArticle
	}

	host := strings.ToLower(u.Hostname())
	for _, p := range hostPatterns {
		for _, suffix := range p.suffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return p.kind
			}
		}
	}
	return models.SourceArticle
}
