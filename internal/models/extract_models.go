package models

import "time"

// ExtractResult is the outcome of one extraction strategy. A nil result means
// the strategy failed; a non-nil result may still carry an empty repo list
// (partial success is preserved).
type ExtractResult struct {
	Title       string
	Text        string
	Author      string
	SiteName    string
	Excerpt     string
	PublishedAt *time.Time

	// RepoURLs are canonical, deduplicated repository references found in or
	// inferred from the extracted text.
	RepoURLs []string
	RepoMeta *RepoMetadata
	Entities ExtractedEntities

	// Social-post extraction details.
	UsedGrok   bool
	IsLinkOnly bool
	// ArticleURL is set when a resolved link points at a long-form article
	// permalink on the same platform, surfaced distinctly from plain links.
	ArticleURL    string
	ResolvedLinks []string

	GrokCost           float64
	RepoValidationCost float64
}

// Classification is the structured taxonomy produced by the content
// classifier. All fields except Tags are required.
type Classification struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Domain      string   `json:"domain"`
	ContentType string   `json:"content_type"`
	Tags        []string `json:"tags"`

	Cost float64 `json:"-"`
}
