package models

import "time"

type SourceKind string

const (
	SourceShortVideo SourceKind = "short-video"
	SourceSocialPost SourceKind = "social-post"
	SourceCodeRepo   SourceKind = "code-repo"
	SourceArticle    SourceKind = "article"
)

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusProcessed  ItemStatus = "processed"
	StatusFailed     ItemStatus = "failed"
)

// Terminal reports whether the status can no longer change for an item,
// barring an explicit reprocess request.
func (s ItemStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Item is the unit of work and the unit of display.
type Item struct {
	ItemID     string     `json:"item_id" dynamodbav:"item_id"`
	UserID     string     `json:"user_id" dynamodbav:"user_id"`
	URL        string     `json:"url" dynamodbav:"url"`
	SourceKind SourceKind `json:"source_kind" dynamodbav:"source_kind"`

	Status      ItemStatus `json:"status" dynamodbav:"status"`
	CapturedAt  time.Time  `json:"captured_at" dynamodbav:"captured_at"`
	UpdatedAt   time.Time  `json:"updated_at" dynamodbav:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" dynamodbav:"processed_at,omitempty"`

	Title       string   `json:"title,omitempty" dynamodbav:"title,omitempty"`
	Summary     string   `json:"summary,omitempty" dynamodbav:"summary,omitempty"`
	Domain      string   `json:"domain,omitempty" dynamodbav:"domain,omitempty"`
	ContentType string   `json:"content_type,omitempty" dynamodbav:"content_type,omitempty"`
	Tags        []string `json:"tags,omitempty" dynamodbav:"tags,omitempty"`

	RawText  string             `json:"raw_text,omitempty" dynamodbav:"raw_text,omitempty"`
	RepoMeta *RepoMetadata      `json:"repo_meta,omitempty" dynamodbav:"repo_meta,omitempty"`
	Entities *ExtractedEntities `json:"entities,omitempty" dynamodbav:"entities,omitempty"`

	ErrorMessage string `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`

	ClassificationCost float64 `json:"classification_cost,omitempty" dynamodbav:"classification_cost,omitempty"`
	GrokCost           float64 `json:"grok_cost,omitempty" dynamodbav:"grok_cost,omitempty"`
	RepoValidationCost float64 `json:"repo_validation_cost,omitempty" dynamodbav:"repo_validation_cost,omitempty"`
}

// TotalCost sums every per-category cost incurred while processing the item.
func (i *Item) TotalCost() float64 {
	return i.ClassificationCost + i.GrokCost + i.RepoValidationCost
}

// ExtractedEntities holds secondary entities discovered inside extracted text.
// Lists are empty-but-present once processing completes, never nil.
type ExtractedEntities struct {
	Repos      []string `json:"repos" dynamodbav:"repos"`
	Tools      []string `json:"tools" dynamodbav:"tools"`
	Techniques []string `json:"techniques" dynamodbav:"techniques"`
}

// RepoMetadata describes a code repository fetched from the hosting provider.
type RepoMetadata struct {
	URL         string   `json:"url" dynamodbav:"url"`
	FullName    string   `json:"full_name" dynamodbav:"full_name"`
	Description string   `json:"description" dynamodbav:"description"`
	Stars       int      `json:"stars" dynamodbav:"stars"`
	Language    string   `json:"language,omitempty" dynamodbav:"language,omitempty"`
	Topics      []string `json:"topics" dynamodbav:"topics"`
}
