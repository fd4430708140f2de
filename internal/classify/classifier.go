// Package classify maps extracted content onto the structured taxonomy.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linkhoard/linkhoard/internal/clients"
	"github.com/linkhoard/linkhoard/internal/models"
)

// textBudget caps how much extracted text goes into the prompt.
const textBudget = 8000

var domainVocabulary = []string{
	"ai-ml", "web-dev", "devops", "data", "security",
	"mobile", "systems", "product", "career", "science", "other",
}

var contentTypeVocabulary = []string{
	"tutorial", "news", "opinion", "showcase",
	"discussion", "reference", "other",
}

// ChatCompleter is the slice of the OpenAI client the classifier needs.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, system, user string) (string, float64, error)
}

type Classifier struct {
	ai ChatCompleter
}

func NewClassifier(ai ChatCompleter) *Classifier {
	return &Classifier{ai: ai}
}

const classifySystemPrompt = `You classify captured content for a personal knowledge base.

Respond only with a valid JSON object:
{
  "title": "short title, at most 80 characters",
  "summary": "one sentence summarizing the content",
  "domain": "exactly one of: %s",
  "content_type": "exactly one of: %s",
  "tags": ["2 to 5 short lowercase tags"]
}
All fields are required.`

// Classify issues one AI call over a size-bounded context and returns the
// parsed taxonomy. A parse failure or missing required field returns an
// error, never a partially-filled structure.
func (c *Classifier) Classify(ctx context.Context, kind models.SourceKind, extracted *models.ExtractResult) (*models.Classification, error) {
	system := fmt.Sprintf(classifySystemPrompt,
		strings.Join(domainVocabulary, ", "),
		strings.Join(contentTypeVocabulary, ", "))

	raw, cost, err := c.ai.CompleteJSON(ctx, system, buildContext(kind, extracted))
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}

	cleaned := clients.CleanJSONResponse(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("classification response was not a JSON object")
	}

	var result models.Classification
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}
	result.Cost = cost

	if result.Title == "" || result.Summary == "" || result.Domain == "" || result.ContentType == "" {
		return nil, fmt.Errorf("classification missing required fields")
	}
	if result.Tags == nil {
		result.Tags = []string{}
	}

	// The vocabularies are closed; anything the model invented collapses
	// to "other".
	if !inVocabulary(result.Domain, domainVocabulary) {
		slog.Warn("[Classifier] Domain outside vocabulary, using other",
			slog.String("domain", result.Domain))
		result.Domain = "other"
	}
	if !inVocabulary(result.ContentType, contentTypeVocabulary) {
		slog.Warn("[Classifier] Content type outside vocabulary, using other",
			slog.String("content_type", result.ContentType))
		result.ContentType = "other"
	}

	return &result, nil
}

func buildContext(kind models.SourceKind, extracted *models.ExtractResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "source kind: %s\n", kind)
	if extracted.Title != "" {
		fmt.Fprintf(&b, "original title: %s\n", extracted.Title)
	}
	if extracted.RepoMeta != nil {
		fmt.Fprintf(&b, "repository: %s - %s (stars: %d, language: %s, topics: %s)\n",
			extracted.RepoMeta.FullName,
			extracted.RepoMeta.Description,
			extracted.RepoMeta.Stars,
			extracted.RepoMeta.Language,
			strings.Join(extracted.RepoMeta.Topics, ", "))
	}
	if len(extracted.RepoURLs) > 0 {
		fmt.Fprintf(&b, "referenced repositories: %s\n", strings.Join(extracted.RepoURLs, ", "))
	}

	text := extracted.Text
	if len(text) > textBudget {
		text = text[:textBudget]
	}
	fmt.Fprintf(&b, "content:\n%s", text)

	return b.String()
}

func inVocabulary(value string, vocabulary []string) bool {
	for _, v := range vocabulary {
		if value == v {
			return true
		}
	}
	return false
}
