package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/linkhoard/linkhoard/internal/clients"
	"github.com/linkhoard/linkhoard/internal/models"
)

const (
	// Candidate resolution is capped to bound AI spend and respect the
	// search API's rate limits.
	maxCandidates        = 5
	candidateConcurrency = 5
	proposeTextBudget    = 12000
)

// ChatCompleter is the slice of the OpenAI client the sub-pipeline needs.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, system, user string) (string, float64, error)
}

// RepoSearcher resolves a free-text candidate name to its best repository match.
type RepoSearcher interface {
	SearchRepo(ctx context.Context, query string) (*models.RepoMetadata, error)
}

// CandidateFinder runs the propose → resolve → verify sub-pipeline used when
// extracted text contains no explicit repository links. Verification is an
// independent AI call per match; only an explicit affirmative admits a match.
type CandidateFinder struct {
	ai     ChatCompleter
	search RepoSearcher
}

func NewCandidateFinder(ai ChatCompleter, search RepoSearcher) *CandidateFinder {
	return &CandidateFinder{ai: ai, search: search}
}

// CandidateOutcome is what the sub-pipeline feeds back into an extraction
// result: validated repositories plus the raw entity mentions.
type CandidateOutcome struct {
	Repos      []models.RepoMetadata
	Tools      []string
	Techniques []string
	Cost       float64
}

const proposeSystemPrompt = `You extract software project mentions from transcripts and posts.

Given a text, list the named software tools or projects that plausibly correspond
to open-source repositories. Exclude well-known commercial products (e.g.
Photoshop, Slack, iPhone) and generic terms (e.g. "database", "API", "framework").
Also list the named techniques or concepts being discussed.

Respond only with a valid JSON object:
{
  "candidates": ["tool or project names, most likely open-source first"],
  "techniques": ["named techniques or concepts"]
}`

const verifySystemPrompt = `You verify repository matches.

You will receive the original text and one candidate repository's name,
description and topics. Answer the single question: is this repository the one
being discussed in the text?

Respond only with a valid JSON object:
{"match": true} or {"match": false}`

// FindValidated proposes candidates from text, resolves each against the
// code-hosting search API, and keeps only matches an independent verification
// call affirms. Matches whose URL already appears in known are skipped.
func (f *CandidateFinder) FindValidated(ctx context.Context, text string, known []string) (*CandidateOutcome, error) {
	if len(text) > proposeTextBudget {
		text = text[:proposeTextBudget]
	}

	proposal, proposeCost, err := f.propose(ctx, text)
	if err != nil {
		return nil, err
	}

	outcome := &CandidateOutcome{
		Repos:      []models.RepoMetadata{},
		Tools:      proposal.Candidates,
		Techniques: proposal.Techniques,
		Cost:       proposeCost,
	}

	candidates := proposal.Candidates
	if len(candidates) > maxCandidates {
		slog.Info("[CandidateFinder] Capping candidate list",
			slog.Int("proposed", len(candidates)),
			slog.Int("cap", maxCandidates))
		candidates = candidates[:maxCandidates]
	}
	if len(candidates) == 0 {
		return outcome, nil
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, u := range known {
		knownSet[strings.ToLower(u)] = struct{}{}
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, candidateConcurrency)
	)

	for _, name := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			match, cost := f.resolveAndVerify(ctx, text, name, knownSet)
			mu.Lock()
			defer mu.Unlock()
			outcome.Cost += cost
			if match != nil {
				outcome.Repos = append(outcome.Repos, *match)
			}
		}(name)
	}
	wg.Wait()

	slog.Info("[CandidateFinder] Candidate validation complete",
		slog.Int("proposed", len(candidates)),
		slog.Int("accepted", len(outcome.Repos)))
	return outcome, nil
}

type proposal struct {
	Candidates []string `json:"candidates"`
	Techniques []string `json:"techniques"`
}

func (f *CandidateFinder) propose(ctx context.Context, text string) (*proposal, float64, error) {
	raw, cost, err := f.ai.CompleteJSON(ctx, proposeSystemPrompt, text)
	if err != nil {
		return nil, cost, fmt.Errorf("[CandidateFinder] propose call failed: %w", err)
	}

	cleaned := clients.CleanJSONResponse(raw)
	if cleaned == "" {
		return nil, cost, fmt.Errorf("[CandidateFinder] propose response was not a JSON object")
	}

	var p proposal
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, cost, fmt.Errorf("[CandidateFinder] failed to parse proposal: %w", err)
	}
	if p.Candidates == nil {
		p.Candidates = []string{}
	}
	if p.Techniques == nil {
		p.Techniques = []string{}
	}
	return &p, cost, nil
}

// resolveAndVerify runs one candidate through search and verification.
// Failures are logged and treated as a rejected candidate; they never fail
// the whole sub-pipeline.
func (f *CandidateFinder) resolveAndVerify(ctx context.Context, text, name string, known map[string]struct{}) (*models.RepoMetadata, float64) {
	match, err := f.search.SearchRepo(ctx, name)
	if err != nil {
		slog.Warn("[CandidateFinder] Repository search failed",
			slog.String("candidate", name),
			slog.String("error", err.Error()))
		return nil, 0
	}
	if match == nil {
		slog.Debug("[CandidateFinder] No repository match", slog.String("candidate", name))
		return nil, 0
	}
	if _, dup := known[strings.ToLower(match.URL)]; dup {
		slog.Debug("[CandidateFinder] Match already known, skipping",
			slog.String("url", match.URL))
		return nil, 0
	}

	ok, cost, err := f.verify(ctx, text, match)
	if err != nil {
		slog.Warn("[CandidateFinder] Verification call failed",
			slog.String("candidate", name),
			slog.String("error", err.Error()))
		return nil, cost
	}
	if !ok {
		slog.Info("[CandidateFinder] Verification rejected match",
			slog.String("candidate", name),
			slog.String("url", match.URL))
		return nil, cost
	}
	return match, cost
}

func (f *CandidateFinder) verify(ctx context.Context, text string, match *models.RepoMetadata) (bool, float64, error) {
	user := fmt.Sprintf("Text:\n%s\n\nCandidate repository:\nname: %s\ndescription: %s\ntopics: %s",
		text, match.FullName, match.Description, strings.Join(match.Topics, ", "))

	raw, cost, err := f.ai.CompleteJSON(ctx, verifySystemPrompt, user)
	if err != nil {
		return false, cost, err
	}

	cleaned := clients.CleanJSONResponse(raw)
	if cleaned == "" {
		return false, cost, fmt.Errorf("verification response was not a JSON object")
	}

	var verdict struct {
		Match bool `json:"match"`
	}
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return false, cost, fmt.Errorf("failed to parse verification verdict: %w", err)
	}
	return verdict.Match, cost, nil
}
