// Package pipeline drives a captured item through extraction, classification
// and persistence under a terminal-safe status lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linkhoard/linkhoard/internal/extract"
	"github.com/linkhoard/linkhoard/internal/models"
	"github.com/linkhoard/linkhoard/internal/sources"
	"github.com/linkhoard/linkhoard/internal/store"
)

const (
	defaultDedupWindow  = 10 * time.Minute
	defaultStageTimeout = 3 * time.Minute
	terminalWriteBudget = 10 * time.Second
)

// Publisher submits an accepted item for asynchronous processing.
// Acceptance acknowledges scheduling, never completion.
type Publisher interface {
	PublishCapture(req models.CaptureRequest) error
}

// Classifier maps extracted content onto the taxonomy.
type Classifier interface {
	Classify(ctx context.Context, kind models.SourceKind, extracted *models.ExtractResult) (*models.Classification, error)
}

// Notifier delivers a result message to the capturing user. Best effort:
// delivery failure never affects the pipeline outcome.
type Notifier interface {
	Send(ctx context.Context, userID, text string) error
}

type Orchestrator struct {
	store      store.ItemStore
	dedup      store.DedupIndex
	queue      Publisher
	extractors map[models.SourceKind]extract.Extractor
	classifier Classifier
	notifier   Notifier

	dedupWindow  time.Duration
	stageTimeout time.Duration
}

type Config struct {
	Store      store.ItemStore
	Dedup      store.DedupIndex
	Queue      Publisher
	Extractors map[models.SourceKind]extract.Extractor
	Classifier Classifier
	Notifier   Notifier

	DedupWindow  time.Duration
	StageTimeout time.Duration
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	if cfg.StageTimeout == 0 {
		cfg.StageTimeout = defaultStageTimeout
	}
	return &Orchestrator{
		store:        cfg.Store,
		dedup:        cfg.Dedup,
		queue:        cfg.Queue,
		extractors:   cfg.Extractors,
		classifier:   cfg.Classifier,
		notifier:     cfg.Notifier,
		dedupWindow:  cfg.DedupWindow,
		stageTimeout: cfg.StageTimeout,
	}
}

// Capture accepts a URL for processing. A repeated capture of the same
// normalized URL within the dedup window resolves to the existing item id
// without creating a new row.
func (o *Orchestrator) Capture(ctx context.Context, userID, rawURL string) (string, bool, error) {
	normalized := NormalizeURL(rawURL)
	if normalized == "" {
		return "", false, fmt.Errorf("[Capture] not a valid URL: %q", rawURL)
	}

	itemID := uuid.NewString()

	existingID, err := o.dedup.ReserveCapture(ctx, userID, normalized, itemID, o.dedupWindow)
	if err != nil {
		return "", false, fmt.Errorf("[Capture] dedup lookup failed: %w", err)
	}
	if existingID != "" {
		slog.Info("[Capture] Duplicate capture within window, returning existing item",
			slog.String("item_id", existingID),
			slog.String("user_id", userID))
		return existingID, true, nil
	}

	item := &models.Item{
		ItemID:     itemID,
		UserID:     userID,
		URL:        normalized,
		SourceKind: sources.Classify(normalized),
		Status:     models.StatusPending,
		CapturedAt: time.Now().UTC(),
	}

	if err := o.store.Insert(ctx, item); err != nil {
		if relErr := o.dedup.ReleaseCapture(ctx, userID, normalized); relErr != nil {
			slog.Warn("[Capture] Failed to release reservation after insert failure",
				slog.String("error", relErr.Error()))
		}
		return "", false, fmt.Errorf("[Capture] insert failed: %w", err)
	}

	if err := o.queue.PublishCapture(models.CaptureRequest{
		ItemID: itemID,
		UserID: userID,
		URL:    normalized,
	}); err != nil {
		// Dispatch failure, not a processing failure: the task never got
		// scheduled. Logged distinctly and the item is finalized so it
		// cannot sit in pending forever.
		slog.Error("[Capture] Dispatch failed, task was never scheduled",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()))
		if updErr := o.store.UpdateStatus(ctx, itemID, models.StatusFailed, "dispatch failed: "+err.Error()); updErr != nil {
			slog.Error("[Capture] Failed to finalize undispatched item",
				slog.String("item_id", itemID),
				slog.String("error", updErr.Error()))
		}
		return itemID, false, fmt.Errorf("[Capture] dispatch failed: %w", err)
	}

	slog.Info("[Capture] Item accepted",
		slog.String("item_id", itemID),
		slog.String("user_id", userID),
		slog.String("source_kind", string(item.SourceKind)))
	return itemID, false, nil
}

// Process runs the full pipeline for one item. Once the item is claimed as
// processing, Process never returns without a terminal status write: every
// exception, timeout or nil stage result becomes a failed write carrying a
// diagnostic message. Invoking Process on an already-terminal item re-runs
// the pipeline and overwrites prior extracted fields.
func (o *Orchestrator) Process(ctx context.Context, itemID string) error {
	item, err := o.store.Get(ctx, itemID)
	if err != nil {
		return fmt.Errorf("[Pipeline] could not load item %s: %w", itemID, err)
	}

	if err := o.store.UpdateStatus(ctx, itemID, models.StatusProcessing, ""); err != nil {
		return fmt.Errorf("[Pipeline] could not claim item %s: %w", itemID, err)
	}

	terminal := false
	defer func() {
		r := recover()
		if r != nil {
			slog.Error("[Pipeline] Recovered from panic",
				slog.String("item_id", itemID),
				slog.Any("panic", r))
		}
		if terminal {
			return
		}
		// The item is claimed but no terminal status was written; that is
		// exactly the stuck-in-processing incident. Write the failure on a
		// fresh context so a fired deadline cannot block it.
		msg := "processing aborted before completion"
		if r != nil {
			msg = fmt.Sprintf("panic during processing: %v", r)
		} else if ctx.Err() != nil {
			msg = fmt.Sprintf("processing timed out: %v", ctx.Err())
		}
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteBudget)
		defer cancel()
		if err := o.store.UpdateStatus(writeCtx, itemID, models.StatusFailed, msg); err != nil {
			slog.Error("[Pipeline] Failed to write terminal status",
				slog.String("item_id", itemID),
				slog.String("error", err.Error()))
		}
	}()

	extractor, ok := o.extractors[item.SourceKind]
	if !ok {
		terminal = true
		return o.fail(ctx, item, fmt.Sprintf("no extraction strategy for source kind %q", item.SourceKind))
	}

	extractCtx, cancelExtract := context.WithTimeout(ctx, o.stageTimeout)
	extracted, err := extractor.Extract(extractCtx, item.URL)
	cancelExtract()
	if err != nil {
		terminal = true
		return o.fail(ctx, item, fmt.Sprintf("extraction failed: %v", err))
	}
	if extracted == nil {
		terminal = true
		return o.fail(ctx, item, "extraction returned no content")
	}

	classifyCtx, cancelClassify := context.WithTimeout(ctx, o.stageTimeout)
	classification, err := o.classifier.Classify(classifyCtx, item.SourceKind, extracted)
	cancelClassify()
	if err != nil {
		terminal = true
		return o.fail(ctx, item, fmt.Sprintf("classification failed: %v", err))
	}
	if classification == nil {
		terminal = true
		return o.fail(ctx, item, "classification returned no result")
	}

	now := time.Now().UTC()
	item.Status = models.StatusProcessed
	item.ProcessedAt = &now
	item.Title = classification.Title
	item.Summary = classification.Summary
	item.Domain = classification.Domain
	item.ContentType = classification.ContentType
	item.Tags = classification.Tags
	item.RawText = extracted.Text
	item.RepoMeta = extracted.RepoMeta
	item.Entities = normalizedEntities(extracted)
	item.ErrorMessage = ""
	item.ClassificationCost = classification.Cost
	item.GrokCost = extracted.GrokCost
	item.RepoValidationCost = extracted.RepoValidationCost

	// One write carries every extracted field, all costs and the terminal
	// status. A full overwrite also makes reprocessing idempotent: list
	// fields are replaced, never appended to.
	if err := o.store.Put(ctx, item); err != nil {
		terminal = true
		return o.fail(ctx, item, fmt.Sprintf("persistence failed: %v", err))
	}
	terminal = true

	slog.Info("[Pipeline] Item processed",
		slog.String("item_id", itemID),
		slog.String("domain", item.Domain),
		slog.String("content_type", item.ContentType),
		slog.Float64("total_cost", item.TotalCost()))

	o.notify(ctx, item, fmt.Sprintf("Saved: %s\n%s\n(cost $%.4f)", item.Title, item.Summary, item.TotalCost()))
	return nil
}

// fail converts a stage failure into the terminal failed write. The write
// happens on a decoupled context so an expired stage deadline cannot leave
// the item stuck in processing.
func (o *Orchestrator) fail(ctx context.Context, item *models.Item, msg string) error {
	slog.Warn("[Pipeline] Item failed",
		slog.String("item_id", item.ItemID),
		slog.String("reason", msg))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteBudget)
	defer cancel()
	if err := o.store.UpdateStatus(writeCtx, item.ItemID, models.StatusFailed, msg); err != nil {
		return fmt.Errorf("[Pipeline] failed to persist failure for %s: %w", item.ItemID, err)
	}

	o.notify(ctx, item, fmt.Sprintf("Could not process %s: %s", item.URL, msg))
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, item *models.Item, text string) {
	if o.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.notifier.Send(notifyCtx, item.UserID, text); err != nil {
		slog.Warn("[Pipeline] Notification delivery failed",
			slog.String("item_id", item.ItemID),
			slog.String("error", err.Error()))
	}
}

// SweepStuck reclaims items that claimed processing but never reached a
// terminal status, e.g. because the worker was killed mid-stage. Run at
// worker startup.
func (o *Orchestrator) SweepStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	stuck, err := o.store.ListStuckProcessing(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("[Sweep] listing stuck items failed: %w", err)
	}

	reclaimed := 0
	for _, item := range stuck {
		if err := o.store.UpdateStatus(ctx, item.ItemID, models.StatusFailed, "processing timed out; reclaimed by sweep"); err != nil {
			slog.Error("[Sweep] Failed to reclaim item",
				slog.String("item_id", item.ItemID),
				slog.String("error", err.Error()))
			continue
		}
		reclaimed++
	}

	if reclaimed > 0 {
		slog.Warn("[Sweep] Reclaimed stuck items", slog.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// normalizedEntities guarantees the extracted-entities block is present with
// empty-but-present lists once processing completes.
func normalizedEntities(extracted *models.ExtractResult) *models.ExtractedEntities {
	entities := extracted.Entities
	if entities.Repos == nil {
		entities.Repos = []string{}
	}
	if entities.Tools == nil {
		entities.Tools = []string{}
	}
	if entities.Techniques == nil {
		entities.Techniques = []string{}
	}
	return &entities
}

// NormalizeURL canonicalizes a captured URL: scheme and host lowercased,
// fragment dropped, tracking parameters removed, trailing slash trimmed.
// Returns "" for input that is not an absolute http(s) URL.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "fbclid" || param == "gclid" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
