// Package store persists items and answers the capture dedup lookup.
package store

import (
	"context"
	"time"

	"github.com/linkhoard/linkhoard/internal/models"
)

// ItemStore is the durable record of captured items, keyed by item id and
// scoped per user.
type ItemStore interface {
	Insert(ctx context.Context, item *models.Item) error
	// Put overwrites the full item. The terminal persistence write and
	// reprocessing both go through here so list fields are replaced, never
	// appended to.
	Put(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, itemID string) (*models.Item, error)
	UpdateStatus(ctx context.Context, itemID string, status models.ItemStatus, errorMessage string) error
	// ListStuckProcessing returns items that claimed processing longer than
	// olderThan ago and never reached a terminal status.
	ListStuckProcessing(ctx context.Context, olderThan time.Duration) ([]models.Item, error)
}

// DedupIndex resolves repeated captures of the same URL within the trailing
// dedup window to the existing item id.
type DedupIndex interface {
	ReserveCapture(ctx context.Context, userID, url, itemID string, window time.Duration) (existingID string, err error)
	ReleaseCapture(ctx context.Context, userID, url string) error
}
