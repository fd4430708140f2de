// Package worker consumes capture events and runs the pipeline per item.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/linkhoard/linkhoard/internal/clients/kafka_client"
	"github.com/linkhoard/linkhoard/internal/models"
)

// Processor runs the pipeline for one accepted item.
type Processor interface {
	Process(ctx context.Context, itemID string) error
}

// Run is the consume loop. Offsets are committed after Process returns:
// Process guarantees a terminal status write for anything it managed to
// claim, and re-delivery of an unclaimed item is a harmless re-run.
func Run(ctx context.Context, consumer *kafka.Consumer, processor Processor) {
	iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
	committer := kafka_client.NewCommitHandler(ctx, consumer)

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[Worker] Stopping consumer...")
			return
		default:
			msg, err := iterator.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("[Worker] Failed to read message",
					slog.String("error", err.Error()))
				continue
			}

			var req models.CaptureRequest
			if err := json.Unmarshal(msg.Value, &req); err != nil {
				slog.Error("[Worker] Dropping malformed capture request",
					slog.String("error", err.Error()))
				// Malformed payloads never become parseable; commit past them.
				if err := committer.Commit(msg); err != nil {
					slog.Warn("[Worker] Failed to commit malformed message",
						slog.String("error", err.Error()))
				}
				continue
			}

			slog.Info("[Worker] Processing capture request",
				slog.String("item_id", req.ItemID),
				slog.String("user_id", req.UserID))

			if err := processor.Process(ctx, req.ItemID); err != nil {
				// The item was never claimed; leave the offset uncommitted
				// so delivery retries.
				slog.Error("[Worker] Processing could not start",
					slog.String("item_id", req.ItemID),
					slog.String("error", err.Error()))
				continue
			}

			if err := committer.Commit(msg); err != nil {
				slog.Warn("[Worker] Failed to commit offset",
					slog.String("item_id", req.ItemID),
					slog.String("error", err.Error()))
			}
		}
	}
}
