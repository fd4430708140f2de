package kafka_client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/linkhoard/linkhoard/internal/models"
)

// Producer publishes capture events. Delivery is at-least-once: the worker's
// processing is an idempotent overwrite, so duplicates are harmless and EOS
// transactions are not needed.
type Producer struct {
	producer *kafka.Producer
}

func NewProducer(cfg KafkaConfig) (*Producer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   cfg.Broker,
		"security.protocol":   "PLAINTEXT",
		"api.version.request": "true",
		"enable.idempotence":  true,
		"acks":                "all",
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &Producer{producer: p}, nil
}

func (p *Producer) Close() {
	slog.Info("[KafkaClient] Shutting down Kafka producer...")
	if remaining := p.producer.Flush(5000); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// PublishCapture sends a capture event keyed by item id and waits for the
// broker's delivery report, so a returned nil really means accepted.
func (p *Producer) PublishCapture(req models.CaptureRequest) error {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to marshal capture request: %w", err)
	}

	topic := KAFKA_TOPIC_CAPTURE_REQUESTS
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(req.ItemID),
		Value:          jsonData,
	}

	deliveryChan := make(chan kafka.Event, 1)
	for i := 0; i < 3; i++ {
		err = p.producer.Produce(msg, deliveryChan)
		if err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		time.Sleep(RETRY_DELAY)
	}
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to produce capture request: %w", err)
	}

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("[KafkaClient] unexpected delivery event: %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("[KafkaClient] delivery failed: %w", m.TopicPartition.Error)
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("[KafkaClient] timed out waiting for delivery report")
	}

	slog.Info("[KafkaClient] Published capture request",
		slog.String("item_id", req.ItemID),
		slog.String("user_id", req.UserID))
	return nil
}
