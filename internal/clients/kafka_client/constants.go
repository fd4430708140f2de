package kafka_client

import "time"

const (
	KAFKA_TOPIC_CAPTURE_REQUESTS = "capture-requests" // accepted items awaiting processing
)

const (
	MAX_RETRIES = 5
	RETRY_DELAY = 2 * time.Second
)
