package clients

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyClient backs the capture dedup window: a repeated capture of the same
// normalized URL within the window resolves to the existing item id instead
// of creating a new row.
type ValkeyClient struct {
	Client valkey.Client
}

func NewValkeyClient() (*ValkeyClient, error) {
	valkeyAddr := os.Getenv("VALKEY_INIT_ADDRESS")
	if valkeyAddr == "" {
		valkeyAddr = "localhost:6379"
	}
	valkeyPassword := os.Getenv("VALKEY_PASSWORD")
	useTLS := os.Getenv("VALKEY_TLS") == "true"

	opts := valkey.ClientOption{
		InitAddress:      []string{valkeyAddr},
		Password:         valkeyPassword,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if useTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey")
	return &ValkeyClient{Client: client}, nil
}

func (vc *ValkeyClient) Close() {
	vc.Client.Close()
}

func captureKey(userID, url string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("capture:%s:%s", userID, hex.EncodeToString(sum[:]))
}

// ReserveCapture atomically claims the (user, url) pair for itemID within the
// dedup window. When another item already holds the reservation its id is
// returned and itemID is not recorded.
func (vc *ValkeyClient) ReserveCapture(ctx context.Context, userID, url, itemID string, window time.Duration) (string, error) {
	cmd := vc.Client.B().Set().
		Key(captureKey(userID, url)).
		Value(itemID).
		Nx().Get().
		Ex(window).
		Build()

	res := vc.doWithRetry(ctx, cmd, MAX_RETRIES)
	existing, err := res.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			// No prior reservation, ours went in.
			return "", nil
		}
		return "", fmt.Errorf("[ValkeyClient] capture reservation failed: %w", err)
	}
	return existing, nil
}

// ReleaseCapture drops a reservation, used when dispatch fails after the
// reservation was taken so a retry can capture again immediately.
func (vc *ValkeyClient) ReleaseCapture(ctx context.Context, userID, url string) error {
	cmd := vc.Client.B().Del().Key(captureKey(userID, url)).Build()
	if err := vc.doWithRetry(ctx, cmd, MAX_RETRIES).Error(); err != nil {
		return fmt.Errorf("[ValkeyClient] failed to release reservation: %w", err)
	}
	return nil
}

func (vc *ValkeyClient) doWithRetry(ctx context.Context, cmd valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.Client.Do(ctx, cmd)
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			return result
		}
		slog.Warn("[ValkeyClient] Command failed, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		time.Sleep(250 * time.Millisecond)
	}
	return result
}
