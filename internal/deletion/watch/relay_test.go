package watch_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casevault/internal/deletion"
	"casevault/internal/deletion/watch"
)

// unreachableRedis points at a port nothing listens on, so every command
// fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRelay_RunKeepsRetryingUntilCancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := watch.NewRedisRelay(unreachableRedis(t), watch.NewHub(), "test:deletion:retry", logger,
		watch.WithResubscribeBackoff(10*time.Millisecond, 20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := relay.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond, "Run must not give up on the first failed subscribe")
}

func TestRedisRelay_NotifyFallsBackToLocalHub(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := watch.NewHub()
	relay := watch.NewRedisRelay(unreachableRedis(t), hub, "", logger)

	updates, unsubscribe := hub.Subscribe(42)
	defer unsubscribe()

	want := deletion.State{ResourceID: 42, Phase: deletion.PhaseFailed, Message: "Failed to delete evidence ID 42."}
	relay.Notify(context.Background(), want)

	select {
	case got := <-updates:
		assert.Equal(t, want.Phase, got.Phase)
		assert.Equal(t, want.Message, got.Message)
	case <-time.After(time.Second):
		t.Fatal("local waiter was not woken when publishing failed")
	}
}
