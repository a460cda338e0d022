package watch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"casevault/internal/deletion"
)

const (
	defaultChannel    = "casevault:deletion:events"
	defaultMinBackoff = 100 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// RedisRelay carries committed transitions between instances over Redis
// pub/sub. Notify publishes; Run delivers every received transition, including
// this instance's own, to the local Hub. When publishing fails the transition
// is delivered locally so same-instance waiters still wake.
type RedisRelay struct {
	client     *redis.Client
	hub        *Hub
	channel    string
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

type RelayOption func(*RedisRelay)

// WithResubscribeBackoff bounds the wait between subscription attempts.
func WithResubscribeBackoff(minWait, maxWait time.Duration) RelayOption {
	return func(r *RedisRelay) {
		if minWait > 0 {
			r.minBackoff = minWait
		}
		if maxWait >= r.minBackoff {
			r.maxBackoff = maxWait
		}
	}
}

func NewRedisRelay(client *redis.Client, hub *Hub, channel string, logger *slog.Logger, opts ...RelayOption) *RedisRelay {
	if channel == "" {
		channel = defaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &RedisRelay{
		client:     client,
		hub:        hub,
		channel:    channel,
		logger:     logger,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.maxBackoff = max(r.maxBackoff, r.minBackoff)
	return r
}

func (r *RedisRelay) Notify(ctx context.Context, state deletion.State) {
	data, err := json.Marshal(state)
	if err == nil {
		err = r.client.Publish(ctx, r.channel, data).Err()
	}
	if err != nil {
		r.logger.WarnContext(ctx, "failed to publish deletion transition",
			"resource_id", state.ResourceID,
			"phase", state.Phase,
			"error", err,
		)
		r.hub.Notify(ctx, state)
	}
}

// Run feeds the hub until ctx is done. A dropped or failed subscription is
// retried with exponential backoff rather than ending the relay.
func (r *RedisRelay) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.minBackoff
	b.MaxInterval = r.maxBackoff
	b.MaxElapsedTime = 0

	for {
		err := r.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		r.logger.WarnContext(ctx, "deletion relay subscription lost, resubscribing",
			"error", err,
			"retry_in", wait,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// listen holds one subscription until it fails or ctx is done. subscribed is
// called once Redis confirms the subscription.
func (r *RedisRelay) listen(ctx context.Context, subscribed func()) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	subscribed()
	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("deletion relay subscription closed")
			}
			var state deletion.State
			if err := json.Unmarshal([]byte(msg.Payload), &state); err != nil {
				r.logger.WarnContext(ctx, "dropping malformed deletion transition", "error", err)
				continue
			}
			r.hub.Notify(ctx, state)
		}
	}
}
