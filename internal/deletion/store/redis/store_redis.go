package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"casevault/internal/deletion"
	"casevault/pkg/domain"
	"casevault/pkg/platform/sentinel"
)

const (
	keyPrefix = "deletion:state:"
	// maxAttempts bounds optimistic retries when a watched key changes under us.
	maxAttempts = 10
)

// RedisStore keeps deletion records in Redis so every instance sees the same
// workflow. Writes use WATCH/MULTI: a concurrent change to the key aborts the
// transaction and the callback is retried against the fresh value.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(id domain.ResourceID) string {
	return keyPrefix + id.String()
}

func (s *RedisStore) Get(ctx context.Context, id domain.ResourceID) (deletion.State, error) {
	return read(ctx, s.client, id)
}

func (s *RedisStore) Open(ctx context.Context, state deletion.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal deletion state: %w", err)
	}
	k := key(state.ResourceID)

	return s.watch(ctx, state.ResourceID, func(tx *redis.Tx) error {
		current, err := read(ctx, tx, state.ResourceID)
		switch {
		case err == nil && current.Phase == deletion.PhaseInProgress:
			return fmt.Errorf("deletion state %d: %w", state.ResourceID, sentinel.ErrInvalidState)
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			return nil
		})
		return err
	})
}

func (s *RedisStore) Transition(ctx context.Context, id domain.ResourceID, from deletion.Phase, mutate func(*deletion.State)) (deletion.State, error) {
	var result deletion.State
	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		current, err := read(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Phase != from {
			result = current
			return fmt.Errorf("deletion state %d is %s, not %s: %w", id, current.Phase, from, sentinel.ErrConflict)
		}

		next := current
		mutate(&next)
		next.ResourceID = id
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal deletion state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), data, 0)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	})
	return result, err
}

func (s *RedisStore) DeleteTerminal(ctx context.Context, id domain.ResourceID) error {
	return s.watch(ctx, id, func(tx *redis.Tx) error {
		current, err := read(ctx, tx, id)
		if err != nil {
			return err
		}
		if !current.Phase.IsTerminal() {
			return fmt.Errorf("deletion state %d: %w", id, sentinel.ErrInvalidState)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key(id))
			return nil
		})
		return err
	})
}

// watch runs fn under WATCH on the record key, retrying aborted transactions.
func (s *RedisStore) watch(ctx context.Context, id domain.ResourceID, fn func(*redis.Tx) error) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.client.Watch(ctx, fn, key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("deletion state %d: too much contention: %w", id, redis.TxFailedErr)
}

func read(ctx context.Context, c redis.Cmdable, id domain.ResourceID) (deletion.State, error) {
	data, err := c.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return deletion.State{}, fmt.Errorf("deletion state %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return deletion.State{}, fmt.Errorf("get deletion state: %w", err)
	}
	var state deletion.State
	if err := json.Unmarshal(data, &state); err != nil {
		return deletion.State{}, fmt.Errorf("unmarshal deletion state: %w", err)
	}
	return state, nil
}
