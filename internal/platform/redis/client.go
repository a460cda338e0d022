// Package redis opens the client that backs the shared deletion state store
// and the status event relay.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"casevault/internal/platform/config"
)

// Client is a connected go-redis client.
type Client struct {
	*redis.Client
}

// New dials and pings Redis. It returns a nil client when no URL is
// configured, in which case callers fall back to in-process state.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether Redis answers a ping; used by /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RegisterPoolMetrics exposes connection pool gauges read on each scrape.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) {
	stat := func(name, help string, read func(*redis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "casevault",
			Subsystem: "redis_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(c.PoolStats())) })
	}
	reg.MustRegister(
		stat("total_connections", "Connections currently held by the pool.", func(s *redis.PoolStats) uint32 { return s.TotalConns }),
		stat("idle_connections", "Idle connections in the pool.", func(s *redis.PoolStats) uint32 { return s.IdleConns }),
		stat("timeouts", "Times a caller waited past the pool timeout.", func(s *redis.PoolStats) uint32 { return s.Timeouts }),
	)
}
