package audit

import (
	"context"
	"log/slog"
	"time"
)

const drainTimeout = 5 * time.Second

// Sink receives recorded entries for downstream consumers (SIEM, Kafka).
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}

// Forwarder consumes recorded entries from a buffered inbox and publishes
// them to a sink, keeping slow sinks off the request path. Delivery is best
// effort: a full inbox drops the entry with a warning.
type Forwarder struct {
	sink   Sink
	inbox  chan Entry
	logger *slog.Logger
}

func NewForwarder(sink Sink, buffer int, logger *slog.Logger) *Forwarder {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{sink: sink, inbox: make(chan Entry, buffer), logger: logger}
}

// Enqueue hands an entry to the forwarder without blocking.
func (f *Forwarder) Enqueue(ctx context.Context, entry Entry) {
	select {
	case f.inbox <- entry:
	default:
		f.logger.WarnContext(ctx, "audit forwarder inbox full, dropping entry",
			"action", entry.Action,
			"resource_id", entry.TargetID,
		)
	}
}

// Run publishes entries until ctx is done, then drains what is already queued.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return ctx.Err()
		case entry := <-f.inbox:
			f.publish(ctx, entry)
		}
	}
}

func (f *Forwarder) drain() {
	// The run context is already canceled; give the sink a bounded fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case entry := <-f.inbox:
			f.publish(ctx, entry)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, entry Entry) {
	if err := f.sink.Publish(ctx, entry); err != nil {
		f.logger.WarnContext(ctx, "failed to forward audit entry",
			"action", entry.Action,
			"resource_id", entry.TargetID,
			"error", err,
		)
	}
}
