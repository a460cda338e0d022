// Package kafka mirrors audit entries to a Kafka topic for downstream
// compliance consumers. The database remains the system of record.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"casevault/internal/audit"
)

// Sink publishes audit entries keyed by target id, so entries for one
// resource land on one partition in order.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer for topic.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka audit topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(s.client)
	resps, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// message is the JSON payload published per entry.
type message struct {
	ID        string `json:"id"`
	TargetID  int64  `json:"target_id"`
	ActorID   *int64 `json:"actor_id,omitempty"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func encode(entry audit.Entry) ([]byte, error) {
	msg := message{
		ID:        entry.ID.String(),
		TargetID:  int64(entry.TargetID),
		Action:    string(entry.Action),
		Details:   entry.Details,
		RequestID: entry.RequestID,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if entry.ActorID != nil {
		actor := int64(*entry.ActorID)
		msg.ActorID = &actor
	}
	return json.Marshal(msg)
}

// Publish implements audit.Sink.
func (s *Sink) Publish(ctx context.Context, entry audit.Entry) error {
	payload, err := encode(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(entry.TargetID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(entry.Action)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit entry: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *Sink) Close() {
	s.client.Close()
}
