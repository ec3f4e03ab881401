package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Sink receives events streamed off the publisher.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Worker consumes audit events from a channel and forwards them to a sink.
// Sink failures are logged and do not stop the worker; the events are
// already persisted by the publisher.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Publish(ctx, event); err != nil && w.logger != nil {
				w.logger.WarnContext(ctx, "failed to forward audit event",
					"event", event.Action,
					"event_id", event.ID.String(),
					"error", err,
				)
			}
		}
	}
}

// Producer is the subset of *kgo.Client used by KafkaSink.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink publishes events as JSON keyed by user ID so one user's events
// stay ordered within a partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

type wireEvent struct {
	ID            string `json:"id"`
	Action        string `json:"action"`
	UserID        string `json:"user_id,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
	ApplicationID int64  `json:"application_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Reason        string `json:"reason,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func (k *KafkaSink) Publish(ctx context.Context, event Event) error {
	payload := wireEvent{
		ID:            event.ID.String(),
		Action:        event.Action,
		ApplicationID: int64(event.ApplicationID),
		Status:        event.Status,
		Reason:        event.Reason,
		RequestID:     event.RequestID,
		Timestamp:     event.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if !event.UserID.IsNil() {
		payload.UserID = event.UserID.String()
	}
	if !event.ActorID.IsNil() {
		payload.ActorID = event.ActorID.String()
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(payload.UserID),
		Value: value,
	}
	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
