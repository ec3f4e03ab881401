package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "citizenportal/pkg/domain"
)

// Store persists audit events. It is append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

// Publisher captures structured audit events. Events are persisted through
// the store and, when a stream is attached, handed to the Worker without
// blocking the caller.
type Publisher struct {
	store  Store
	stream chan<- Event
	logger *slog.Logger
}

type PublisherOption func(*Publisher)

// WithStream forwards every persisted event to ch. A full channel drops the
// event from the stream only; the stored copy is kept.
func WithStream(ch chan<- Event) PublisherOption {
	return func(p *Publisher) {
		p.stream = ch
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.stream == nil {
		return nil
	}
	select {
	case p.stream <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit stream full, event not forwarded",
				"event", event.Action,
				"event_id", event.ID.String(),
			)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}
