package billing

import (
	"context"

	"github.com/propman/backend/internal/domain/shared"
)

// eventSink routes the domain events of committed aggregates to a
// publisher. Services publish only after the unit of work commits, so a
// rolled-back attempt never leaks events.
type eventSink struct {
	events shared.EventPublisher
}

// Option configures a billing application service.
type Option func(*eventSink)

// WithEventPublisher routes domain events raised by committed aggregates
// to pub. Without it the events are discarded after commit.
func WithEventPublisher(pub shared.EventPublisher) Option {
	return func(s *eventSink) { s.events = pub }
}

func (s *eventSink) apply(opts []Option) {
	for _, opt := range opts {
		opt(s)
	}
}

// publish drains the aggregates' pending events into the publisher.
// Publication is post-commit and best effort: handler trouble is the
// bus's problem, never the caller's.
func (s *eventSink) publish(ctx context.Context, aggregates ...shared.AggregateRoot) {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
	if s.events == nil || len(events) == 0 {
		return
	}
	_ = s.events.Publish(ctx, events...)
}
