package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu    sync.Mutex
	types []string
	seen  []shared.DomainEvent
	fail  error
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, event)
	return h.fail
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) events() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.seen...)
}

func testEvent(eventType string) shared.DomainEvent {
	e := shared.NewBaseDomainEvent(eventType, "Bill", uuid.New(), uuid.New())
	return &e
}

func TestInMemoryEventBus_DispatchesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	paid := &recordingHandler{types: []string{"bill.paid"}}
	all := &recordingHandler{}
	bus.Subscribe(paid)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		testEvent("bill.paid"), testEvent("bill.corrected")))

	require.Len(t, paid.events(), 1)
	assert.Equal(t, "bill.paid", paid.events()[0].EventType())
	assert.Len(t, all.events(), 2)
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := &recordingHandler{fail: errors.New("boom")}
	healthy := &recordingHandler{}
	bus.Subscribe(failing, "bill.paid")
	bus.Subscribe(healthy, "bill.paid")

	require.NoError(t, bus.Publish(context.Background(), testEvent("bill.paid")))
	assert.Len(t, healthy.events(), 1)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := &recordingHandler{}
	bus.Subscribe(handler, "bill.paid")
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), testEvent("bill.paid")))
	assert.Empty(t, handler.events())
}

func TestAuditLogHandler_CoversEverything(t *testing.T) {
	handler := NewAuditLogHandler(zap.NewNop())
	assert.Empty(t, handler.EventTypes())
	assert.NoError(t, handler.Handle(context.Background(), testEvent("credit.drawn")))
}
