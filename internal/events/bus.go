package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// Handler consumes events
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Publisher is what services emit events through
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	name    string
	handler Handler
}

// Bus dispatches events to subscribers synchronously, in subscription order.
// Subscriber errors and panics are logged and never reach the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]subscription)}
}

// Subscribe registers handler under name for the given event types
func (b *Bus) Subscribe(name string, handler Handler, types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], subscription{name: name, handler: handler})
	}
	logger.Debug("Event handler subscribed", "handler", name, "types", fmt.Sprint(types))
}

// Publish delivers e to every subscriber of its type
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := b.dispatch(ctx, sub, e); err != nil {
			logger.Error("Event handler failed",
				"handler", sub.name,
				"event_type", string(e.Type),
				"event_id", e.ID,
				"entity_id", e.EntityID,
				"error", err,
			)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.handler.Handle(ctx, e)
}

var _ Publisher = (*Bus)(nil)
