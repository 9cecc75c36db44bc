package registration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventName enumerates lifecycle notifications.
type EventName string

const (
	EventUserRegistered EventName = "user.registered"
	EventUserActivated  EventName = "user.activated"
)

// Event is published after a lifecycle step completes. Delivery is
// fire-and-forget, nothing in the core waits for subscribers.
type Event struct {
	ID         string         `json:"id"`
	Name       EventName      `json:"name"`
	AccountID  string         `json:"account_id"`
	Email      string         `json:"email"`
	Request    RequestInfo    `json:"request"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func newAccountEvent(name EventName, account *Account, req RequestInfo, at time.Time) Event {
	evt := Event{
		ID:         ulid.Make().String(),
		Name:       name,
		Request:    req,
		OccurredAt: at,
	}
	if account != nil {
		evt.AccountID = account.ID.String()
		evt.Email = account.Email
	}
	return evt
}

// EventBus publishes lifecycle events.
type EventBus interface {
	Emit(ctx context.Context, event Event) error
}

// EventBusFunc adapts a function to the EventBus interface.
type EventBusFunc func(ctx context.Context, event Event) error

// Emit implements EventBus.
func (f EventBusFunc) Emit(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopEventBus struct{}

func (noopEventBus) Emit(context.Context, Event) error {
	return nil
}

func normalizeEventBus(b EventBus) EventBus {
	if b == nil {
		return noopEventBus{}
	}
	return b
}

// MultiEventBus fans an event out to every bus and joins their errors.
type MultiEventBus []EventBus

// Emit implements EventBus.
func (m MultiEventBus) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, bus := range m {
		if bus == nil {
			continue
		}
		if err := bus.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EventHandler receives events from a Dispatcher.
type EventHandler func(ctx context.Context, event Event) error

// Dispatcher is an in-process EventBus. Subscribers are registered on the
// instance that gets injected into the services, never globally.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventName][]EventHandler
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[EventName][]EventHandler{}}
}

// Subscribe registers handler for name.
func (d *Dispatcher) Subscribe(name EventName, handler EventHandler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], handler)
}

// Emit calls every handler subscribed to the event name in order.
func (d *Dispatcher) Emit(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Name]...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
