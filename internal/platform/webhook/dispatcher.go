package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Event is the payload posted by the payment provider.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

// Handler processes a single event type.
type Handler func(ctx context.Context, evt Event) error

// Dispatcher routes events to handlers by event type. Unknown types are
// acknowledged and logged, not failed, so the provider does not retry them.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   zerolog.Logger
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// On registers a handler for an event type, replacing any previous handler.
func (d *Dispatcher) On(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// Dispatch runs the handler registered for evt.Type.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	d.mu.RLock()
	h, ok := d.handlers[evt.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.Info().
			Str("event_id", evt.ID).
			Str("event_type", evt.Type).
			Msg("webhook: no handler for event type, acknowledging")
		return nil
	}
	if err := h(ctx, evt); err != nil {
		return fmt.Errorf("handle %s event %s: %w", evt.Type, evt.ID, err)
	}
	return nil
}
