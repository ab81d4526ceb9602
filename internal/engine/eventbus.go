package engine

import (
	"context"
	"sync"

	"github.com/soyeon/reflow/internal/reflow"
)

// EventHandler receives every event on the bus. All executions share one
// bus; handlers filter by Event.ExecutionID.
type EventHandler func(reflow.Event)

// EventBus is a broadcast channel for execution lifecycle events.
type EventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

func (b *EventBus) Subscribe(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *EventBus) Publish(event reflow.Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}

// Channel returns a buffered subscription channel that closes when ctx is
// done. A full buffer drops events rather than blocking publishers.
func (b *EventBus) Channel(ctx context.Context, bufSize int) <-chan reflow.Event {
	ch := make(chan reflow.Event, bufSize)
	// The handler and the closer share a mutex so a publish racing with
	// cancellation can never send on the closed channel.
	var mu sync.Mutex
	closed := false
	b.Subscribe(func(e reflow.Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
	go func() {
		<-ctx.Done()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}
