package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Publisher and Subscriber for single-binary deployments without
// Redis. Handlers run on the publishing goroutine and must not block.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]*memorySub
}

type memorySub struct {
	ctx     context.Context
	handler func(Event)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, stream string, event Event) error {
	b.mu.RLock()
	subs := append([]*memorySub(nil), b.handlers[stream]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.ctx.Err() == nil {
			s.handler(event)
		}
	}
	return nil
}

// Subscribe registers handler until ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	sub := &memorySub{ctx: ctx, handler: handler}
	b.mu.Lock()
	b.handlers[stream] = append(b.handlers[stream], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[stream]
		for i, s := range subs {
			if s == sub {
				b.handlers[stream] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}()
	return nil
}
