package harvester

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/interfaces"
)

// memoryKV is an in-memory KeyValueStorage for tests
type memoryKV struct {
	mu    sync.Mutex
	items map[string]interfaces.KeyValuePair
}

func newMemoryKV() *memoryKV {
	return &memoryKV{items: make(map[string]interfaces.KeyValuePair)}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair, ok := m.items[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return pair.Value, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value string, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	pair, ok := m.items[key]
	if !ok {
		pair = interfaces.KeyValuePair{Key: key, CreatedAt: now}
	}
	pair.Value = value
	pair.Description = description
	pair.UpdatedAt = now
	m.items[key] = pair
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return interfaces.ErrKeyNotFound
	}
	delete(m.items, key)
	return nil
}

func (m *memoryKV) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pairs := make([]interfaces.KeyValuePair, 0, len(m.items))
	for _, pair := range m.items {
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (m *memoryKV) ListByPrefix(ctx context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pairs []interfaces.KeyValuePair
	for key, pair := range m.items {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

// captureBus records published events synchronously for assertions
type captureBus struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func newCaptureBus() *captureBus {
	return &captureBus{}
}

func (b *captureBus) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (b *captureBus) Publish(ctx context.Context, event interfaces.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) PublishSync(ctx context.Context, event interfaces.Event) error {
	return b.Publish(ctx, event)
}

func (b *captureBus) Close() error { return nil }

func (b *captureBus) captured(eventType interfaces.EventType) []interfaces.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []interfaces.Event
	for _, event := range b.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}
