package broadcast

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"fenrir/internal/metrics"
)

// LocalBus fans out in-process via per-subscriber buffered channels.
// This is the default bus (no Redis configured) and what tests use.
type LocalBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]chan []byte
	nextID      int
	bufferSize  int
	metrics     *metrics.Registry
	log         zerolog.Logger
}

func channelKey(symbol, stream string) string { return symbol + ":" + stream }

// NewLocalBus builds a LocalBus whose per-subscriber channel holds
// bufferSize pending payloads before a slow subscriber starts dropping
// messages.
func NewLocalBus(bufferSize int, m *metrics.Registry, logger zerolog.Logger) *LocalBus {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &LocalBus{
		subscribers: make(map[string]map[int]chan []byte),
		bufferSize:  bufferSize,
		metrics:     m,
		log:         logger.With().Str("component", "broadcast.local_bus").Logger(),
	}
}

// Publish implements Bus.
func (b *LocalBus) Publish(_ context.Context, symbol, stream string, payload []byte) {
	key := channelKey(symbol, stream)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers[key] {
		select {
		case ch <- payload:
		default:
			if b.metrics != nil {
				b.metrics.BroadcastDropped.WithLabelValues(symbol).Inc()
			}
			b.log.Warn().Str("symbol", symbol).Str("stream", stream).Msg("subscriber channel full, dropping update")
		}
	}
}

// Subscribe implements Bus.
func (b *LocalBus) Subscribe(symbol, stream string) (<-chan []byte, func()) {
	key := channelKey(symbol, stream)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[key] == nil {
		b.subscribers[key] = make(map[int]chan []byte)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan []byte, b.bufferSize)
	b.subscribers[key][id] = ch

	stop := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subscribers[key]; ok {
			delete(set, id)
		}
		close(ch)
	}
	return ch, stop
}
