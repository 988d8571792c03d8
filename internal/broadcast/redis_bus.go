package broadcast

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fenrir/internal/metrics"
)

// RedisBus fans out market-data and trade payloads via a Redis pub/sub
// channel per symbol and stream, for a multi-process deployment where the
// ingress gateway and a separate market-data consumer don't share a
// process.
type RedisBus struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Registry
	log     zerolog.Logger
}

// NewRedisBus connects to addr (host:port) and returns a RedisBus.
// Channel names are prefix + ":" + symbol + ":" + stream.
func NewRedisBus(addr, password string, db int, prefix string, m *metrics.Registry, logger zerolog.Logger) *RedisBus {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisBus{client: client, prefix: prefix, metrics: m, log: logger.With().Str("component", "broadcast.redis_bus").Logger()}
}

func (b *RedisBus) channel(symbol, stream string) string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, symbol, stream)
}

// Publish implements Bus. A Redis error is logged and counted, never
// propagated -- the in-memory engine state is authoritative regardless
// of whether any subscriber received this update.
func (b *RedisBus) Publish(ctx context.Context, symbol, stream string, payload []byte) {
	if err := b.client.Publish(ctx, b.channel(symbol, stream), payload).Err(); err != nil {
		if b.metrics != nil {
			b.metrics.BroadcastDropped.WithLabelValues(symbol).Inc()
		}
		b.log.Warn().Err(err).Str("symbol", symbol).Str("stream", stream).Msg("redis publish failed, dropping update")
	}
}

// Subscribe implements Bus, adapting redis.PubSub's channel into Bus's
// plain <-chan []byte shape.
func (b *RedisBus) Subscribe(symbol, stream string) (<-chan []byte, func()) {
	sub := b.client.Subscribe(context.Background(), b.channel(symbol, stream))
	msgs := sub.Channel()

	out := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					close(out)
					return
				}
				select {
				case out <- []byte(m.Payload):
				default:
					if b.metrics != nil {
						b.metrics.BroadcastDropped.WithLabelValues(symbol).Inc()
					}
				}
			}
		}
	}()

	stop := func() {
		close(done)
		sub.Close()
	}
	return out, stop
}

// Close releases the underlying Redis connection.
func (b *RedisBus) Close() error { return b.client.Close() }
