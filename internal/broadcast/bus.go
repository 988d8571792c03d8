// Package broadcast fans out market-data updates to subscribers, per
// spec.md §4.6: one aggregated update per symbol per broadcast window,
// never blocking the publisher on a slow subscriber. Bus is implemented
// twice: LocalBus (in-process channel fan-out, the default and what
// tests use) and RedisBus (github.com/redis/go-redis/v9 pub/sub, for a
// multi-process deployment), grounded on the client construction idiom
// in the DimaJoyti-ai-agentic-crypto-browser pkg/database/redis.go
// example (redis.NewClient over parsed options).
package broadcast

import "context"

// Stream names the two independently-subscribable feeds spec.md §4.6
// names: "a subscriber declares symbols and which streams (trades
// and/or market-data). Unsubscribed streams are not sent."
const (
	StreamTrades     = "trades"
	StreamMarketData = "market_data"
)

// Bus publishes one already-serialized payload per symbol+stream. Never
// blocks the caller on a slow or unreachable subscriber -- a failed/slow
// publish is logged and dropped, counted via metrics, and never
// propagated as an error the publisher must retry.
type Bus interface {
	Publish(ctx context.Context, symbol, stream string, payload []byte)
	// Subscribe returns a channel of payloads for symbol+stream. Closing
	// the returned stop func unsubscribes and closes the channel.
	Subscribe(symbol, stream string) (ch <-chan []byte, stop func())
}
