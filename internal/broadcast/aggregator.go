package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/wire"
)

// Update is one symbol's market-data snapshot, coalesced by the
// Aggregator and serialized as the wire payload handed to Bus.Publish.
type Update struct {
	Symbol    string     `json:"symbol"`
	BBO       book.BBO   `json:"bbo"`
	Depth     book.Depth `json:"depth"`
	Timestamp time.Time  `json:"timestamp"`
}

// Aggregator coalesces pending per-symbol updates into at most one
// publish per symbol per window, per spec.md §4.6: "publishes an
// aggregated book update... at most once per broadcast window (default
// 5ms), even if many orders matched within that window."
type Aggregator struct {
	bus    Bus
	window time.Duration

	mu      sync.Mutex
	pending map[string]Update

	log zerolog.Logger
}

// NewAggregator builds an Aggregator publishing to bus every window.
func NewAggregator(bus Bus, window time.Duration, logger zerolog.Logger) *Aggregator {
	if window <= 0 {
		window = 5 * time.Millisecond
	}
	return &Aggregator{
		bus:     bus,
		window:  window,
		pending: make(map[string]Update),
		log:     logger.With().Str("component", "broadcast.aggregator").Logger(),
	}
}

// Set replaces the pending update for a symbol -- the latest observation
// within a window wins, earlier ones in the same window are coalesced
// away without ever being published.
func (a *Aggregator) Set(u Update) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[u.Symbol] = u
}

// Start launches the periodic flush loop under t.
func (a *Aggregator) Start(t *tomb.Tomb) {
	t.Go(func() error {
		return a.run(t)
	})
}

func (a *Aggregator) run(t *tomb.Tomb) error {
	ticker := time.NewTicker(a.window)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			a.flush()
		}
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.pending
	a.pending = make(map[string]Update, len(batch))
	a.mu.Unlock()

	ctx := context.Background()
	for symbol, u := range batch {
		record := wire.EncodeMarketData(symbol, u.BBO, u.Depth, u.Timestamp)
		payload, err := json.Marshal(record)
		if err != nil {
			a.log.Error().Err(err).Str("symbol", symbol).Msg("encoding market-data update failed")
			continue
		}
		a.bus.Publish(ctx, symbol, StreamMarketData, payload)
	}
}
