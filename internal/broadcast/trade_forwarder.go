package broadcast

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/common"
	"fenrir/internal/wire"
)

// TradeForwarder drains the engines' shared trade stream and publishes
// each fill individually on the trades stream, per spec.md §4.6: "On
// each trade: emit a trade record (as the matching step queues it)."
// Unlike market-data updates, trades are never coalesced -- every fill
// is its own wire record.
type TradeForwarder struct {
	trades <-chan common.Trade
	bus    Bus
	log    zerolog.Logger
}

// NewTradeForwarder builds a TradeForwarder reading from trades and
// publishing to bus.
func NewTradeForwarder(trades <-chan common.Trade, bus Bus, logger zerolog.Logger) *TradeForwarder {
	return &TradeForwarder{trades: trades, bus: bus, log: logger.With().Str("component", "broadcast.trade_forwarder").Logger()}
}

// Start launches the forwarding loop under t.
func (f *TradeForwarder) Start(t *tomb.Tomb) {
	t.Go(func() error {
		return f.run(t)
	})
}

func (f *TradeForwarder) run(t *tomb.Tomb) error {
	ctx := context.Background()
	for {
		select {
		case <-t.Dying():
			return nil
		case tr, ok := <-f.trades:
			if !ok {
				return nil
			}
			record := wire.EncodeTradeBroadcast(tr)
			payload, err := json.Marshal(record)
			if err != nil {
				f.log.Error().Err(err).Str("trade_id", tr.ID).Msg("encoding trade broadcast failed")
				continue
			}
			f.bus.Publish(ctx, tr.Symbol, StreamTrades, payload)
		}
	}
}
