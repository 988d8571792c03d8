package book

import (
	"errors"

	"fenrir/internal/common"

	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateOrder is returned by AddResting when an order id is
	// already present in the book's index.
	ErrDuplicateOrder = errors.New("book: duplicate order id")
)

// OrderBook is the complete two-sided book for one symbol: bid side +
// ask side + an id index covering every resting order, generalizing the
// teacher's single-struct engine.OrderBook (which embedded both sides
// inline) into composition over OrderBookSide.
type OrderBook struct {
	Symbol string
	Bids   *OrderBookSide
	Asks   *OrderBookSide

	orders map[string]*common.Order // every resting order, by id
}

// New constructs an empty book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		Bids:   NewSide(true),
		Asks:   NewSide(false),
		orders: make(map[string]*common.Order),
	}
}

// Side returns the OrderBookSide an order of the given direction rests
// on (bids for Buy, asks for Sell).
func (b *OrderBook) Side(side common.Side) *OrderBookSide {
	if side == common.Buy {
		return b.Bids
	}
	return b.Asks
}

// Opposite returns the side opposite to side -- what a marketable order
// of that side would walk.
func (b *OrderBook) Opposite(side common.Side) *OrderBookSide {
	if side == common.Buy {
		return b.Asks
	}
	return b.Bids
}

// AddResting registers a LIMIT order with remaining > 0 into its side
// and the book's id index. Rejects duplicate ids.
func (b *OrderBook) AddResting(o *common.Order) error {
	if _, exists := b.orders[o.UUID]; exists {
		return ErrDuplicateOrder
	}
	b.Side(o.Side).Add(o)
	b.orders[o.UUID] = o
	return nil
}

// Cancel removes order_id from the book if present and not already
// terminal, marking it CANCELLED. Idempotent: returns false for unknown
// or already-terminal orders, with no state change.
func (b *OrderBook) Cancel(orderID string) bool {
	o, ok := b.orders[orderID]
	if !ok || o.Status.Terminal() {
		return false
	}
	b.Side(o.Side).Remove(orderID)
	delete(b.orders, orderID)
	o.Status = common.Cancelled
	return true
}

// Get returns the resting order for orderID, if any.
func (b *OrderBook) Get(orderID string) (*common.Order, bool) {
	o, ok := b.orders[orderID]
	return o, ok
}

// RestingOrders returns every order currently resting in the book: bids
// then asks, each side best price first and FIFO within a level, so that
// re-adding them in this order rebuilds the same queues. Used by the
// recovery snapshotter; never called from the matching hot path.
func (b *OrderBook) RestingOrders() []common.Order {
	out := make([]common.Order, 0, len(b.orders))
	for _, side := range []*OrderBookSide{b.Bids, b.Asks} {
		for _, level := range side.Levels() {
			for _, o := range level.Orders {
				out = append(out, *o)
			}
		}
	}
	return out
}

// Forget drops a fully-matched order from the id index once the
// matching engine has removed it from its side via ConsumeBest. Distinct
// from Cancel, which also flips Status and is reachable directly by
// order id.
func (b *OrderBook) Forget(orderID string) {
	delete(b.orders, orderID)
}

// BBO is the current best bid / best ask / spread. Spread is only
// meaningful (and only returned) when both sides are populated.
type BBO struct {
	BestBid    *decimal.Decimal
	BestBidQty *decimal.Decimal
	BestAsk    *decimal.Decimal
	BestAskQty *decimal.Decimal
	Spread     *decimal.Decimal
}

// BBO computes the current best bid/offer and spread, partial if only
// one side is populated.
func (b *OrderBook) BBO() BBO {
	var out BBO
	if price, qty, ok := b.Bids.PeekBest(); ok {
		out.BestBid, out.BestBidQty = &price, &qty
	}
	if price, qty, ok := b.Asks.PeekBest(); ok {
		out.BestAsk, out.BestAskQty = &price, &qty
	}
	if out.BestBid != nil && out.BestAsk != nil {
		spread := out.BestAsk.Sub(*out.BestBid)
		out.Spread = &spread
	}
	return out
}

// Depth is a snapshot of the top n levels per side, aggregated.
type Depth struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

// Depth returns the top n levels on each side, bids descending and
// asks ascending, limited to n.
func (b *OrderBook) Depth(n int) Depth {
	return Depth{
		Bids: b.Bids.Depth(n),
		Asks: b.Asks.Depth(n),
	}
}

// Crossed reports whether the book is currently crossed (best bid >=
// best ask). This must only ever be true transiently inside a matching
// pass; it is never externally observable between orders.
func (b *OrderBook) Crossed() bool {
	bbo := b.BBO()
	if bbo.BestBid == nil || bbo.BestAsk == nil {
		return false
	}
	return !bbo.BestBid.LessThan(*bbo.BestAsk)
}
