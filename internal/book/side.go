package book

import (
	"fenrir/internal/common"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// OrderBookSide is one side (bids or asks) of a symbol's book: an
// ordered map from price to PriceLevel plus an index from order id to
// its level, generalizing the teacher's engine.OrderBook btree usage
// (internal/engine/orderbook.go) into a side-agnostic, reusable type.
type OrderBookSide struct {
	levels *btree.BTreeG[*PriceLevel]
	index  map[string]*PriceLevel // order_id -> its resting PriceLevel
	best   bool                   // true for bids (descending), false for asks (ascending)
}

// NewSide constructs a side. descending selects bid ordering (best =
// maximum price); ascending selects ask ordering (best = minimum price).
func NewSide(descending bool) *OrderBookSide {
	var less func(a, b *PriceLevel) bool
	if descending {
		less = func(a, b *PriceLevel) bool { return a.Price.GreaterThan(b.Price) }
	} else {
		less = func(a, b *PriceLevel) bool { return a.Price.LessThan(b.Price) }
	}
	return &OrderBookSide{
		levels: btree.NewBTreeG(less),
		index:  make(map[string]*PriceLevel),
		best:   descending,
	}
}

// Add inserts order into the FIFO queue of its price level, creating
// the level if it does not yet exist. O(log n).
func (s *OrderBookSide) Add(o *common.Order) {
	key := newPriceLevel(*o.Price)
	level, ok := s.levels.GetMut(key)
	if !ok {
		level = newPriceLevel(*o.Price)
		s.levels.Set(level)
	}
	level.append(o)
	s.index[o.UUID] = level
}

// PeekBest returns the best-priced level's price and aggregate
// quantity, and false if the side is empty. O(log n): the btree descends
// to its leftmost level.
func (s *OrderBookSide) PeekBest() (decimal.Decimal, decimal.Decimal, bool) {
	level, ok := s.levels.Min()
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	return level.Price, level.TotalQuantity, true
}

// bestLevel returns the best-priced level itself, or nil.
func (s *OrderBookSide) bestLevel() *PriceLevel {
	level, ok := s.levels.MinMut()
	if !ok {
		return nil
	}
	return level
}

// OrdersAtBest returns the FIFO queue at the best price, in insertion
// (time-priority) order, skipping none -- every order here is live by
// construction since fully-filled orders are evicted immediately by
// ConsumeBest. The returned slice must not be retained across mutations
// of the side.
func (s *OrderBookSide) OrdersAtBest() []*common.Order {
	level := s.bestLevel()
	if level == nil {
		return nil
	}
	return level.Orders
}

// ConsumeBest walks the FIFO queue at the best price head-first,
// calling onMatch for each resting order touched until either want is
// exhausted or the level itself is. onMatch is responsible for calling
// Fill on both the taker and the resting order and for emitting the
// trade; ConsumeBest only owns book bookkeeping (index, level totals,
// level destruction). It returns the quantity actually consumed.
//
// This is the one place PriceLevel.Orders is mutated during matching,
// keeping invariants (a)-(c) of §4.1 -- every live order in exactly one
// level, level totals correct, no empty levels -- local to this package.
func (s *OrderBookSide) ConsumeBest(want decimal.Decimal, onMatch func(resting *common.Order, qty decimal.Decimal)) decimal.Decimal {
	level := s.bestLevel()
	if level == nil {
		return decimal.Zero
	}

	consumed := decimal.Zero
	for want.GreaterThan(decimal.Zero) && len(level.Orders) > 0 {
		resting := level.Orders[0]
		qty := decimal.Min(want, resting.Remaining())

		onMatch(resting, qty)

		want = want.Sub(qty)
		consumed = consumed.Add(qty)

		if resting.Remaining().IsZero() {
			level.removeAt(0)
			delete(s.index, resting.UUID)
		}
	}
	level.recompute()
	if level.empty() {
		s.levels.Delete(level)
	}
	return consumed
}

// Remove takes a resting order off the book entirely (used by explicit
// cancellation, distinct from ConsumeBest which removes orders as they
// are filled).
func (s *OrderBookSide) Remove(orderID string) bool {
	level, ok := s.index[orderID]
	if !ok {
		return false
	}
	for i, o := range level.Orders {
		if o.UUID == orderID {
			level.removeAt(i)
			level.recompute()
			delete(s.index, orderID)
			if level.empty() {
				s.levels.Delete(level)
			}
			return true
		}
	}
	return false
}

// Has reports whether orderID currently rests on this side.
func (s *OrderBookSide) Has(orderID string) bool {
	_, ok := s.index[orderID]
	return ok
}

// Depth returns up to n (price, total quantity) pairs, best-first.
func (s *OrderBookSide) Depth(n int) []DepthLevel {
	out := make([]DepthLevel, 0, n)
	s.levels.Scan(func(level *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, DepthLevel{Price: level.Price, Quantity: level.TotalQuantity})
		return true
	})
	return out
}

// Levels returns every live PriceLevel, best-first. Used by snapshot
// serialization and tests; callers must not mutate the returned slice's
// PriceLevel contents concurrently with book mutation.
func (s *OrderBookSide) Levels() []*PriceLevel {
	out := make([]*PriceLevel, 0, s.levels.Len())
	s.levels.Scan(func(level *PriceLevel) bool {
		out = append(out, level)
		return true
	})
	return out
}

// DepthLevel is one row of an L2 depth view: a price and the aggregate
// quantity resting at it.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}
