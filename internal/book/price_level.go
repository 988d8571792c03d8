// Package book implements the two-sided price-level order book: an
// ordered map of PriceLevels per side (bids descending, asks ascending)
// with FIFO queues for time priority, generalized from the teacher's
// tidwall/btree price-level map in its engine package into a reusable,
// engine-independent data structure.
package book

import (
	"fenrir/internal/common"

	"github.com/shopspring/decimal"
)

// PriceLevel holds every live resting order at a single price on one
// side of the book, in FIFO (admission) order.
type PriceLevel struct {
	Price         decimal.Decimal
	Orders        []*common.Order
	TotalQuantity decimal.Decimal
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price, TotalQuantity: decimal.Zero}
}

// append adds an order to the back of the FIFO queue and updates the
// level total.
func (l *PriceLevel) append(o *common.Order) {
	l.Orders = append(l.Orders, o)
	l.TotalQuantity = l.TotalQuantity.Add(o.Remaining())
}

// removeAt removes the order at index i, preserving FIFO order of the
// remainder.
func (l *PriceLevel) removeAt(i int) {
	l.Orders = append(l.Orders[:i], l.Orders[i+1:]...)
}

// empty reports whether the level has no live orders left.
func (l *PriceLevel) empty() bool {
	return len(l.Orders) == 0
}

// recompute rebuilds TotalQuantity from the live order set. Used by
// ConsumeBest, whose fills mutate orders' remaining quantities rather
// than the level's bookkeeping field directly, and by Remove.
func (l *PriceLevel) recompute() {
	total := decimal.Zero
	for _, o := range l.Orders {
		total = total.Add(o.Remaining())
	}
	l.TotalQuantity = total
}
