package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

// walk consumes the opposite side of the book best-first, FIFO within
// each level, while priceOK admits the level's price and the taker
// still has remaining quantity. Every match is priced at the maker's
// (resting) price -- the no-trade-through guarantee of spec.md §4.4 --
// and appended to e.pendingTrades, which the caller (Submit) drains
// after the critical section. This generalizes the teacher's
// OrderBook.Match inline btree walk (internal/engine/orderbook.go in
// the teacher repo) into a side-agnostic helper shared by LIMIT,
// MARKET, IOC and the FOK execution phase.
func (e *Engine) walk(taker *common.Order, opposite *book.OrderBookSide, priceOK func(levelPrice decimal.Decimal) bool) {
	for taker.Remaining().GreaterThan(decimal.Zero) {
		price, _, ok := opposite.PeekBest()
		if !ok || !priceOK(price) {
			return
		}

		opposite.ConsumeBest(taker.Remaining(), func(resting *common.Order, qty decimal.Decimal) {
			e.emitTrade(taker, resting, qty)
			if resting.Remaining().IsZero() {
				resting.Status = common.Filled
				e.book.Forget(resting.UUID)
			} else {
				resting.Status = common.PartiallyFilled
			}
		})
	}
}

// emitTrade fills both sides of a match, computes fees and appends the
// resulting Trade to e.pendingTrades. Trade price is always the
// maker's (resting order's) price.
func (e *Engine) emitTrade(taker, maker *common.Order, qty decimal.Decimal) {
	taker.Fill(qty)
	maker.Fill(qty)

	price := *maker.Price
	notional := qty.Mul(price)

	e.tradeSeq++
	trade := &common.Trade{
		ID:            uuid.New().String(),
		Symbol:        e.symbol,
		Price:         price,
		Quantity:      qty,
		AggressorSide: taker.Side,
		MakerOrderID:  maker.UUID,
		TakerOrderID:  taker.UUID,
		Sequence:      e.tradeSeq,
		Timestamp:     e.now(),
		MakerFee:      notional.Mul(e.cfg.MakerFeeRate),
		TakerFee:      notional.Mul(e.cfg.TakerFeeRate),
	}
	e.pendingTrades = append(e.pendingTrades, trade)
}

// matchLimit implements spec.md §4.4 LIMIT: walk with a price bound,
// then rest any remainder at the order's own price.
func (e *Engine) matchLimit(o *common.Order) {
	opposite := e.book.Opposite(o.Side)
	bound := *o.Price

	e.walk(o, opposite, func(levelPrice decimal.Decimal) bool {
		if o.Side == common.Buy {
			return levelPrice.LessThanOrEqual(bound)
		}
		return levelPrice.GreaterThanOrEqual(bound)
	})

	if o.Remaining().GreaterThan(decimal.Zero) {
		if len(e.pendingTrades) > 0 {
			o.Status = common.PartiallyFilled
		} else {
			o.Status = common.Pending
		}
		_ = e.book.AddResting(o) // duplicate ids are rejected by Submit/Replay before reaching here
	} else {
		o.Status = common.Filled
	}
}

// matchMarket implements spec.md §4.4 MARKET: walk with no price bound
// until remaining is zero or the opposite side is empty. MARKET orders
// never rest; any unfilled residual is cancelled.
func (e *Engine) matchMarket(o *common.Order) {
	opposite := e.book.Opposite(o.Side)
	e.walk(o, opposite, func(decimal.Decimal) bool { return true })

	if o.Remaining().IsZero() {
		o.Status = common.Filled
	} else if len(e.pendingTrades) > 0 {
		o.Status = common.PartiallyFilled
	} else {
		o.Status = common.Cancelled
	}
}

// matchIOC implements spec.md §4.4 IOC: LIMIT-shaped walk if a price is
// given, MARKET-shaped walk otherwise; any residual is cancelled rather
// than rested.
func (e *Engine) matchIOC(o *common.Order) {
	opposite := e.book.Opposite(o.Side)

	if o.Price != nil {
		bound := *o.Price
		e.walk(o, opposite, func(levelPrice decimal.Decimal) bool {
			if o.Side == common.Buy {
				return levelPrice.LessThanOrEqual(bound)
			}
			return levelPrice.GreaterThanOrEqual(bound)
		})
	} else {
		e.walk(o, opposite, func(decimal.Decimal) bool { return true })
	}

	if o.Remaining().IsZero() {
		o.Status = common.Filled
	} else if len(e.pendingTrades) > 0 {
		o.Status = common.PartiallyFilled
	} else {
		o.Status = common.Cancelled
	}
}

// matchFOK implements spec.md §4.4 FOK: a feasibility pre-check over
// the opposite side's aggregate depth (constrained by price, if any)
// followed by an execution walk that -- by construction of the check --
// always fills completely. Both phases run under the caller's already-
// held symbol lock, so no external observer ever sees a partial FOK
// state.
func (e *Engine) matchFOK(o *common.Order) {
	opposite := e.book.Opposite(o.Side)

	if !e.fokFeasible(o, opposite) {
		o.Status = common.Cancelled
		return
	}

	if o.Price != nil {
		bound := *o.Price
		e.walk(o, opposite, func(levelPrice decimal.Decimal) bool {
			if o.Side == common.Buy {
				return levelPrice.LessThanOrEqual(bound)
			}
			return levelPrice.GreaterThanOrEqual(bound)
		})
	} else {
		e.walk(o, opposite, func(decimal.Decimal) bool { return true })
	}

	// The feasibility check guarantees this, but assert it rather than
	// silently rest a FOK remainder -- FOK orders never rest.
	if o.Remaining().GreaterThan(decimal.Zero) {
		o.Status = common.Cancelled
		e.invariantViolation("FOK executed with residual quantity after a feasible pre-check")
		return
	}
	o.Status = common.Filled
}

// fokFeasible sums the opposite side's aggregate level quantity,
// best-first, constrained by bound if the FOK carries a price, stopping
// as soon as the running total reaches the order's quantity.
func (e *Engine) fokFeasible(o *common.Order, opposite *book.OrderBookSide) bool {
	var bound *decimal.Decimal
	if o.Price != nil {
		b := *o.Price
		bound = &b
	}

	need := o.Quantity
	have := decimal.Zero
	for _, level := range opposite.Levels() {
		if bound != nil {
			if o.Side == common.Buy && level.Price.GreaterThan(*bound) {
				break
			}
			if o.Side == common.Sell && level.Price.LessThan(*bound) {
				break
			}
		}
		have = have.Add(level.TotalQuantity)
		if have.GreaterThanOrEqual(need) {
			return true
		}
	}
	return false
}
