package engine

import "fenrir/internal/common"

// validate applies the rejection rules of spec.md §4.3. It runs before
// the symbol lock is taken and never mutates engine state; a non-nil
// error means the caller should mark the order REJECTED and stop.
func (e *Engine) validate(o *common.Order) error {
	if o.Symbol != e.symbol {
		return ErrUnknownSymbol
	}

	if o.Quantity.Sign() <= 0 || o.Quantity.GreaterThan(e.cfg.MaxOrderQuantity) {
		return ErrInvalidQuantity
	}

	switch o.Type {
	case common.LimitOrder:
		if o.Price == nil || o.Price.Sign() <= 0 {
			return ErrInvalidPrice
		}
	case common.MarketOrder:
		// A price on a MARKET order is ignored, not an error.
	case common.IOCOrder:
		// Price is optional: present behaves like LIMIT, absent like MARKET.
	case common.FOKOrder:
		// Same as IOC: price optional.
	default:
		return ErrUnknownOrderType
	}

	if o.Price != nil && o.Price.GreaterThan(e.cfg.MaxOrderPrice) {
		return ErrInvalidPrice
	}

	return nil
}
