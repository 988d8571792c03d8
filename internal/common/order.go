package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the unit of admission into an engine. Identity (UUID, Symbol,
// Side, Type, Price, Quantity, Sequence) is immutable after admission;
// FilledQuantity and Status mutate as the order is matched.
type Order struct {
	UUID           string           // order tracked uuid, assigned on admission
	Symbol         string           // must match the owning engine's symbol
	Side           Side             //
	Type           OrderType        //
	Price          *decimal.Decimal // required for LIMIT; optional for IOC; nil for MARKET/FOK-market
	Quantity       decimal.Decimal  // original requested quantity
	FilledQuantity decimal.Decimal  // monotonically non-decreasing, <= Quantity
	Status         Status           //
	Sequence       uint64           // monotonic per-symbol sequence, assigned at admission
	AdmittedAt     time.Time        // wall-clock of admission, display only
	UserID         string           // opaque, optional
	ClientOrderID  string           // optional, echoed back in the response
}

// Remaining returns Quantity - FilledQuantity, which is always >= 0.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Fill records a partial or full fill of qty against this order.
// Status is set separately by the matching engine, since LIMIT/MARKET/
// IOC/FOK decide PENDING vs PARTIALLY_FILLED vs FILLED vs CANCELLED
// differently once a match pass completes.
func (o *Order) Fill(qty decimal.Decimal) {
	o.FilledQuantity = o.FilledQuantity.Add(qty)
}

func (o Order) String() string {
	price := "market"
	if o.Price != nil {
		price = o.Price.String()
	}
	return fmt.Sprintf(
		"Order{uuid=%s symbol=%s side=%v type=%v price=%s qty=%s filled=%s status=%v seq=%d owner=%s}",
		o.UUID, o.Symbol, o.Side, o.Type, price, o.Quantity, o.FilledQuantity, o.Status, o.Sequence, o.UserID,
	)
}
