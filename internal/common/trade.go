package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is immutable once emitted. Price is always the maker's (resting)
// order price -- that is the no-trade-through guarantee: the taker never
// pays worse than any resting order it consumed.
type Trade struct {
	ID            string
	Symbol        string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	AggressorSide Side   // side of the incoming (taker) order
	MakerOrderID  string // resting order consumed
	TakerOrderID  string // incoming order
	Sequence      uint64
	Timestamp     time.Time
	MakerFee      decimal.Decimal
	TakerFee      decimal.Decimal
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s symbol=%s price=%s qty=%s aggressor=%v maker=%s taker=%s seq=%d}",
		t.ID, t.Symbol, t.Price, t.Quantity, t.AggressorSide, t.MakerOrderID, t.TakerOrderID, t.Sequence,
	)
}
