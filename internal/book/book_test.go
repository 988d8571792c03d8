package book_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

func limitOrder(id string, side common.Side, price string, qty string) *common.Order {
	p := decimal.RequireFromString(price)
	return &common.Order{
		UUID:     id,
		Symbol:   "BTC-USDT",
		Side:     side,
		Type:     common.LimitOrder,
		Price:    &p,
		Quantity: decimal.RequireFromString(qty),
		Status:   common.Pending,
	}
}

func TestOrderBook_AddRestingSortsBestFirst(t *testing.T) {
	b := book.New("BTC-USDT")

	require.NoError(t, b.AddResting(limitOrder("bid-1", common.Buy, "99", "100")))
	require.NoError(t, b.AddResting(limitOrder("bid-2", common.Buy, "100", "50")))
	require.NoError(t, b.AddResting(limitOrder("ask-1", common.Sell, "101", "30")))
	require.NoError(t, b.AddResting(limitOrder("ask-2", common.Sell, "100.5", "20")))

	bbo := b.BBO()
	assert.True(t, bbo.BestBid.Equal(decimal.RequireFromString("100")))
	assert.True(t, bbo.BestAsk.Equal(decimal.RequireFromString("100.5")))
}

func TestOrderBook_DuplicateIDRejected(t *testing.T) {
	b := book.New("BTC-USDT")
	require.NoError(t, b.AddResting(limitOrder("dup", common.Buy, "99", "10")))
	err := b.AddResting(limitOrder("dup", common.Buy, "98", "10"))
	assert.ErrorIs(t, err, book.ErrDuplicateOrder)
}

func TestOrderBook_CancelIsIdempotent(t *testing.T) {
	b := book.New("BTC-USDT")
	require.NoError(t, b.AddResting(limitOrder("o1", common.Buy, "99", "10")))

	assert.True(t, b.Cancel("o1"))
	assert.False(t, b.Cancel("o1")) // already removed
	assert.False(t, b.Cancel("unknown"))
}

func TestOrderBookSide_ConsumeBestFIFO(t *testing.T) {
	side := book.NewSide(false) // ascending, ask side
	o1 := limitOrder("a1", common.Sell, "100", "10")
	o2 := limitOrder("a2", common.Sell, "100", "10")
	side.Add(o1)
	side.Add(o2)

	var touched []string
	consumed := side.ConsumeBest(decimal.RequireFromString("15"), func(resting *common.Order, qty decimal.Decimal) {
		resting.Fill(qty)
		touched = append(touched, resting.UUID)
	})

	assert.True(t, consumed.Equal(decimal.RequireFromString("15")))
	assert.Equal(t, []string{"a1", "a2"}, touched) // FIFO: a1 fully consumed before a2 touched
	assert.True(t, o1.Remaining().IsZero())
	assert.True(t, o2.Remaining().Equal(decimal.RequireFromString("5")))
}

func TestOrderBookSide_ConsumeBestDeletesEmptyLevel(t *testing.T) {
	side := book.NewSide(true) // descending, bid side
	side.Add(limitOrder("b1", common.Buy, "99", "10"))

	side.ConsumeBest(decimal.RequireFromString("10"), func(resting *common.Order, qty decimal.Decimal) {
		resting.Fill(qty)
	})

	_, _, ok := side.PeekBest()
	assert.False(t, ok, "level should be removed once its only order is fully consumed")
}

func TestOrderBook_Crossed(t *testing.T) {
	b := book.New("BTC-USDT")
	require.NoError(t, b.AddResting(limitOrder("bid", common.Buy, "101", "10")))
	require.NoError(t, b.AddResting(limitOrder("ask", common.Sell, "100", "10")))
	assert.True(t, b.Crossed())
}

func TestOrderBook_Depth(t *testing.T) {
	b := book.New("BTC-USDT")
	require.NoError(t, b.AddResting(limitOrder("bid-1", common.Buy, "99", "10")))
	require.NoError(t, b.AddResting(limitOrder("bid-2", common.Buy, "98", "20")))
	require.NoError(t, b.AddResting(limitOrder("ask-1", common.Sell, "100", "5")))

	d := b.Depth(1)
	require.Len(t, d.Bids, 1)
	assert.True(t, d.Bids[0].Price.Equal(decimal.RequireFromString("99")))
	require.Len(t, d.Asks, 1)
	assert.True(t, d.Asks[0].Quantity.Equal(decimal.RequireFromString("5")))
}
