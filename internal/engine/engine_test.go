package engine_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/common"
	"fenrir/internal/engine"
)

func testConfig() engine.Config {
	return engine.Config{
		MaxOrderQuantity:   decimal.RequireFromString("1000000"),
		MaxOrderPrice:      decimal.RequireFromString("10000000"),
		MakerFeeRate:       decimal.RequireFromString("0.001"),
		TakerFeeRate:       decimal.RequireFromString("0.0015"),
		TradeHistoryCap:    100,
		DepthLevelsDefault: 10,
	}
}

func newTestEngine() *engine.Engine {
	return engine.New("BTC-USDT", testConfig(), nil, nil, zerolog.Nop())
}

func limitOrder(id string, side common.Side, price, qty string) *common.Order {
	p := decimal.RequireFromString(price)
	return &common.Order{UUID: id, Symbol: "BTC-USDT", Side: side, Type: common.LimitOrder, Price: &p, Quantity: decimal.RequireFromString(qty)}
}

func marketOrder(id string, side common.Side, qty string) *common.Order {
	return &common.Order{UUID: id, Symbol: "BTC-USDT", Side: side, Type: common.MarketOrder, Quantity: decimal.RequireFromString(qty)}
}

func TestEngine_SimpleLimitMatch(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(limitOrder("maker", common.Sell, "100", "10"))
	require.NoError(t, err)

	result, err := e.Submit(limitOrder("taker", common.Buy, "100", "10"))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.True(t, trade.Price.Equal(decimal.RequireFromString("100")), "trade prices at the maker's price")
	assert.True(t, trade.Quantity.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, common.Filled, result.Order.Status)
}

func TestEngine_WalksMultipleLevelsNoTradeThrough(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(limitOrder("ask-1", common.Sell, "100", "5"))
	require.NoError(t, err)
	_, err = e.Submit(limitOrder("ask-2", common.Sell, "101", "5"))
	require.NoError(t, err)

	result, err := e.Submit(limitOrder("taker", common.Buy, "101", "10"))
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.True(t, result.Trades[0].Price.Equal(decimal.RequireFromString("100")))
	assert.True(t, result.Trades[1].Price.Equal(decimal.RequireFromString("101")))
	assert.Equal(t, common.Filled, result.Order.Status)
}

func TestEngine_LimitRestsWhenNoCross(t *testing.T) {
	e := newTestEngine()

	result, err := e.Submit(limitOrder("resting", common.Buy, "99", "10"))
	require.NoError(t, err)
	assert.Equal(t, common.Pending, result.Order.Status)
	assert.Empty(t, result.Trades)

	bbo := e.BBO()
	require.NotNil(t, bbo.BestBid)
	assert.True(t, bbo.BestBid.Equal(decimal.RequireFromString("99")))
}

func TestEngine_IOCCancelsResidual(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(limitOrder("ask", common.Sell, "100", "5"))
	require.NoError(t, err)

	ioc := &common.Order{UUID: "ioc", Symbol: "BTC-USDT", Side: common.Buy, Type: common.IOCOrder, Quantity: decimal.RequireFromString("10")}
	result, err := e.Submit(ioc)
	require.NoError(t, err)

	assert.Equal(t, common.PartiallyFilled, result.Order.Status)
	assert.True(t, result.Order.FilledQuantity.Equal(decimal.RequireFromString("5")))

	// IOC never rests -- book must be empty on the buy side.
	bbo := e.BBO()
	assert.Nil(t, bbo.BestBid)
}

func TestEngine_FOKInfeasibleCancelsWithNoTrades(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(limitOrder("ask", common.Sell, "100", "5"))
	require.NoError(t, err)

	fok := &common.Order{UUID: "fok", Symbol: "BTC-USDT", Side: common.Buy, Type: common.FOKOrder, Quantity: decimal.RequireFromString("10")}
	result, err := e.Submit(fok)
	require.NoError(t, err)

	assert.Equal(t, common.Cancelled, result.Order.Status)
	assert.Empty(t, result.Trades)

	// The resting ask must be untouched.
	bbo := e.BBO()
	require.NotNil(t, bbo.BestAsk)
	assert.True(t, bbo.BestAskQty.Equal(decimal.RequireFromString("5")))
}

func TestEngine_FOKFeasibleFillsCompletely(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(limitOrder("ask-1", common.Sell, "100", "5"))
	require.NoError(t, err)
	_, err = e.Submit(limitOrder("ask-2", common.Sell, "101", "10"))
	require.NoError(t, err)

	fok := &common.Order{UUID: "fok", Symbol: "BTC-USDT", Side: common.Buy, Type: common.FOKOrder, Quantity: decimal.RequireFromString("10")}
	result, err := e.Submit(fok)
	require.NoError(t, err)

	assert.Equal(t, common.Filled, result.Order.Status)
	require.Len(t, result.Trades, 2)
}

func TestEngine_MarketOrderNeverRests(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(limitOrder("ask", common.Sell, "100", "5"))
	require.NoError(t, err)

	result, err := e.Submit(marketOrder("market", common.Buy, "10"))
	require.NoError(t, err)

	assert.Equal(t, common.PartiallyFilled, result.Order.Status)
	bbo := e.BBO()
	assert.Nil(t, bbo.BestBid)
}

func TestEngine_CancelThenMatchSkipsCancelledOrder(t *testing.T) {
	e := newTestEngine()

	_, err := e.Submit(limitOrder("ask-1", common.Sell, "100", "5"))
	require.NoError(t, err)
	_, err = e.Submit(limitOrder("ask-2", common.Sell, "100", "5"))
	require.NoError(t, err)

	require.NoError(t, e.Cancel("ask-1"))

	result, err := e.Submit(limitOrder("taker", common.Buy, "100", "5"))
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "ask-2", result.Trades[0].MakerOrderID)
}

func TestEngine_DuplicateOrderIDRejected(t *testing.T) {
	e := newTestEngine()
	_, err := e.Submit(limitOrder("dup", common.Buy, "99", "10"))
	require.NoError(t, err)

	_, err = e.Submit(limitOrder("dup", common.Buy, "98", "10"))
	assert.ErrorIs(t, err, engine.ErrDuplicateOrder)
}

func TestEngine_RejectsInvalidQuantity(t *testing.T) {
	e := newTestEngine()
	zero := &common.Order{UUID: "bad", Symbol: "BTC-USDT", Side: common.Buy, Type: common.MarketOrder, Quantity: decimal.Zero}
	result, err := e.Submit(zero)
	assert.ErrorIs(t, err, engine.ErrInvalidQuantity)
	assert.Equal(t, common.Rejected, result.Order.Status)
}

func TestEngine_DirtyFlagTracksMutation(t *testing.T) {
	e := newTestEngine()
	assert.False(t, e.Dirty(), "fresh engine has nothing to report")

	_, err := e.Submit(limitOrder("o1", common.Buy, "99", "10"))
	require.NoError(t, err)

	assert.True(t, e.Dirty(), "first Dirty() call after a mutation reports true")
	assert.False(t, e.Dirty(), "Dirty() clears the flag once read")
}

func TestEngine_ReplayReconstructsRestingBook(t *testing.T) {
	e := newTestEngine()

	resting := limitOrder("resting", common.Buy, "99", "10")
	resting.Sequence = 1
	e.Replay(resting)

	bbo := e.BBO()
	require.NotNil(t, bbo.BestBid)
	assert.True(t, bbo.BestBid.Equal(decimal.RequireFromString("99")))

	// A duplicate replay of the same id is a no-op, not a second order.
	e.Replay(resting)
	assert.True(t, e.BBO().BestBidQty.Equal(decimal.RequireFromString("10")))
}
