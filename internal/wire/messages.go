// Package wire is the JSON ingress/egress schema spec.md §6 defines:
// flat, transport-neutral JSON records tagged by a top-level "type"
// field (no enclosing envelope), generalizing the teacher's fixed-width
// binary frame format (internal/net/messages.go in the teacher repo --
// a MessageType tag byte-pair followed by a type-specific header) into
// JSON with the same dispatch-by-type shape. Decimal fields are carried
// as strings on the wire (shopspring/decimal parses from and renders to
// decimal strings exactly, unlike float64).
package wire

import "time"

// MessageType tags a message's "type" field, mirroring the teacher's
// net.MessageType enum but naming the values spec.md §6 specifies.
type MessageType string

const (
	TypeOrder        MessageType = "order"
	TypeCancel       MessageType = "cancel"
	TypeSubscribe    MessageType = "subscribe"
	TypeGetBBO       MessageType = "get_bbo"
	TypeGetOrderbook MessageType = "get_orderbook"
	TypeGetMetrics   MessageType = "get_metrics"

	TypeOrderResponse MessageType = "order_response"
	TypeTrade         MessageType = "trade"
	TypeMarketData    MessageType = "market_data"
	TypeError         MessageType = "error"
)

// NewOrderRequest is the ingress payload for TypeOrder, mapping 1:1 onto
// spec.md §6's order submission schema.
type NewOrderRequest struct {
	Type          MessageType `json:"type"`
	Symbol        string      `json:"symbol"`
	Side          string      `json:"side"`       // "buy" | "sell"
	OrderType     string      `json:"order_type"` // "market" | "limit" | "ioc" | "fok"
	Price         string      `json:"price,omitempty"`
	Quantity      string      `json:"quantity"`
	ClientOrderID string      `json:"client_order_id,omitempty"`
	UserID        string      `json:"user_id,omitempty"`
}

// CancelRequest is the ingress payload for TypeCancel.
type CancelRequest struct {
	Type    MessageType `json:"type"`
	Symbol  string      `json:"symbol"`
	OrderID string      `json:"order_id"`
}

// SubscribeRequest is the ingress payload for TypeSubscribe: open a
// stream for one or more symbols, selecting which of the trade and/or
// market-data streams to receive. Per spec.md §4.6, an unselected stream
// is never sent.
type SubscribeRequest struct {
	Type       MessageType `json:"type"`
	Symbols    []string    `json:"symbols"`
	Trades     bool        `json:"trades"`
	MarketData bool        `json:"market_data"`
}

// QueryRequest is the ingress payload shared by TypeGetBBO and
// TypeGetOrderbook.
type QueryRequest struct {
	Type   MessageType `json:"type"`
	Symbol string      `json:"symbol"`
	Depth  int         `json:"depth,omitempty"`
}

// TradeFill is one fill embedded in an OrderResponse's trades array, per
// spec.md §6's `trades: [{trade_id, price, quantity, fee}]`.
type TradeFill struct {
	TradeID  string `json:"trade_id"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Fee      string `json:"fee"`
}

// OrderResponse is the egress record for a Submit/Cancel outcome, per
// spec.md §6's order_response.
type OrderResponse struct {
	Type              MessageType `json:"type"`
	Success           bool        `json:"success"`
	OrderID           string      `json:"order_id"`
	ClientOrderID     string      `json:"client_order_id,omitempty"`
	Status            string      `json:"status"`
	FilledQuantity    string      `json:"filled_quantity"`
	RemainingQuantity string      `json:"remaining_quantity"`
	Trades            []TradeFill `json:"trades,omitempty"`
}

// TradeBroadcast is the egress shape of a single fill published on the
// trade stream, per spec.md §6's `{type: "trade", symbol, trade_id,
// price, quantity, aggressor_side, maker_order_id, taker_order_id,
// timestamp}`.
type TradeBroadcast struct {
	Type          MessageType `json:"type"`
	Symbol        string      `json:"symbol"`
	TradeID       string      `json:"trade_id"`
	Price         string      `json:"price"`
	Quantity      string      `json:"quantity"`
	AggressorSide string      `json:"aggressor_side"`
	MakerOrderID  string      `json:"maker_order_id"`
	TakerOrderID  string      `json:"taker_order_id"`
	Timestamp     time.Time   `json:"timestamp"`
}

// BBOFields is the nested `bbo` object of a MarketDataBroadcast.
type BBOFields struct {
	BestBid    string `json:"best_bid,omitempty"`
	BestBidQty string `json:"best_bid_qty,omitempty"`
	BestAsk    string `json:"best_ask,omitempty"`
	BestAskQty string `json:"best_ask_qty,omitempty"`
	Spread     string `json:"spread,omitempty"`
}

// PriceLevelPair is one `[price, qty]` depth tuple.
type PriceLevelPair [2]string

// DepthFields is the nested `depth` object of a MarketDataBroadcast.
type DepthFields struct {
	Bids []PriceLevelPair `json:"bids"`
	Asks []PriceLevelPair `json:"asks"`
}

// MarketDataBroadcast is the egress shape of a book update, per
// spec.md §6's `{type: "market_data", timestamp, bbo: {...}, depth:
// {...}}`. Symbol is carried alongside (spec.md's example elides it, but
// a session may subscribe to more than one symbol's market-data stream
// over the same connection and needs it to demultiplex).
type MarketDataBroadcast struct {
	Type      MessageType `json:"type"`
	Symbol    string      `json:"symbol"`
	Timestamp time.Time   `json:"timestamp"`
	BBO       BBOFields   `json:"bbo"`
	Depth     DepthFields `json:"depth"`
}

// BBOResponse is the egress shape of a get_bbo query response.
type BBOResponse struct {
	Type   MessageType `json:"type"`
	Symbol string      `json:"symbol"`
	BBOFields
}

// DepthResponse is the egress shape of a get_orderbook query response.
type DepthResponse struct {
	Type   MessageType `json:"type"`
	Symbol string      `json:"symbol"`
	DepthFields
}

// ErrorResponse is the egress shape for a malformed or rejected request.
type ErrorResponse struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}
