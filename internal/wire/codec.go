package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/engine"
)

// ParseType peeks a flat message's top-level "type" field without
// decoding the rest, so the caller can dispatch to the concrete type
// before a second full unmarshal -- mirroring the teacher's
// parseMessage dispatch (internal/net/messages.go) but over a flat JSON
// object instead of an enclosing envelope.
func ParseType(raw []byte) (MessageType, error) {
	var tagged struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", fmt.Errorf("wire: decoding message type: %w", err)
	}
	return tagged.Type, nil
}

// DecodeNewOrder parses raw and builds a *common.Order ready for
// engine.Engine.Submit, assigning a fresh UUID.
func DecodeNewOrder(raw []byte) (*common.Order, error) {
	var req NewOrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("wire: decoding order payload: %w", err)
	}

	side, err := decodeSide(req.Side)
	if err != nil {
		return nil, err
	}
	orderType, err := decodeOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("wire: invalid quantity %q: %w", req.Quantity, err)
	}

	var price *decimal.Decimal
	if req.Price != "" {
		p, err := decimal.NewFromString(req.Price)
		if err != nil {
			return nil, fmt.Errorf("wire: invalid price %q: %w", req.Price, err)
		}
		price = &p
	}

	return &common.Order{
		UUID:          uuid.New().String(),
		Symbol:        req.Symbol,
		Side:          side,
		Type:          orderType,
		Price:         price,
		Quantity:      qty,
		Status:        common.Pending,
		UserID:        req.UserID,
		ClientOrderID: req.ClientOrderID,
	}, nil
}

// DecodeCancel parses raw into a symbol/order-id pair for
// router.Router.Cancel.
func DecodeCancel(raw []byte) (symbol, orderID string, err error) {
	var req CancelRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", "", fmt.Errorf("wire: decoding cancel payload: %w", err)
	}
	return req.Symbol, req.OrderID, nil
}

// DecodeSubscribe parses raw into a SubscribeRequest.
func DecodeSubscribe(raw []byte) (SubscribeRequest, error) {
	var req SubscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return SubscribeRequest{}, fmt.Errorf("wire: decoding subscribe payload: %w", err)
	}
	return req, nil
}

// DecodeQuery parses raw into a QueryRequest (get_bbo / get_orderbook).
func DecodeQuery(raw []byte) (QueryRequest, error) {
	var req QueryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return QueryRequest{}, fmt.Errorf("wire: decoding query payload: %w", err)
	}
	return req, nil
}

func decodeSide(s string) (common.Side, error) {
	switch s {
	case "buy":
		return common.Buy, nil
	case "sell":
		return common.Sell, nil
	default:
		return 0, fmt.Errorf("wire: unrecognized side %q", s)
	}
}

func decodeOrderType(s string) (common.OrderType, error) {
	switch s {
	case "limit":
		return common.LimitOrder, nil
	case "market":
		return common.MarketOrder, nil
	case "ioc":
		return common.IOCOrder, nil
	case "fok":
		return common.FOKOrder, nil
	default:
		return 0, fmt.Errorf("wire: unrecognized order type %q", s)
	}
}

// EncodeResult builds the egress OrderResponse for a Submit/Cancel
// outcome. The fee on each embedded TradeFill is the taker's own fee,
// since this response belongs to the order that took liquidity (or, for
// a resting order filled by a later taker, the maker's fee).
func EncodeResult(result engine.Result, submitErr error) OrderResponse {
	resp := OrderResponse{
		Type:              TypeOrderResponse,
		Success:           submitErr == nil,
		OrderID:           result.Order.UUID,
		ClientOrderID:     result.Order.ClientOrderID,
		Status:            result.Order.Status.String(),
		FilledQuantity:    result.Order.FilledQuantity.String(),
		RemainingQuantity: result.Order.Remaining().String(),
	}
	for _, t := range result.Trades {
		fee := t.TakerFee
		if result.Order.UUID == t.MakerOrderID {
			fee = t.MakerFee
		}
		resp.Trades = append(resp.Trades, TradeFill{
			TradeID:  t.ID,
			Price:    t.Price.String(),
			Quantity: t.Quantity.String(),
			Fee:      fee.String(),
		})
	}
	return resp
}

// EncodeTradeBroadcast builds the egress shape of one fill for the trade
// stream.
func EncodeTradeBroadcast(t common.Trade) TradeBroadcast {
	return TradeBroadcast{
		Type:          TypeTrade,
		Symbol:        t.Symbol,
		TradeID:       t.ID,
		Price:         t.Price.String(),
		Quantity:      t.Quantity.String(),
		AggressorSide: t.AggressorSide.String(),
		MakerOrderID:  t.MakerOrderID,
		TakerOrderID:  t.TakerOrderID,
		Timestamp:     t.Timestamp,
	}
}

// EncodeMarketData builds the egress MarketDataBroadcast for a book
// update or an immediate post-subscribe snapshot.
func EncodeMarketData(symbol string, bbo book.BBO, depth book.Depth, ts time.Time) MarketDataBroadcast {
	md := MarketDataBroadcast{
		Type:      TypeMarketData,
		Symbol:    symbol,
		Timestamp: ts,
		Depth:     DepthFields{Bids: encodeLevels(depth.Bids), Asks: encodeLevels(depth.Asks)},
	}
	if bbo.BestBid != nil {
		md.BBO.BestBid = bbo.BestBid.String()
		md.BBO.BestBidQty = bbo.BestBidQty.String()
	}
	if bbo.BestAsk != nil {
		md.BBO.BestAsk = bbo.BestAsk.String()
		md.BBO.BestAskQty = bbo.BestAskQty.String()
	}
	if bbo.Spread != nil {
		md.BBO.Spread = bbo.Spread.String()
	}
	return md
}

func encodeLevels(levels []book.DepthLevel) []PriceLevelPair {
	out := make([]PriceLevelPair, len(levels))
	for i, lvl := range levels {
		out[i] = PriceLevelPair{lvl.Price.String(), lvl.Quantity.String()}
	}
	return out
}

// EncodeBBO builds the egress BBOResponse for a get_bbo query.
func EncodeBBO(symbol string, bbo book.BBO) BBOResponse {
	resp := BBOResponse{Type: TypeGetBBO, Symbol: symbol}
	if bbo.BestBid != nil {
		resp.BestBid = bbo.BestBid.String()
		resp.BestBidQty = bbo.BestBidQty.String()
	}
	if bbo.BestAsk != nil {
		resp.BestAsk = bbo.BestAsk.String()
		resp.BestAskQty = bbo.BestAskQty.String()
	}
	if bbo.Spread != nil {
		resp.Spread = bbo.Spread.String()
	}
	return resp
}

// EncodeDepth builds the egress DepthResponse for a get_orderbook query.
func EncodeDepth(symbol string, d book.Depth) DepthResponse {
	return DepthResponse{
		Type:   TypeGetOrderbook,
		Symbol: symbol,
		DepthFields: DepthFields{
			Bids: encodeLevels(d.Bids),
			Asks: encodeLevels(d.Asks),
		},
	}
}
