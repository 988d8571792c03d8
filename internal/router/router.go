// Package router is the stateless dispatcher that sits above the
// per-symbol engines: a symbol -> *engine.Engine map established once
// at startup, generalizing the teacher's flat Engine.Books map
// (internal/engine/engine.go in the teacher repo) into the
// "independent per-symbol engines coordinated by a thin router" shape
// spec.md §2 calls for.
package router

import (
	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/metrics"
)

// Router dispatches inbound requests to the engine owning their symbol.
// It holds no matching state of its own.
type Router struct {
	engines map[string]*engine.Engine
	metrics *metrics.Registry
}

// New builds a Router over the given engines, keyed by their own
// Symbol().
func New(engines []*engine.Engine, m *metrics.Registry) *Router {
	r := &Router{engines: make(map[string]*engine.Engine, len(engines)), metrics: m}
	for _, e := range engines {
		r.engines[e.Symbol()] = e
	}
	return r
}

// Engine returns the engine for symbol, or (nil, false) if the symbol
// is not configured.
func (r *Router) Engine(symbol string) (*engine.Engine, bool) {
	e, ok := r.engines[symbol]
	return e, ok
}

// Symbols returns every configured symbol.
func (r *Router) Symbols() []string {
	out := make([]string, 0, len(r.engines))
	for s := range r.engines {
		out = append(out, s)
	}
	return out
}

// Submit dispatches an order to its symbol's engine. ErrUnknownSymbol
// is returned (and the metrics reject counter bumped) if no engine is
// configured for the order's symbol.
func (r *Router) Submit(o *common.Order) (engine.Result, error) {
	e, ok := r.engines[o.Symbol]
	if !ok {
		o.Status = common.Rejected
		if r.metrics != nil {
			r.metrics.OrdersRejected.WithLabelValues(o.Symbol, "unknown_symbol").Inc()
		}
		return engine.Result{Order: *o}, engine.ErrUnknownSymbol
	}

	result, err := e.Submit(o)
	if r.metrics != nil {
		if err != nil {
			r.metrics.OrdersRejected.WithLabelValues(o.Symbol, reasonLabel(err)).Inc()
		} else {
			r.metrics.OrdersAdmitted.WithLabelValues(o.Symbol).Inc()
			r.metrics.TradesEmitted.WithLabelValues(o.Symbol).Add(float64(len(result.Trades)))
		}
		if e.Halted() {
			r.metrics.HealthDegraded.WithLabelValues(o.Symbol).Set(1)
		}
	}
	return result, err
}

// Cancel dispatches a cancellation to its symbol's engine.
func (r *Router) Cancel(symbol, orderID string) error {
	e, ok := r.engines[symbol]
	if !ok {
		return engine.ErrUnknownSymbol
	}
	err := e.Cancel(orderID)
	if r.metrics != nil {
		outcome := "cancelled"
		if err != nil {
			outcome = "rejected"
		}
		r.metrics.CancelsProcessed.WithLabelValues(symbol, outcome).Inc()
	}
	return err
}

// BBO is the read-only query surface spec.md §6 names: get_bbo.
func (r *Router) BBO(symbol string) (book.BBO, bool) {
	e, ok := r.engines[symbol]
	if !ok {
		return book.BBO{}, false
	}
	return e.BBO(), true
}

// Depth is the read-only query surface spec.md §6 names: get_orderbook.
func (r *Router) Depth(symbol string, n int) (book.Depth, bool) {
	e, ok := r.engines[symbol]
	if !ok {
		return book.Depth{}, false
	}
	return e.Depth(n), true
}

// Metrics is the read-only query surface spec.md §6 names: get_metrics.
// It reads the shared Prometheus registry directly rather than standing
// up an HTTP exposition endpoint, since HTTP transport is out of scope.
func (r *Router) Metrics() *metrics.Registry { return r.metrics }

func reasonLabel(err error) string {
	switch err {
	case engine.ErrUnknownSymbol:
		return "unknown_symbol"
	case engine.ErrInvalidQuantity:
		return "invalid_quantity"
	case engine.ErrInvalidPrice:
		return "invalid_price"
	case engine.ErrUnknownOrderType:
		return "unknown_order_type"
	case engine.ErrDuplicateOrder:
		return "duplicate_order"
	case engine.ErrEngineHalted:
		return "halted"
	default:
		return "other"
	}
}
