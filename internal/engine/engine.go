// Package engine is the per-symbol matching engine core: validation,
// the price-time-priority matching algorithms and the lifecycle
// bookkeeping (sequence assignment, dirty flag, trade history, health)
// spec.md §4.3-§4.4 and §5 describe. One Engine owns exactly one
// symbol's book and exclusive critical section, generalizing the
// teacher's single Engine.Books map (internal/engine/engine.go in the
// teacher repo) into one Engine instance per symbol, coordinated from
// outside by a router.Router.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

// PersistSink is the persistence queue's view from the engine: fire-
// and-forget enqueue calls made after the critical section releases.
// Implemented by persistence.Queue.
type PersistSink interface {
	EnqueueOrder(o common.Order)
	EnqueueTrade(t common.Trade)
	EnqueueCancel(symbol, orderID string, sequence uint64)
}

// Result is the outcome of a Submit call, enough to build an
// order_response egress record (spec.md §6).
type Result struct {
	Order  common.Order
	Trades []common.Trade
}

// Engine is one symbol's matching engine: its book, its exclusive
// critical section and its lifecycle bookkeeping.
type Engine struct {
	symbol string
	cfg    Config
	log    zerolog.Logger

	mu       sync.Mutex
	book     *book.OrderBook
	sequence uint64
	tradeSeq uint64
	seen     map[string]struct{} // every order id ever admitted, for duplicate rejection

	pendingTrades []*common.Trade // scratch buffer, valid only inside the lock during a single Submit

	history     []common.Trade // FIFO ring buffer, capped at cfg.TradeHistoryCap
	historyHead int
	historyLen  int

	dirty   atomic.Bool
	halted  atomic.Bool
	lagging atomic.Bool

	persist     PersistSink
	tradeStream chan<- common.Trade // non-blocking fan-out to the market-data/broadcast pipeline
}

// New constructs an Engine for symbol. persist and tradeStream may be
// nil (useful in tests that only exercise matching semantics).
func New(symbol string, cfg Config, persist PersistSink, tradeStream chan<- common.Trade, logger zerolog.Logger) *Engine {
	historyCap := cfg.TradeHistoryCap
	if historyCap <= 0 {
		historyCap = 1
	}
	return &Engine{
		symbol:      symbol,
		cfg:         cfg,
		log:         logger.With().Str("symbol", symbol).Logger(),
		book:        book.New(symbol),
		seen:        make(map[string]struct{}),
		history:     make([]common.Trade, historyCap),
		persist:     persist,
		tradeStream: tradeStream,
	}
}

// Symbol returns the engine's symbol.
func (e *Engine) Symbol() string { return e.symbol }

// Halted reports whether an internal invariant violation has disabled
// ingress for this symbol (spec.md §7).
func (e *Engine) Halted() bool { return e.halted.Load() }

// Lagging reports whether the persistence queue is currently backed up
// for this symbol (spec.md §7, persistence lag counter).
func (e *Engine) Lagging() bool { return e.lagging.Load() }

// SetLagging is set through the persistence queue's lag callback when a
// record is dropped on a full queue (back-pressure that does not reject
// the order), and cleared by the persistence writer after a successful
// flush that contained records for this symbol.
func (e *Engine) SetLagging(v bool) { e.lagging.Store(v) }

// Dirty reports, and clears, the flag set whenever the book mutated
// since the last check. Sampled by the market-data publisher outside
// the symbol lock, per spec.md §4.6.
func (e *Engine) Dirty() bool { return e.dirty.Swap(false) }

// Submit validates, admits and matches an order under the symbol's
// exclusive critical section. The returned Result always has a status
// set on Order, even for REJECTED orders (no state change occurs for a
// validation rejection).
func (e *Engine) Submit(o *common.Order) (Result, error) {
	if e.Halted() {
		o.Status = common.Rejected
		return Result{Order: *o}, ErrEngineHalted
	}

	if err := e.validate(o); err != nil {
		o.Status = common.Rejected
		return Result{Order: *o}, err
	}

	e.mu.Lock()

	if _, dup := e.seen[o.UUID]; dup {
		e.mu.Unlock()
		o.Status = common.Rejected
		return Result{Order: *o}, ErrDuplicateOrder
	}

	e.sequence++
	o.Sequence = e.sequence
	o.AdmittedAt = e.now()
	e.seen[o.UUID] = struct{}{}

	e.pendingTrades = e.pendingTrades[:0]

	switch o.Type {
	case common.LimitOrder:
		e.matchLimit(o)
	case common.MarketOrder:
		e.matchMarket(o)
	case common.IOCOrder:
		e.matchIOC(o)
	case common.FOKOrder:
		e.matchFOK(o)
	default:
		o.Status = common.Rejected
		e.mu.Unlock()
		return Result{Order: *o}, ErrUnknownOrderType
	}

	trades := make([]common.Trade, len(e.pendingTrades))
	for i, t := range e.pendingTrades {
		trades[i] = *t
		e.recordHistory(*t)
	}
	e.dirty.Store(true)
	orderSnapshot := *o

	e.mu.Unlock()

	e.publish(orderSnapshot, trades)

	return Result{Order: orderSnapshot, Trades: trades}, nil
}

// Cancel removes a resting order from the book, marking it CANCELLED.
// Idempotent: returns ErrUnknownOrder for an id that is not currently
// resting (unknown to the engine, or already terminal).
func (e *Engine) Cancel(orderID string) error {
	if e.Halted() {
		return ErrEngineHalted
	}

	e.mu.Lock()
	o, existed := e.book.Get(orderID)
	ok := existed && e.book.Cancel(orderID)
	var snapshot common.Order
	var seq uint64
	if ok {
		snapshot = *o // Cancel mutated o.Status in place before removal
		e.sequence++
		seq = e.sequence
	}
	e.dirty.Store(e.dirty.Load() || ok)
	e.mu.Unlock()

	if !ok {
		return ErrUnknownOrder
	}

	if e.persist != nil {
		e.persist.EnqueueCancel(e.symbol, orderID, seq)
	}
	e.publish(snapshot, nil)
	return nil
}

// BBO returns the current best bid/offer for this symbol.
func (e *Engine) BBO() book.BBO {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BBO()
}

// Depth returns the top n levels per side for this symbol.
func (e *Engine) Depth(n int) book.Depth {
	if n <= 0 {
		n = e.cfg.DepthLevelsDefault
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Depth(n)
}

// TradeHistory returns a snapshot of the in-memory trade ring buffer,
// oldest first.
func (e *Engine) TradeHistory() []common.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]common.Trade, e.historyLen)
	for i := 0; i < e.historyLen; i++ {
		out[i] = e.history[(e.historyHead+len(e.history)-e.historyLen+i)%len(e.history)]
	}
	return out
}

// Snapshot returns the current resting book and the sequence it was
// taken at, for the periodic snapshotter (spec.md §4.5).
func (e *Engine) Snapshot() (sequence uint64, resting []common.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence, e.book.RestingOrders()
}

// RestoreResting re-admits a resting order recovered from a snapshot
// without running it back through matching (event-log entries go
// through Replay instead).
// Used only by the recovery manager before ingress is enabled.
func (e *Engine) RestoreResting(o *common.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.book.AddResting(o); err != nil {
		return err
	}
	e.seen[o.UUID] = struct{}{}
	if o.Sequence > e.sequence {
		e.sequence = o.Sequence
	}
	return nil
}

// Replay re-submits a recovered admitted order through the live
// matcher, silently (no persistence re-enqueue, no broadcast), to
// reconstruct the resting book from the event-log tail. See
// DESIGN.md "Recovery replay strategy" for why this, rather than
// replaying each trade's implied mutation individually, is sufficient
// to satisfy spec.md §8's recovery-fidelity invariant.
func (e *Engine) Replay(o *common.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.seen[o.UUID]; dup {
		return
	}
	e.seen[o.UUID] = struct{}{}
	if o.Sequence > e.sequence {
		e.sequence = o.Sequence
	}

	e.pendingTrades = e.pendingTrades[:0]
	switch o.Type {
	case common.LimitOrder:
		e.matchLimit(o)
	case common.MarketOrder:
		e.matchMarket(o)
	case common.IOCOrder:
		e.matchIOC(o)
	case common.FOKOrder:
		e.matchFOK(o)
	}
}

// ReplayCancel applies a recovered cancellation during event-log
// replay.
func (e *Engine) ReplayCancel(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.book.Cancel(orderID)
}

func (e *Engine) recordHistory(t common.Trade) {
	if len(e.history) == 0 {
		return
	}
	e.history[e.historyHead] = t
	e.historyHead = (e.historyHead + 1) % len(e.history)
	if e.historyLen < len(e.history) {
		e.historyLen++
	}
}

// publish enqueues the order/trade records to persistence and fans the
// trades out to the market-data/broadcast pipeline. Both happen outside
// the critical section, per spec.md §5.
func (e *Engine) publish(o common.Order, trades []common.Trade) {
	if e.persist != nil {
		e.persist.EnqueueOrder(o)
		for _, t := range trades {
			e.persist.EnqueueTrade(t)
		}
	}
	if e.tradeStream != nil {
		for _, t := range trades {
			select {
			case e.tradeStream <- t:
			default:
				e.log.Warn().Str("trade_id", t.ID).Msg("trade stream full, dropping broadcast of trade (persisted copy unaffected)")
			}
		}
	}
}

// invariantViolation is called when a matching invariant the engine
// relies on does not hold. Per spec.md §7 this is fatal for the
// symbol: ingress halts, but durability is preserved since everything
// already matched was already queued for persistence.
func (e *Engine) invariantViolation(msg string) {
	e.halted.Store(true)
	e.log.Error().Msg("internal invariant violation: " + msg)
}

func (e *Engine) now() time.Time { return time.Now() }
