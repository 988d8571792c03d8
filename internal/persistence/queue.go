package persistence

import (
	"fenrir/internal/common"
	"fenrir/internal/metrics"
)

// record is one item on the queue's internal channel: exactly one of
// Order, Trade or Cancel is set.
type record struct {
	order  *common.Order
	trade  *common.Trade
	cancel *cancelRecord
}

type cancelRecord struct {
	symbol   string
	orderID  string
	sequence uint64
}

// Queue is the engine's PersistSink: every Enqueue* call is non-blocking
// and fire-and-forget. A full queue does not reject the order -- it
// marks the symbol lagging via onLag and drops the record, trusting the
// next snapshot/event pair to re-establish durability once the backlog
// clears. This is spec.md §4.5's back-pressure philosophy: the
// in-memory match is authoritative, persistence is best-effort and
// catches up.
type Queue struct {
	ch      chan record
	onLag   func(symbol string, lagging bool)
	metrics *metrics.Registry
}

// NewQueue builds a Queue with the given bounded capacity. onLag is
// called with lagging=true the moment a send would block, and with
// lagging=false is left to the caller (typically cleared by the worker
// once a flush succeeds with room to spare); pass nil in tests that
// don't care about lag signaling.
func NewQueue(capacity int, onLag func(symbol string, lagging bool), m *metrics.Registry) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan record, capacity), onLag: onLag, metrics: m}
}

// SetOnLag rebinds the lag callback after construction, for callers that
// need to close over state (the engine set) not yet built when the
// queue itself must already exist.
func (q *Queue) SetOnLag(fn func(symbol string, lagging bool)) { q.onLag = fn }

// EnqueueOrder implements engine.PersistSink.
func (q *Queue) EnqueueOrder(o common.Order) {
	q.send(record{order: &o}, o.Symbol)
}

// EnqueueTrade implements engine.PersistSink.
func (q *Queue) EnqueueTrade(t common.Trade) {
	q.send(record{trade: &t}, t.Symbol)
}

// EnqueueCancel implements engine.PersistSink.
func (q *Queue) EnqueueCancel(symbol, orderID string, sequence uint64) {
	q.send(record{cancel: &cancelRecord{symbol: symbol, orderID: orderID, sequence: sequence}}, symbol)
}

func (q *Queue) send(r record, symbol string) {
	select {
	case q.ch <- r:
	default:
		if q.onLag != nil {
			q.onLag(symbol, true)
		}
		if q.metrics != nil {
			q.metrics.PersistenceErrors.WithLabelValues(symbol).Inc()
		}
	}
	if q.metrics != nil {
		q.metrics.QueueDepth.WithLabelValues("persistence").Set(float64(len(q.ch)))
	}
}
