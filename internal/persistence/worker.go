package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/metrics"
)

// Writer is the batched persistence writer: it drains Queue.ch, either
// once it accumulates BatchSize records or once FlushInterval elapses
// since the last flush, whichever comes first, and writes the batch to
// Store in one transaction. Grounded on the teacher's internal/worker.go
// WorkerPool (gopkg.in/tomb.v2 lifecycle: t.Go, t.Dying()) generalized
// from a generic task pool into one dedicated batching loop per
// SPEC_FULL.md's persistence design.
type Writer struct {
	queue         *Queue
	store         Store
	batchSize     int
	flushInterval time.Duration
	onLagCleared  func(symbol string)
	metrics       *metrics.Registry
	log           zerolog.Logger
}

// NewWriter builds a Writer. onLagCleared is called once after a
// successful flush for every symbol seen in that batch, to clear the
// lagging flag Queue.send set on back-pressure.
func NewWriter(queue *Queue, store Store, batchSize int, flushInterval time.Duration, onLagCleared func(symbol string), m *metrics.Registry, logger zerolog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 25 * time.Millisecond
	}
	return &Writer{
		queue:         queue,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		onLagCleared:  onLagCleared,
		metrics:       m,
		log:           logger.With().Str("component", "persistence.writer").Logger(),
	}
}

// Start launches the batching loop under t, returning once t starts
// dying. Flushes whatever is buffered before returning, so a graceful
// shutdown never silently drops a trailing partial batch.
func (w *Writer) Start(t *tomb.Tomb) {
	t.Go(func() error {
		return w.run(t)
	})
}

func (w *Writer) run(t *tomb.Tomb) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	buf := make([]record, 0, w.batchSize)
	for {
		select {
		case <-t.Dying():
			w.flush(buf)
			return nil
		case r := <-w.queue.ch:
			buf = append(buf, r)
			if len(buf) >= w.batchSize {
				w.flush(buf)
				buf = buf[:0]
			}
		case <-ticker.C:
			if len(buf) > 0 {
				w.flush(buf)
				buf = buf[:0]
			}
		}
	}
}

func (w *Writer) flush(buf []record) {
	if len(buf) == 0 {
		return
	}
	batch := Batch{}
	symbolsSeen := make(map[string]struct{})

	for _, r := range buf {
		switch {
		case r.order != nil:
			batch.Orders = append(batch.Orders, *r.order)
			symbolsSeen[r.order.Symbol] = struct{}{}
			batch.Events = append(batch.Events, Event{
				Symbol: r.order.Symbol, Sequence: r.order.Sequence, Kind: EventAdmit, Order: *r.order,
			})
		case r.trade != nil:
			batch.Trades = append(batch.Trades, *r.trade)
			symbolsSeen[r.trade.Symbol] = struct{}{}
		case r.cancel != nil:
			symbolsSeen[r.cancel.symbol] = struct{}{}
			batch.Events = append(batch.Events, Event{
				Symbol: r.cancel.symbol, Sequence: r.cancel.sequence, Kind: EventCancel, OrderID: r.cancel.orderID,
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.store.WriteBatch(ctx, batch); err != nil {
		w.log.Error().Err(err).Int("batch_size", len(buf)).Msg("batched persistence write failed")
		for symbol := range symbolsSeen {
			if w.metrics != nil {
				w.metrics.PersistenceErrors.WithLabelValues(symbol).Inc()
			}
		}
		return
	}

	if w.onLagCleared != nil {
		for symbol := range symbolsSeen {
			w.onLagCleared(symbol)
		}
	}
	if w.metrics != nil {
		w.metrics.QueueDepth.WithLabelValues("persistence").Set(float64(len(w.queue.ch)))
	}
}
