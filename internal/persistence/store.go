// Package persistence is the durable event log + snapshot store spec.md
// §4.5 and §6 describe: a batched writer draining a bounded queue into
// Postgres, plus periodic snapshots and event-log replay for crash
// recovery. Grounded on lightsgoout-go-quantcup's db.go (database/sql +
// github.com/lib/pq, batched pq.CopyIn inserts under one transaction)
// and the teacher's internal/worker.go WorkerPool (gopkg.in/tomb.v2
// lifecycle, worker loop shape).
package persistence

import (
	"context"
	"time"

	"fenrir/internal/common"
)

// EventKind distinguishes the two kinds of append-only log entries the
// recovery manager replays, in sequence order, after loading the latest
// snapshot.
type EventKind int

const (
	EventAdmit EventKind = iota
	EventCancel
)

// Event is one append-only replay-log row. For EventAdmit, Order carries
// the order exactly as admitted (Quantity is the original requested
// quantity, not the post-match remainder, since Order.Fill never mutates
// Quantity). For EventCancel, only OrderID is meaningful.
type Event struct {
	Symbol   string
	Sequence uint64
	Kind     EventKind
	Order    common.Order
	OrderID  string
}

// Snapshot is a point-in-time capture of one symbol's resting book, used
// to bound replay to the event-log tail after Sequence.
type Snapshot struct {
	Symbol     string
	Sequence   uint64
	Resting    []common.Order
	CapturedAt time.Time
}

// Batch is one flush of the batched writer: every order/trade snapshot
// and append-only event accumulated since the last flush, across every
// symbol (the writer is shared; rows carry their own symbol column).
type Batch struct {
	Orders []common.Order
	Trades []common.Trade
	Events []Event
}

func (b Batch) Empty() bool {
	return len(b.Orders) == 0 && len(b.Trades) == 0 && len(b.Events) == 0
}

// Store is the durable backend the batched writer and recovery manager
// both depend on. Satisfied by *PostgresStore; tests substitute an
// in-memory fake.
type Store interface {
	WriteBatch(ctx context.Context, b Batch) error
	SaveSnapshot(ctx context.Context, s Snapshot) error
	LatestSnapshot(ctx context.Context, symbol string) (Snapshot, bool, error)
	EventsSince(ctx context.Context, symbol string, sequence uint64) ([]Event, error)
}
