package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fenrir/internal/common"
)

// schemaDDL mirrors spec.md §6's orders/trades/snapshots tables, plus an
// append-only events table used only for crash-recovery replay (orders
// and trades stay query-facing current-state/history, reconciling §4.5's
// "event log" language with §6's three named tables -- see DESIGN.md).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS orders (
	id               text PRIMARY KEY,
	symbol           text NOT NULL,
	side             smallint NOT NULL,
	type             smallint NOT NULL,
	price            numeric,
	quantity         numeric NOT NULL,
	filled_quantity  numeric NOT NULL,
	status           smallint NOT NULL,
	sequence         bigint NOT NULL,
	admitted_at      timestamptz NOT NULL,
	user_id          text,
	client_order_id  text
);
CREATE INDEX IF NOT EXISTS orders_symbol_sequence_idx ON orders (symbol, sequence);

CREATE TABLE IF NOT EXISTS trades (
	id              text PRIMARY KEY,
	symbol          text NOT NULL,
	price           numeric NOT NULL,
	quantity        numeric NOT NULL,
	aggressor_side  smallint NOT NULL,
	maker_order_id  text NOT NULL,
	taker_order_id  text NOT NULL,
	sequence        bigint NOT NULL,
	ts              timestamptz NOT NULL,
	maker_fee       numeric NOT NULL,
	taker_fee       numeric NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_symbol_sequence_idx ON trades (symbol, sequence);

CREATE TABLE IF NOT EXISTS snapshots (
	symbol       text NOT NULL,
	sequence     bigint NOT NULL,
	captured_at  timestamptz NOT NULL,
	resting      jsonb NOT NULL,
	PRIMARY KEY (symbol, sequence)
);

CREATE TABLE IF NOT EXISTS events (
	symbol    text NOT NULL,
	sequence  bigint NOT NULL,
	kind      smallint NOT NULL,
	order_id  text NOT NULL,
	payload   jsonb,
	PRIMARY KEY (symbol, sequence)
);
`

// PostgresStore is the database/sql + lib/pq backed Store, grounded on
// lightsgoout-go-quantcup's db.go: one transaction per flush, pq.CopyIn
// for the bulk inserts since a batch can hold hundreds of rows.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to dsn and ensures the schema exists.
func Open(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("persistence: pinging postgres: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("persistence: applying schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// WriteBatch upserts orders, appends trades and appends events, all in
// one transaction. Orders use an explicit upsert (an order's row is
// written once on admission and again on every subsequent state change
// -- fill, cancel -- so ON CONFLICT DO UPDATE rather than plain insert).
func (s *PostgresStore) WriteBatch(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: begin batch tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertOrders(tx, b.Orders); err != nil {
		return err
	}
	if err := insertTrades(tx, b.Trades); err != nil {
		return err
	}
	if err := insertEvents(tx, b.Events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persistence: commit batch tx: %w", err)
	}
	return nil
}

func upsertOrders(tx *sql.Tx, orders []common.Order) error {
	const upsertSQL = `
		INSERT INTO orders (id, symbol, side, type, price, quantity, filled_quantity, status, sequence, admitted_at, user_id, client_order_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			filled_quantity = EXCLUDED.filled_quantity,
			status          = EXCLUDED.status,
			sequence        = EXCLUDED.sequence
	`
	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		return fmt.Errorf("persistence: preparing order upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		var price interface{}
		if o.Price != nil {
			price = o.Price.String()
		}
		if _, err := stmt.Exec(
			o.UUID, o.Symbol, int(o.Side), int(o.Type), price,
			o.Quantity.String(), o.FilledQuantity.String(), int(o.Status),
			o.Sequence, o.AdmittedAt, o.UserID, o.ClientOrderID,
		); err != nil {
			return fmt.Errorf("persistence: upserting order %s: %w", o.UUID, err)
		}
	}
	return nil
}

func insertTrades(tx *sql.Tx, trades []common.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(pq.CopyIn("trades",
		"id", "symbol", "price", "quantity", "aggressor_side",
		"maker_order_id", "taker_order_id", "sequence", "ts", "maker_fee", "taker_fee"))
	if err != nil {
		return fmt.Errorf("persistence: preparing trade copy-in: %w", err)
	}
	for _, t := range trades {
		if _, err := stmt.Exec(
			t.ID, t.Symbol, t.Price.String(), t.Quantity.String(), int(t.AggressorSide),
			t.MakerOrderID, t.TakerOrderID, t.Sequence, t.Timestamp, t.MakerFee.String(), t.TakerFee.String(),
		); err != nil {
			stmt.Close()
			return fmt.Errorf("persistence: copying trade %s: %w", t.ID, err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		stmt.Close()
		return fmt.Errorf("persistence: flushing trade copy-in: %w", err)
	}
	return stmt.Close()
}

func insertEvents(tx *sql.Tx, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	const insertSQL = `INSERT INTO events (symbol, sequence, kind, order_id, payload) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (symbol, sequence) DO NOTHING`
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("persistence: preparing event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		var payload []byte
		orderID := e.OrderID
		if e.Kind == EventAdmit {
			encoded, err := json.Marshal(orderJSON{
				UUID: e.Order.UUID, Symbol: e.Order.Symbol, Side: int(e.Order.Side), Type: int(e.Order.Type),
				Price: decimalPtrString(e.Order.Price), Quantity: e.Order.Quantity.String(),
				Sequence: e.Order.Sequence, UserID: e.Order.UserID, ClientOrderID: e.Order.ClientOrderID,
			})
			if err != nil {
				return fmt.Errorf("persistence: encoding event payload for %s: %w", e.Order.UUID, err)
			}
			payload = encoded
			orderID = e.Order.UUID
		}
		if _, err := stmt.Exec(e.Symbol, e.Sequence, int(e.Kind), orderID, payload); err != nil {
			return fmt.Errorf("persistence: inserting event %s/%d: %w", e.Symbol, e.Sequence, err)
		}
	}
	return nil
}

// orderJSON is the wire shape of an admit event's payload: just enough
// of an order's identity to reconstruct it as replay input (Status and
// FilledQuantity are deliberately omitted -- replay always starts an
// order at PENDING/zero-filled and runs it back through the matcher).
type orderJSON struct {
	UUID          string `json:"uuid"`
	Symbol        string `json:"symbol"`
	Side          int    `json:"side"`
	Type          int    `json:"type"`
	Price         string `json:"price,omitempty"`
	Quantity      string `json:"quantity"`
	Sequence      uint64 `json:"sequence"`
	UserID        string `json:"user_id,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

func decimalPtrString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// SaveSnapshot inserts a new snapshot row. Old snapshots for the symbol
// are left in place (cheap, and useful for forensics); only the latest
// is ever read back.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	resting := make([]orderJSON, 0, len(snap.Resting))
	for _, o := range snap.Resting {
		resting = append(resting, orderJSON{
			UUID: o.UUID, Symbol: o.Symbol, Side: int(o.Side), Type: int(o.Type),
			Price: decimalPtrString(o.Price), Quantity: o.Quantity.String(),
			Sequence: o.Sequence, UserID: o.UserID, ClientOrderID: o.ClientOrderID,
		})
	}
	blob, err := json.Marshal(resting)
	if err != nil {
		return fmt.Errorf("persistence: encoding snapshot for %s: %w", snap.Symbol, err)
	}
	const insertSQL = `INSERT INTO snapshots (symbol, sequence, captured_at, resting) VALUES ($1,$2,$3,$4)
		ON CONFLICT (symbol, sequence) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, insertSQL, snap.Symbol, snap.Sequence, snap.CapturedAt, blob); err != nil {
		return fmt.Errorf("persistence: saving snapshot for %s: %w", snap.Symbol, err)
	}
	return nil
}

// LatestSnapshot loads the highest-sequence snapshot row for symbol.
func (s *PostgresStore) LatestSnapshot(ctx context.Context, symbol string) (Snapshot, bool, error) {
	const querySQL = `SELECT sequence, captured_at, resting FROM snapshots WHERE symbol = $1 ORDER BY sequence DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, querySQL, symbol)

	var snap Snapshot
	snap.Symbol = symbol
	var blob []byte
	if err := row.Scan(&snap.Sequence, &snap.CapturedAt, &blob); err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("persistence: loading snapshot for %s: %w", symbol, err)
	}

	var resting []orderJSON
	if err := json.Unmarshal(blob, &resting); err != nil {
		return Snapshot{}, false, fmt.Errorf("persistence: decoding snapshot for %s: %w", symbol, err)
	}
	snap.Resting = make([]common.Order, 0, len(resting))
	for _, o := range resting {
		order, err := o.toOrder()
		if err != nil {
			return Snapshot{}, false, err
		}
		snap.Resting = append(snap.Resting, order)
	}
	return snap, true, nil
}

// EventsSince loads every event for symbol with sequence > sequence, in
// ascending sequence order, for the recovery manager to replay.
func (s *PostgresStore) EventsSince(ctx context.Context, symbol string, sequence uint64) ([]Event, error) {
	const querySQL = `SELECT sequence, kind, order_id, payload FROM events WHERE symbol = $1 AND sequence > $2 ORDER BY sequence ASC`
	rows, err := s.db.QueryContext(ctx, querySQL, symbol, sequence)
	if err != nil {
		return nil, fmt.Errorf("persistence: loading events for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		e.Symbol = symbol
		var kind int
		var payload []byte
		if err := rows.Scan(&e.Sequence, &kind, &e.OrderID, &payload); err != nil {
			return nil, fmt.Errorf("persistence: scanning event row for %s: %w", symbol, err)
		}
		e.Kind = EventKind(kind)
		if e.Kind == EventAdmit {
			var oj orderJSON
			if err := json.Unmarshal(payload, &oj); err != nil {
				return nil, fmt.Errorf("persistence: decoding event payload for %s: %w", symbol, err)
			}
			order, err := oj.toOrder()
			if err != nil {
				return nil, err
			}
			e.Order = order
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (o orderJSON) toOrder() (common.Order, error) {
	qty, err := decimal.NewFromString(o.Quantity)
	if err != nil {
		return common.Order{}, fmt.Errorf("persistence: parsing quantity for %s: %w", o.UUID, err)
	}
	var price *decimal.Decimal
	if o.Price != "" {
		p, err := decimal.NewFromString(o.Price)
		if err != nil {
			return common.Order{}, fmt.Errorf("persistence: parsing price for %s: %w", o.UUID, err)
		}
		price = &p
	}
	return common.Order{
		UUID:          o.UUID,
		Symbol:        o.Symbol,
		Side:          common.Side(o.Side),
		Type:          common.OrderType(o.Type),
		Price:         price,
		Quantity:      qty,
		Status:        common.Pending,
		Sequence:      o.Sequence,
		UserID:        o.UserID,
		ClientOrderID: o.ClientOrderID,
	}, nil
}
