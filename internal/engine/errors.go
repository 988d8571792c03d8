package engine

import "errors"

// Sentinel errors surfaced by the engine core, generalizing the
// teacher's ErrNotEnoughLiquidity/ErrRejection pair
// (internal/engine/orderbook.go) into the full set spec.md §7 names.
var (
	// ErrUnknownSymbol is returned when an order's symbol does not
	// match the engine it was routed to.
	ErrUnknownSymbol = errors.New("engine: unknown or mismatched symbol")
	// ErrInvalidQuantity covers quantity <= 0 or quantity over the
	// configured maximum.
	ErrInvalidQuantity = errors.New("engine: invalid quantity")
	// ErrInvalidPrice covers a missing/non-positive LIMIT price or a
	// price over the configured maximum.
	ErrInvalidPrice = errors.New("engine: invalid price")
	// ErrUnknownOrderType is returned for an unrecognized order type.
	ErrUnknownOrderType = errors.New("engine: unrecognized order type")
	// ErrDuplicateOrder is returned when an order id has already been
	// admitted to this engine.
	ErrDuplicateOrder = errors.New("engine: duplicate order id")
	// ErrUnknownOrder is returned by Cancel for an order id the engine
	// has never seen or no longer tracks as resting.
	ErrUnknownOrder = errors.New("engine: unknown order id")
	// ErrAlreadyTerminal names an order that is already FILLED,
	// CANCELLED or REJECTED. Engine.Cancel does not return it: terminal
	// orders are no longer in the book, so Cancel reports ErrUnknownOrder
	// for them.
	ErrAlreadyTerminal = errors.New("engine: order already terminal")
	// ErrQueueFull names a saturated ingress queue. No code path returns
	// it: the router hands each order straight to its engine, and there
	// is no bounded ingress queue in front of the engines.
	ErrQueueFull = errors.New("engine: ingress queue full, retry")
	// ErrEngineHalted is returned for any submission to a symbol whose
	// engine has halted ingress after an internal invariant violation.
	ErrEngineHalted = errors.New("engine: ingress halted for this symbol")
)
