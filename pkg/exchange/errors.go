package exchange

import "errors"

// Error taxonomy surfaced by the matching engine and query surface.
// Transactional errors always roll back the whole transaction; no partial
// state is ever observable.
var (
	// ErrBadRequest covers malformed input: non-positive price or
	// quantity, unknown side or filter value.
	ErrBadRequest = errors.New("bad request")

	// ErrUnknownSymbol means the ticker is not in the registry.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrInsufficientBalance means a reservation against a user balance
	// failed.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientMarketInventory means the market-maker account could
	// not cover a market buy.
	ErrInsufficientMarketInventory = errors.New("insufficient market inventory")

	// ErrUseMarketOrder rejects limit orders priced exactly at the
	// symbol's reference price.
	ErrUseMarketOrder = errors.New("limit price equals reference price, use a market order")

	// ErrNotFound means the order or resource is absent or not owned by
	// the caller.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a transaction failed to commit due to contention.
	// The in-process store serializes writers per symbol, so it does not
	// produce this; it exists so transports have a stable mapping.
	ErrConflict = errors.New("conflict")
)
