package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserID identifies an account. The market-maker inventory account is a
// distinguished UserID (0 by default) and goes through the same balance
// store as everyone else.
type UserID int64

// OrderID is a store-assigned monotonically increasing identifier.
// The zero value never names a real order; trade parties use it to mark
// the market-maker side of a fill.
type OrderID uint64

// Side of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool { return s == Buy || s == Sell }

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	// StatusPartial is declared for API compatibility but never written:
	// partially filled limit orders stay open.
	StatusPartial OrderStatus = "partial"
)

// Terminal reports whether no further transitions are allowed.
func (st OrderStatus) Terminal() bool {
	return st == StatusFilled || st == StatusCancelled
}

// Balance is one (user, asset) holding. Missing rows are equivalent to a
// zero balance; rows are created implicitly on first credit.
type Balance struct {
	UserID UserID          `json:"user_id"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	// Locked is reserved for a stricter hold-on-order design; the matcher
	// checks balances only at match time and leaves it zero.
	Locked decimal.Decimal `json:"locked"`
}

// Available returns the quantity a new order may reserve.
func (b Balance) Available() decimal.Decimal {
	return b.Amount.Sub(b.Locked)
}

// Order is a buy or sell request against a symbol. Created and mutated
// only by the matching engine and the cancellation path; never deleted.
type Order struct {
	ID        OrderID         `json:"id"`
	UserID    UserID          `json:"user_id"`
	Side      Side            `json:"side"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Filled    decimal.Decimal `json:"filled_quantity"`
	Market    bool            `json:"market"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

// TradeParty is one side of a trade. Either it references an order and its
// owner, or it is the market-maker inventory account with no order. The
// constructors below are the only two valid shapes, so a trade can never
// carry an order id without its owner or vice versa.
type TradeParty struct {
	UserID  UserID  `json:"user_id"`
	OrderID OrderID `json:"order_id,omitempty"`
}

// OrderParty references a real order and its owner.
func OrderParty(id OrderID, user UserID) TradeParty {
	return TradeParty{UserID: user, OrderID: id}
}

// MarketMakerParty marks the side filled from market-maker inventory.
func MarketMakerParty(mm UserID) TradeParty {
	return TradeParty{UserID: mm}
}

// IsMarketMaker reports whether this side was filled from inventory
// rather than a resting order.
func (p TradeParty) IsMarketMaker() bool { return p.OrderID == 0 }

// Trade is an immutable record of an executed fill.
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Buyer      TradeParty      `json:"buyer"`
	Seller     TradeParty      `json:"seller"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Involves reports whether user is the buyer or seller of the trade.
func (t *Trade) Involves(user UserID) bool {
	return t.Buyer.UserID == user || t.Seller.UserID == user
}
