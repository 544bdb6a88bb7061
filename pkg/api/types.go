package api

// Request and response types for the REST endpoints and WebSocket messages.

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/query"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/price"
)

// ==============================
// REST Request Types
// ==============================

// PlaceOrderRequest is the payload for POST /api/v1/orders.
type PlaceOrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`     // "buy" or "sell"
	Price    decimal.Decimal `json:"price"`    // execution price, also for market orders
	Quantity decimal.Decimal `json:"quantity"` // base-asset quantity
	Market   bool            `json:"market"`   // true = fill against inventory
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrderRequest struct {
	OrderID exchange.OrderID `json:"order_id"`
}

// DepositRequest is the payload for POST /api/v1/balances/deposit.
type DepositRequest struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// ==============================
// REST Response Types
// ==============================

// OrderInfo is the wire form of an order.
type OrderInfo struct {
	ID        exchange.OrderID `json:"id"`
	UserID    exchange.UserID  `json:"user_id"`
	Symbol    string           `json:"symbol"`
	Side      string           `json:"side"`
	Price     decimal.Decimal  `json:"price"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Filled    decimal.Decimal  `json:"filled"`
	Remaining decimal.Decimal  `json:"remaining"`
	Market    bool             `json:"market"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TradePartyInfo is one side of a trade. OrderID is null on the inventory
// side of a market fill; UserID is always present.
type TradePartyInfo struct {
	UserID  exchange.UserID   `json:"user_id"`
	OrderID *exchange.OrderID `json:"order_id"`
}

// TradeInfo is the wire form of a trade.
type TradeInfo struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Buyer      TradePartyInfo  `json:"buyer"`
	Seller     TradePartyInfo  `json:"seller"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// BalanceInfo is the wire form of one asset holding.
type BalanceInfo struct {
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Locked    decimal.Decimal `json:"locked"`
	Available decimal.Decimal `json:"available"`
}

// BookResponse is a paginated order-book snapshot.
type BookResponse struct {
	Buys       []OrderInfo      `json:"buys"`
	Sells      []OrderInfo      `json:"sells"`
	Pagination query.Pagination `json:"pagination"`
}

// OrdersResponse is a page of the caller's orders.
type OrdersResponse struct {
	Orders     []OrderInfo      `json:"orders"`
	Pagination query.Pagination `json:"pagination"`
}

// TradesResponse is a page of trades.
type TradesResponse struct {
	Trades     []TradeInfo      `json:"trades"`
	Pagination query.Pagination `json:"pagination"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// PriceUpdate is pushed to every WebSocket client on each price tick.
type PriceUpdate struct {
	Type      string           `json:"type"` // "prices"
	Prices    []price.Snapshot `json:"prices"`
	Timestamp int64            `json:"timestamp"` // Unix milliseconds
}

// ==============================
// Conversions
// ==============================

func orderInfo(o *exchange.Order) OrderInfo {
	return OrderInfo{
		ID:        o.ID,
		UserID:    o.UserID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Price:     o.Price,
		Quantity:  o.Quantity,
		Filled:    o.Filled,
		Remaining: o.Remaining(),
		Market:    o.Market,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func orderInfos(orders []*exchange.Order) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(o)
	}
	return out
}

func tradePartyInfo(p exchange.TradeParty) TradePartyInfo {
	info := TradePartyInfo{UserID: p.UserID}
	if !p.IsMarketMaker() {
		id := p.OrderID
		info.OrderID = &id
	}
	return info
}

func tradeInfo(t *exchange.Trade) TradeInfo {
	return TradeInfo{
		ID:         t.ID,
		Symbol:     t.Symbol,
		Price:      t.Price,
		Quantity:   t.Quantity,
		Buyer:      tradePartyInfo(t.Buyer),
		Seller:     tradePartyInfo(t.Seller),
		ExecutedAt: t.ExecutedAt,
	}
}

func tradeInfos(trades []*exchange.Trade) []TradeInfo {
	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = tradeInfo(t)
	}
	return out
}

func balanceInfos(balances []exchange.Balance) []BalanceInfo {
	out := make([]BalanceInfo, len(balances))
	for i, b := range balances {
		out[i] = BalanceInfo{
			Asset:     b.Asset,
			Amount:    b.Amount,
			Locked:    b.Locked,
			Available: b.Available(),
		}
	}
	return out
}
