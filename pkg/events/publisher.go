package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
)

// PriceTick is one symbol's entry in a price-service tick event.
type PriceTick struct {
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Publisher is a best-effort sink for trade and price-tick events.
// Callers log and swallow every error: absence or failure of the sink
// never affects the matcher or the price service.
type Publisher interface {
	PublishTrade(ctx context.Context, trade *exchange.Trade) error
	PublishPriceTick(ctx context.Context, ticks []PriceTick) error
	Close() error
}

// Nop discards every event. Used when no sink is configured.
type Nop struct{}

func (Nop) PublishTrade(context.Context, *exchange.Trade) error { return nil }
func (Nop) PublishPriceTick(context.Context, []PriceTick) error { return nil }
func (Nop) Close() error                                        { return nil }
