package price

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/events"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/symbol"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/metrics"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/util"
)

// Snapshot is one symbol's row in the live price table.
type Snapshot struct {
	Ticker        string          `json:"ticker"`
	DisplayName   string          `json:"display_name"`
	Price         decimal.Decimal `json:"price"`
	PrevPrice     decimal.Decimal `json:"prev_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	MarketCap     decimal.Decimal `json:"market_cap"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Service maintains the price table for every registered symbol, refreshing
// it on a fixed cadence from a Quoter and fanning each refresh out through
// the hub and the event publisher.
type Service struct {
	reg      *symbol.Registry
	quoter   Quoter
	hub      *Hub
	pub      events.Publisher
	interval time.Duration
	log      *zap.SugaredLogger
	clock    util.Clock

	// supply is the implied circulating supply per ticker, derived once
	// from the market-cap hint at the seed price. Market cap then tracks
	// the live price as price * supply.
	supply map[string]decimal.Decimal

	mu    sync.RWMutex
	table map[string]Snapshot
}

func NewService(reg *symbol.Registry, quoter Quoter, hub *Hub, pub events.Publisher, interval time.Duration, log *zap.SugaredLogger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	s := &Service{
		reg:      reg,
		quoter:   quoter,
		hub:      hub,
		pub:      pub,
		interval: interval,
		log:      log,
		clock:    util.RealClock{},
		supply:   make(map[string]decimal.Decimal, reg.Count()),
		table:    make(map[string]Snapshot, reg.Count()),
	}
	now := s.clock.Now()
	for _, sym := range reg.List() {
		if sym.SeedPrice.IsPositive() {
			s.supply[sym.Ticker] = sym.MarketCapHint.Div(sym.SeedPrice)
		}
		s.table[sym.Ticker] = Snapshot{
			Ticker:      sym.Ticker,
			DisplayName: sym.DisplayName,
			Price:       sym.SeedPrice,
			PrevPrice:   sym.SeedPrice,
			MarketCap:   sym.MarketCapHint,
			UpdatedAt:   now,
		}
	}
	return s
}

// SetClock swaps the time source for tests.
func (s *Service) SetClock(c util.Clock) { s.clock = c }

// Start runs one tick synchronously, so the table holds fresh quotes before
// the caller opens any client-facing surface, then ticks on the configured
// cadence until ctx is cancelled. Ticks are strictly sequential: a slow
// provider delays the next tick rather than overlapping it.
func (s *Service) Start(ctx context.Context) {
	s.StartNotify(ctx, nil)
}

// StartNotify is Start with a readiness signal: ready is closed once the
// first tick has completed.
func (s *Service) StartNotify(ctx context.Context, ready chan<- struct{}) {
	s.tick(ctx)
	if ready != nil {
		close(ready)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("price_service_stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick refreshes every symbol once and broadcasts the resulting table.
// A failing symbol keeps its previous snapshot for this round.
func (s *Service) tick(ctx context.Context) {
	now := s.clock.Now()
	updated := 0

	for _, sym := range s.reg.List() {
		quote, err := s.quoter.Quote(ctx, sym.Ticker)
		if err != nil {
			metrics.PriceTickErrors.WithLabelValues(sym.Ticker).Inc()
			s.log.Warnw("price_quote_failed", "ticker", sym.Ticker, "err", err)
			continue
		}
		s.apply(sym.Ticker, quote.Round(2), now)
		updated++
	}

	metrics.PriceTicks.Inc()
	if updated == 0 {
		return
	}

	snap := s.Table()
	s.hub.Broadcast(snap)
	s.publish(ctx, snap)
}

// apply advances one symbol's snapshot to the given price.
func (s *Service) apply(ticker string, price decimal.Decimal, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.table[ticker]
	if !ok {
		return
	}
	prev := cur.Price
	change := price.Sub(prev)
	pct := decimal.Zero
	if !prev.IsZero() {
		pct = change.Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
	}
	marketCap := cur.MarketCap
	if supply, ok := s.supply[ticker]; ok {
		marketCap = price.Mul(supply).Round(0)
	}

	cur.PrevPrice = prev
	cur.Price = price
	cur.Change = change
	cur.ChangePercent = pct
	cur.MarketCap = marketCap
	cur.UpdatedAt = now
	s.table[ticker] = cur
}

func (s *Service) publish(ctx context.Context, snap []Snapshot) {
	ticks := make([]events.PriceTick, 0, len(snap))
	for _, row := range snap {
		ticks = append(ticks, events.PriceTick{
			Ticker:        row.Ticker,
			Price:         row.Price,
			Change:        row.Change,
			ChangePercent: row.ChangePercent,
			UpdatedAt:     row.UpdatedAt,
		})
	}

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.pub.PublishPriceTick(pctx, ticks); err != nil {
		metrics.PublisherErrors.Inc()
		s.log.Warnw("price_tick_publish_failed", "err", err)
	}
}

// Table returns a copy of the current price table, ordered by ticker.
func (s *Service) Table() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.table))
	for _, row := range s.table {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Price returns the current price for ticker.
func (s *Service) Price(ticker string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.table[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown ticker %s", ticker)
	}
	return row.Price, nil
}
