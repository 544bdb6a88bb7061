package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/symbol"
)

// Quoter fetches the current price for one ticker. Per-symbol errors are
// logged and skipped by the service; they are never fatal to a tick.
type Quoter interface {
	Quote(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// Simulator is a random-walk quote provider: each quote moves the previous
// price by a uniform delta in [-2%, +2%], rounded to two decimals. It is
// the default provider when no external source is configured.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]decimal.Decimal
}

// NewSimulator seeds the walk with each symbol's reference price.
func NewSimulator(symbols []symbol.Symbol, seed int64) *Simulator {
	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		prices[s.Ticker] = s.SeedPrice
	}
	return &Simulator{
		rng:    rand.New(rand.NewSource(seed)),
		prices: prices,
	}
}

const maxDriftPercent = 2.0

func (s *Simulator) Quote(_ context.Context, ticker string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.prices[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("simulator: unknown ticker %s", ticker)
	}

	pct := (s.rng.Float64()*2 - 1) * maxDriftPercent / 100
	next := prev.Mul(decimal.NewFromFloat(1 + pct)).Round(2)
	if !next.IsPositive() {
		// Rounding can zero out sub-cent prices; hold the walk instead.
		next = prev
	}
	s.prices[ticker] = next
	return next, nil
}

// CoinbaseQuoter fetches spot prices from the public Coinbase price API.
// It is the built-in external provider.
type CoinbaseQuoter struct {
	BaseURL string
	Client  *http.Client
}

func NewCoinbaseQuoter() *CoinbaseQuoter {
	return &CoinbaseQuoter{
		BaseURL: "https://api.coinbase.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *CoinbaseQuoter) Quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/v2/prices/%s/spot", c.BaseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}

	res, err := c.Client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return decimal.Zero, fmt.Errorf("spot price %s: status %d: %s", ticker, res.StatusCode, b)
	}

	var payload struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	p, err := decimal.NewFromString(payload.Data.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("spot price %s: bad amount %q: %w", ticker, payload.Data.Amount, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("spot price %s: non-positive amount %s", ticker, p)
	}
	return p, nil
}
