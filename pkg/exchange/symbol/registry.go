package symbol

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Symbol is an immutable trading symbol description. Identity is Ticker.
type Symbol struct {
	Ticker        string          `json:"ticker"`
	DisplayName   string          `json:"display_name"`
	SeedPrice     decimal.Decimal `json:"seed_price"`
	MarketCapHint decimal.Decimal `json:"market_cap_hint"`
}

// Registry is the closed set of supported symbols, fixed at process start.
// It is immutable after construction and safe for concurrent readers.
type Registry struct {
	byTicker map[string]Symbol
	ordered  []Symbol
}

// NewRegistry builds a registry from the given symbols. Duplicate tickers
// keep the first occurrence. List order is ticker-lexicographic.
func NewRegistry(symbols []Symbol) *Registry {
	r := &Registry{byTicker: make(map[string]Symbol, len(symbols))}
	for _, s := range symbols {
		if _, dup := r.byTicker[s.Ticker]; dup {
			continue
		}
		r.byTicker[s.Ticker] = s
		r.ordered = append(r.ordered, s)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].Ticker < r.ordered[j].Ticker
	})
	return r
}

// Exists reports whether ticker is a supported symbol.
func (r *Registry) Exists(ticker string) bool {
	_, ok := r.byTicker[ticker]
	return ok
}

// Get returns the symbol for ticker.
func (r *Registry) Get(ticker string) (Symbol, bool) {
	s, ok := r.byTicker[ticker]
	return s, ok
}

// List returns all symbols ordered by ticker. The returned slice is shared;
// callers must not modify it.
func (r *Registry) List() []Symbol {
	return r.ordered
}

// Count returns the number of supported symbols.
func (r *Registry) Count() int { return len(r.byTicker) }

func seed(ticker, name, price, marketCap string) Symbol {
	return Symbol{
		Ticker:        ticker,
		DisplayName:   name,
		SeedPrice:     decimal.RequireFromString(price),
		MarketCapHint: decimal.RequireFromString(marketCap),
	}
}

// Defaults returns the built-in symbol universe with seed reference prices.
func Defaults() []Symbol {
	return []Symbol{
		seed("BTC-USD", "Bitcoin", "64321.55", "1267000000000"),
		seed("ETH-USD", "Ethereum", "3412.89", "410200000000"),
		seed("SOL-USD", "Solana", "172.44", "79800000000"),
		seed("ADA-USD", "Cardano", "0.62", "22100000000"),
		seed("DOGE-USD", "Dogecoin", "0.14", "20400000000"),
		seed("XRP-USD", "Ripple", "0.59", "32600000000"),
		seed("DOT-USD", "Polkadot", "7.21", "10300000000"),
		seed("LINK-USD", "Chainlink", "14.87", "8700000000"),
	}
}

// FromTickers resolves a configured ticker override against the built-in
// universe. Unknown tickers are dropped; an empty override yields Defaults.
func FromTickers(tickers []string) []Symbol {
	if len(tickers) == 0 {
		return Defaults()
	}
	known := make(map[string]Symbol)
	for _, s := range Defaults() {
		known[s.Ticker] = s
	}
	var out []Symbol
	for _, t := range tickers {
		if s, ok := known[t]; ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Defaults()
	}
	return out
}
