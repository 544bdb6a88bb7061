package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/symbol"
)

func TestSimulatorWalkBounds(t *testing.T) {
	sim := NewSimulator(symbol.Defaults(), 42)
	prev := decimal.RequireFromString("64321.55")

	for i := 0; i < 500; i++ {
		next, err := sim.Quote(context.Background(), "BTC-USD")
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if !next.IsPositive() {
			t.Fatalf("step %d: non-positive price %s", i, next)
		}
		if next.Exponent() < -2 {
			t.Fatalf("step %d: more than two decimals: %s", i, next)
		}
		// Each step moves at most 2% from the previous price, plus the
		// cent introduced by rounding.
		limit := prev.Mul(decimal.RequireFromString("0.02")).Add(decimal.RequireFromString("0.01"))
		if next.Sub(prev).Abs().GreaterThan(limit) {
			t.Fatalf("step %d: moved %s from %s, limit %s", i, next.Sub(prev).Abs(), prev, limit)
		}
		prev = next
	}
}

func TestSimulatorDeterministicPerSeed(t *testing.T) {
	a := NewSimulator(symbol.Defaults(), 7)
	b := NewSimulator(symbol.Defaults(), 7)

	for i := 0; i < 10; i++ {
		qa, _ := a.Quote(context.Background(), "ETH-USD")
		qb, _ := b.Quote(context.Background(), "ETH-USD")
		if !qa.Equal(qb) {
			t.Fatalf("step %d: same seed diverged: %s vs %s", i, qa, qb)
		}
	}
}

func TestSimulatorUnknownTicker(t *testing.T) {
	sim := NewSimulator(symbol.Defaults(), 1)
	if _, err := sim.Quote(context.Background(), "BTC-EUR"); err == nil {
		t.Fatal("expected error for unknown ticker")
	}
}

func TestCoinbaseQuoter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/prices/BTC-USD/spot" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"data":{"amount":"64100.25","currency":"USD"}}`))
	}))
	defer srv.Close()

	q := NewCoinbaseQuoter()
	q.BaseURL = srv.URL

	p, err := q.Quote(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !p.Equal(decimal.RequireFromString("64100.25")) {
		t.Errorf("price = %s, want 64100.25", p)
	}

	if _, err := q.Quote(context.Background(), "BTC-EUR"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestCoinbaseQuoterBadAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"amount":"not-a-number"}}`))
	}))
	defer srv.Close()

	q := NewCoinbaseQuoter()
	q.BaseURL = srv.URL
	if _, err := q.Quote(context.Background(), "BTC-USD"); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}
