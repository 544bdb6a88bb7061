package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/price"
)

func TestWebSocketStreamsPrices(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	s.hub.Broadcast([]price.Snapshot{{
		Ticker: "BTC-USD",
		Price:  decimal.RequireFromString("64500.10"),
	}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg PriceUpdate
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "prices" {
		t.Errorf("type = %s, want prices", msg.Type)
	}
	if len(msg.Prices) != 1 || msg.Prices[0].Ticker != "BTC-USD" {
		t.Errorf("payload = %+v", msg.Prices)
	}

	// Closing the socket tears the subscription down.
	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed, count = %d", s.hub.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
