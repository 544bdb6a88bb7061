package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/store"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/symbol"
)

const mmUser = exchange.UserID(0)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := symbol.NewRegistry(symbol.Defaults())
	eng := New(reg, st, mmUser, nil, zap.NewNop().Sugar())
	return eng, st
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func deposit(t *testing.T, e *Engine, user exchange.UserID, asset, amount string) {
	t.Helper()
	if _, err := e.Deposit(user, asset, dec(amount)); err != nil {
		t.Fatalf("deposit %s %s for user %d: %v", amount, asset, user, err)
	}
}

func place(t *testing.T, e *Engine, user exchange.UserID, side exchange.Side, symbol, price, qty string, market bool) *exchange.Order {
	t.Helper()
	o, err := e.PlaceOrder(OrderRequest{
		UserID:   user,
		Side:     side,
		Symbol:   symbol,
		Price:    dec(price),
		Quantity: dec(qty),
		Market:   market,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	return o
}

func balance(t *testing.T, st *store.Store, user exchange.UserID, asset string) decimal.Decimal {
	t.Helper()
	bal, err := st.BalanceOf(user, asset)
	if err != nil {
		t.Fatalf("balance of user %d: %v", user, err)
	}
	return bal.Amount
}

func TestLimitOrdersExactMatch(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 2, "BTC-USD", "1")

	sell := place(t, e, 2, exchange.Sell, "BTC-USD", "64000", "1", false)
	buy := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)

	if buy.Status != exchange.StatusFilled {
		t.Errorf("buy status = %s, want filled", buy.Status)
	}
	got, _ := st.GetOrder(sell.ID)
	if got.Status != exchange.StatusFilled {
		t.Errorf("sell status = %s, want filled", got.Status)
	}

	trades, err := st.Trades()
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.Price.Equal(dec("64000")) || !tr.Quantity.Equal(dec("1")) {
		t.Errorf("trade = %s @ %s, want 1 @ 64000", tr.Quantity, tr.Price)
	}
	if tr.Buyer.UserID != 1 || tr.Buyer.OrderID != buy.ID {
		t.Errorf("buyer party wrong: %+v", tr.Buyer)
	}
	if tr.Seller.UserID != 2 || tr.Seller.OrderID != sell.ID {
		t.Errorf("seller party wrong: %+v", tr.Seller)
	}

	if b := balance(t, st, 1, "BTC-USD"); !b.Equal(dec("1")) {
		t.Errorf("buyer holds %s, want 1", b)
	}
	if b := balance(t, st, 2, "BTC-USD"); !b.IsZero() {
		t.Errorf("seller holds %s, want 0", b)
	}
}

func TestLimitOrderPartialFill(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 2, "BTC-USD", "2")

	sell := place(t, e, 2, exchange.Sell, "BTC-USD", "64000", "2", false)
	buy := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)

	if buy.Status != exchange.StatusFilled {
		t.Errorf("taker status = %s, want filled", buy.Status)
	}
	rest, _ := st.GetOrder(sell.ID)
	if rest.Status != exchange.StatusOpen {
		t.Errorf("partially filled maker status = %s, want open", rest.Status)
	}
	if !rest.Filled.Equal(dec("1")) || !rest.Remaining().Equal(dec("1")) {
		t.Errorf("maker filled=%s remaining=%s, want 1 and 1", rest.Filled, rest.Remaining())
	}

	// The remainder is still matchable.
	open, _ := st.OpenOrders("BTC-USD", exchange.Sell)
	if len(open) != 1 || open[0].ID != sell.ID {
		t.Errorf("remainder missing from book")
	}
}

func TestLimitOrdersNoCross(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 2, "BTC-USD", "1")

	sell := place(t, e, 2, exchange.Sell, "BTC-USD", "64500", "1", false)
	buy := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)

	if buy.Status != exchange.StatusOpen || !buy.Filled.IsZero() {
		t.Errorf("buy should rest open, got status=%s filled=%s", buy.Status, buy.Filled)
	}
	got, _ := st.GetOrder(sell.ID)
	if got.Status != exchange.StatusOpen {
		t.Errorf("sell should remain open, got %s", got.Status)
	}
	trades, _ := st.Trades()
	if len(trades) != 0 {
		t.Errorf("got %d trades, want none", len(trades))
	}
}

func TestMarketBuyFromInventory(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, mmUser, "BTC-USD", "5")

	o := place(t, e, 1, exchange.Buy, "BTC-USD", "64321.55", "2", true)
	if o.Status != exchange.StatusFilled {
		t.Errorf("market order status = %s, want filled", o.Status)
	}

	trades, _ := st.Trades()
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if tr.Buyer.IsMarketMaker() || tr.Buyer.OrderID != o.ID {
		t.Errorf("buyer side should reference the order: %+v", tr.Buyer)
	}
	if !tr.Seller.IsMarketMaker() || tr.Seller.UserID != mmUser {
		t.Errorf("seller side should be inventory: %+v", tr.Seller)
	}

	if b := balance(t, st, 1, "BTC-USD"); !b.Equal(dec("2")) {
		t.Errorf("buyer holds %s, want 2", b)
	}
	if b := balance(t, st, mmUser, "BTC-USD"); !b.Equal(dec("3")) {
		t.Errorf("inventory holds %s, want 3", b)
	}
}

func TestMarketSellToInventory(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 4, "ETH-USD", "1.5")

	o := place(t, e, 4, exchange.Sell, "ETH-USD", "3412.89", "1.5", true)
	if o.Status != exchange.StatusFilled {
		t.Errorf("status = %s, want filled", o.Status)
	}
	if b := balance(t, st, 4, "ETH-USD"); !b.IsZero() {
		t.Errorf("seller holds %s, want 0", b)
	}
	if b := balance(t, st, mmUser, "ETH-USD"); !b.Equal(dec("1.5")) {
		t.Errorf("inventory holds %s, want 1.5", b)
	}
}

func TestMarketBuyInsufficientInventory(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, mmUser, "BTC-USD", "0.5")

	_, err := e.PlaceOrder(OrderRequest{
		UserID: 1, Side: exchange.Buy, Symbol: "BTC-USD",
		Price: dec("64321.55"), Quantity: dec("2"), Market: true,
	})
	if !errors.Is(err, exchange.ErrInsufficientMarketInventory) {
		t.Fatalf("expected ErrInsufficientMarketInventory, got %v", err)
	}

	// Nothing committed: no order, no trade, inventory untouched.
	trades, _ := st.Trades()
	if len(trades) != 0 {
		t.Errorf("rejected order produced trades")
	}
	orders, _ := st.OrdersByUser(1)
	if len(orders) != 0 {
		t.Errorf("rejected order was persisted")
	}
	if b := balance(t, st, mmUser, "BTC-USD"); !b.Equal(dec("0.5")) {
		t.Errorf("inventory moved on rejected order: %s", b)
	}
}

func TestLimitWalkPricePriority(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 2, "BTC-USD", "1")
	deposit(t, e, 3, "BTC-USD", "1")

	worse := place(t, e, 2, exchange.Sell, "BTC-USD", "64200", "1", false)
	better := place(t, e, 3, exchange.Sell, "BTC-USD", "64100", "1", false)

	buy := place(t, e, 1, exchange.Buy, "BTC-USD", "64300", "1.5", false)
	if buy.Status != exchange.StatusFilled {
		t.Errorf("taker status = %s, want filled", buy.Status)
	}

	trades, _ := st.Trades()
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	// Trades() is newest first: the better-priced maker filled first.
	first, second := trades[1], trades[0]
	if !first.Price.Equal(dec("64100")) || !first.Quantity.Equal(dec("1")) {
		t.Errorf("first fill = %s @ %s, want 1 @ 64100", first.Quantity, first.Price)
	}
	if first.Seller.OrderID != better.ID {
		t.Errorf("first fill against order %d, want %d", first.Seller.OrderID, better.ID)
	}
	// Each fill settles at the maker's price, not the taker's 64300.
	if !second.Price.Equal(dec("64200")) || !second.Quantity.Equal(dec("0.5")) {
		t.Errorf("second fill = %s @ %s, want 0.5 @ 64200", second.Quantity, second.Price)
	}

	rest, _ := st.GetOrder(worse.ID)
	if rest.Status != exchange.StatusOpen || !rest.Remaining().Equal(dec("0.5")) {
		t.Errorf("worse maker: status=%s remaining=%s, want open 0.5", rest.Status, rest.Remaining())
	}
	if b := balance(t, st, 1, "BTC-USD"); !b.Equal(dec("1.5")) {
		t.Errorf("buyer holds %s, want 1.5", b)
	}
}

func TestLimitTimePriorityAtSamePrice(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 2, "BTC-USD", "1")
	deposit(t, e, 3, "BTC-USD", "1")

	older := place(t, e, 2, exchange.Sell, "BTC-USD", "64100", "1", false)
	place(t, e, 3, exchange.Sell, "BTC-USD", "64100", "1", false)

	place(t, e, 1, exchange.Buy, "BTC-USD", "64100", "1", false)

	trades, _ := st.Trades()
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	if trades[0].Seller.OrderID != older.ID {
		t.Errorf("filled order %d, want the older %d", trades[0].Seller.OrderID, older.ID)
	}
}

func TestSellerInsufficientBalanceAborts(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 2, "BTC-USD", "0.5")

	resting := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)

	_, err := e.PlaceOrder(OrderRequest{
		UserID: 2, Side: exchange.Sell, Symbol: "BTC-USD",
		Price: dec("64000"), Quantity: dec("1"),
	})
	if !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The whole transaction aborted: resting order untouched, seller's
	// order not persisted, no trades.
	got, _ := st.GetOrder(resting.ID)
	if got.Status != exchange.StatusOpen || !got.Filled.IsZero() {
		t.Errorf("resting order mutated: status=%s filled=%s", got.Status, got.Filled)
	}
	if orders, _ := st.OrdersByUser(2); len(orders) != 0 {
		t.Errorf("aborted order was persisted")
	}
	if trades, _ := st.Trades(); len(trades) != 0 {
		t.Errorf("aborted walk produced trades")
	}
}

func TestQuantityConservation(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, mmUser, "BTC-USD", "10")
	deposit(t, e, 2, "BTC-USD", "3")

	place(t, e, 1, exchange.Buy, "BTC-USD", "64321.55", "2", true)
	place(t, e, 2, exchange.Sell, "BTC-USD", "64000", "3", false)
	place(t, e, 3, exchange.Buy, "BTC-USD", "64000", "1", false)

	total := decimal.Zero
	for _, u := range []exchange.UserID{mmUser, 1, 2, 3} {
		total = total.Add(balance(t, st, u, "BTC-USD"))
	}
	if !total.Equal(dec("13")) {
		t.Errorf("total holdings = %s, want 13", total)
	}
}

func TestLimitAtReferencePriceRejected(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.PlaceOrder(OrderRequest{
		UserID: 1, Side: exchange.Buy, Symbol: "BTC-USD",
		Price: dec("64321.55"), Quantity: dec("1"),
	})
	if !errors.Is(err, exchange.ErrUseMarketOrder) {
		t.Fatalf("expected ErrUseMarketOrder, got %v", err)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		name string
		req  OrderRequest
		want error
	}{
		{
			name: "bad side",
			req:  OrderRequest{UserID: 1, Side: "hold", Symbol: "BTC-USD", Price: dec("100"), Quantity: dec("1")},
			want: exchange.ErrBadRequest,
		},
		{
			name: "zero price",
			req:  OrderRequest{UserID: 1, Side: exchange.Buy, Symbol: "BTC-USD", Price: decimal.Zero, Quantity: dec("1")},
			want: exchange.ErrBadRequest,
		},
		{
			name: "negative quantity",
			req:  OrderRequest{UserID: 1, Side: exchange.Buy, Symbol: "BTC-USD", Price: dec("100"), Quantity: dec("-1")},
			want: exchange.ErrBadRequest,
		},
		{
			name: "unknown symbol",
			req:  OrderRequest{UserID: 1, Side: exchange.Buy, Symbol: "DOGE-EUR", Price: dec("100"), Quantity: dec("1")},
			want: exchange.ErrUnknownSymbol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.PlaceOrder(tt.req); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	e, st := newTestEngine(t)
	o := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)

	got, err := e.CancelOrder(1, o.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if got.Status != exchange.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if open, _ := st.OpenOrders("BTC-USD", exchange.Buy); len(open) != 0 {
		t.Errorf("cancelled order still matchable")
	}

	// Cancelling again is a no-op, not an error.
	again, err := e.CancelOrder(1, o.ID)
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if again.Status != exchange.StatusCancelled {
		t.Errorf("repeat cancel changed status to %s", again.Status)
	}
}

func TestCancelNotOwned(t *testing.T) {
	e, _ := newTestEngine(t)
	o := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)

	if _, err := e.CancelOrder(2, o.ID); !errors.Is(err, exchange.ErrNotFound) {
		t.Errorf("foreign cancel: got %v, want ErrNotFound", err)
	}
	if _, err := e.CancelOrder(1, o.ID+100); !errors.Is(err, exchange.ErrNotFound) {
		t.Errorf("missing order cancel: got %v, want ErrNotFound", err)
	}
}

func TestCancelFilledKeepsFill(t *testing.T) {
	e, _ := newTestEngine(t)
	deposit(t, e, 2, "BTC-USD", "1")
	place(t, e, 2, exchange.Sell, "BTC-USD", "64000", "1", false)
	buy := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)

	got, err := e.CancelOrder(1, buy.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if got.Status != exchange.StatusFilled {
		t.Errorf("cancel of filled order changed status to %s", got.Status)
	}
}

func TestDepositValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.Deposit(1, "BTC-USD", dec("-1")); !errors.Is(err, exchange.ErrBadRequest) {
		t.Errorf("negative deposit: got %v, want ErrBadRequest", err)
	}
	if _, err := e.Deposit(1, "NOPE", dec("1")); !errors.Is(err, exchange.ErrUnknownSymbol) {
		t.Errorf("unknown asset: got %v, want ErrUnknownSymbol", err)
	}

	bal, err := e.Deposit(1, "BTC-USD", dec("2.25"))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !bal.Amount.Equal(dec("2.25")) {
		t.Errorf("balance = %s, want 2.25", bal.Amount)
	}
}

func TestSelfTradeAllowed(t *testing.T) {
	e, st := newTestEngine(t)
	deposit(t, e, 1, "BTC-USD", "1")

	place(t, e, 1, exchange.Sell, "BTC-USD", "64000", "1", false)
	buy := place(t, e, 1, exchange.Buy, "BTC-USD", "64000", "1", false)
	if buy.Status != exchange.StatusFilled {
		t.Errorf("self-trade did not fill: %s", buy.Status)
	}
	if b := balance(t, st, 1, "BTC-USD"); !b.Equal(dec("1")) {
		t.Errorf("self-trade changed holdings: %s", b)
	}
}
