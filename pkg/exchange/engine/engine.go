package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/events"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/store"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/symbol"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/metrics"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/util"
)

// OrderRequest is a validated-on-entry order submission.
type OrderRequest struct {
	UserID   exchange.UserID
	Side     exchange.Side
	Symbol   string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Market   bool
}

// Engine is the matching and settlement core. Every order submission runs
// inside one store transaction under the symbol's mutex, so committed
// outcomes are serializable and price-time priority holds within a walk.
type Engine struct {
	reg   *symbol.Registry
	store *store.Store
	mm    exchange.UserID
	pub   events.Publisher
	log   *zap.SugaredLogger
	clock util.Clock

	// One mutex per symbol. The symbol set is closed at process start, so
	// the map itself is never mutated after construction.
	symbolMu map[string]*sync.Mutex
}

// New builds an engine over the given registry and store. pub may be
// events.Nop; it is only ever called best-effort after commit.
func New(reg *symbol.Registry, st *store.Store, mm exchange.UserID, pub events.Publisher, log *zap.SugaredLogger) *Engine {
	mu := make(map[string]*sync.Mutex, reg.Count())
	for _, s := range reg.List() {
		mu[s.Ticker] = &sync.Mutex{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Engine{
		reg:      reg,
		store:    st,
		mm:       mm,
		pub:      pub,
		log:      log,
		clock:    util.RealClock{},
		symbolMu: mu,
	}
}

// SetClock replaces the wall clock used for trade timestamps.
func (e *Engine) SetClock(c util.Clock) { e.clock = c }

// MarketMaker returns the inventory account id.
func (e *Engine) MarketMaker() exchange.UserID { return e.mm }

// Deposit credits an account outside of matching. Funding is the only
// balance mutation that does not go through PlaceOrder.
func (e *Engine) Deposit(user exchange.UserID, asset string, amount decimal.Decimal) (exchange.Balance, error) {
	if !amount.IsPositive() {
		return exchange.Balance{}, fmt.Errorf("%w: deposit amount must be positive", exchange.ErrBadRequest)
	}
	if !e.reg.Exists(asset) {
		return exchange.Balance{}, fmt.Errorf("%w: %s", exchange.ErrUnknownSymbol, asset)
	}

	mu := e.symbolMu[asset]
	mu.Lock()
	defer mu.Unlock()

	tx := e.store.Begin()
	defer tx.Discard()

	if err := tx.Credit(user, asset, amount); err != nil {
		return exchange.Balance{}, err
	}
	bal, err := tx.Balance(user, asset)
	if err != nil {
		return exchange.Balance{}, err
	}
	if err := tx.Commit(); err != nil {
		return exchange.Balance{}, fmt.Errorf("failed to commit deposit: %w", err)
	}
	return bal, nil
}

// PlaceOrder validates req, runs the market- or limit-order protocol in a
// single transaction and returns the committed order. On any error the
// transaction is discarded and no order, trade or balance change is
// visible.
func (e *Engine) PlaceOrder(req OrderRequest) (*exchange.Order, error) {
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: side must be buy or sell", exchange.ErrBadRequest)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", exchange.ErrBadRequest)
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", exchange.ErrBadRequest)
	}
	sym, ok := e.reg.Get(req.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", exchange.ErrUnknownSymbol, req.Symbol)
	}

	mu := e.symbolMu[req.Symbol]
	mu.Lock()
	defer mu.Unlock()

	tx := e.store.Begin()
	defer tx.Discard()

	order := &exchange.Order{
		UserID:   req.UserID,
		Side:     req.Side,
		Symbol:   req.Symbol,
		Price:    req.Price,
		Quantity: req.Quantity,
		Market:   req.Market,
	}
	if err := tx.InsertOrder(order); err != nil {
		return nil, err
	}

	var trades []*exchange.Trade
	var err error
	if req.Market {
		trades, err = e.fillMarket(tx, order)
	} else {
		trades, err = e.matchLimit(tx, order, sym)
	}
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(req.Symbol, rejectReason(err)).Inc()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order %d: %w", order.ID, err)
	}

	metrics.OrdersPlaced.WithLabelValues(order.Symbol, string(order.Side), fmt.Sprintf("%t", order.Market)).Inc()
	e.publishTrades(trades)
	e.log.Infow("order_placed",
		"order_id", order.ID,
		"user_id", order.UserID,
		"symbol", order.Symbol,
		"side", order.Side,
		"market", order.Market,
		"status", order.Status,
		"filled", order.Filled,
		"trades", len(trades))
	return order, nil
}

// fillMarket settles a market order against the market-maker inventory
// account in full, at the caller-supplied price. It never rests: either it
// commits as filled or the transaction aborts.
func (e *Engine) fillMarket(tx *store.Tx, o *exchange.Order) ([]*exchange.Trade, error) {
	trade := &exchange.Trade{
		ID:         uuid.NewString(),
		Symbol:     o.Symbol,
		Price:      o.Price,
		Quantity:   o.Quantity,
		ExecutedAt: e.clock.Now().UTC(),
	}

	switch o.Side {
	case exchange.Sell:
		if err := tx.Reserve(o.UserID, o.Symbol, o.Quantity); err != nil {
			return nil, err
		}
		if err := tx.Credit(e.mm, o.Symbol, o.Quantity); err != nil {
			return nil, err
		}
		trade.Seller = exchange.OrderParty(o.ID, o.UserID)
		trade.Buyer = exchange.MarketMakerParty(e.mm)
	case exchange.Buy:
		if err := tx.Reserve(e.mm, o.Symbol, o.Quantity); err != nil {
			if errors.Is(err, exchange.ErrInsufficientBalance) {
				return nil, fmt.Errorf("%w: market maker holds too little %s",
					exchange.ErrInsufficientMarketInventory, o.Symbol)
			}
			return nil, err
		}
		if err := tx.Credit(o.UserID, o.Symbol, o.Quantity); err != nil {
			return nil, err
		}
		trade.Buyer = exchange.OrderParty(o.ID, o.UserID)
		trade.Seller = exchange.MarketMakerParty(e.mm)
	}

	if err := tx.AppendTrade(trade); err != nil {
		return nil, err
	}
	o.Filled = o.Quantity
	o.Status = exchange.StatusFilled
	if err := tx.UpdateOrder(o); err != nil {
		return nil, err
	}
	return []*exchange.Trade{trade}, nil
}

// matchLimit walks the opposite side of the book in price-time order,
// settling each fill at the resting (maker) price. The candidate list is
// fixed before the walk; the per-symbol mutex keeps new resting orders
// from appearing mid-walk.
func (e *Engine) matchLimit(tx *store.Tx, o *exchange.Order, sym symbol.Symbol) ([]*exchange.Trade, error) {
	// A limit order priced exactly at the reference price is
	// indistinguishable from a market order; reject it.
	if o.Price.Equal(sym.SeedPrice) {
		return nil, fmt.Errorf("%w: %s at %s", exchange.ErrUseMarketOrder, o.Symbol, o.Price)
	}

	candidates, err := tx.MatchableOrders(o.Symbol, o.Side.Opposite(), o.Price)
	if err != nil {
		return nil, err
	}

	var trades []*exchange.Trade
	remaining := o.Quantity
	for _, cand := range candidates {
		if remaining.IsZero() {
			break
		}
		available := cand.Remaining()
		if !available.IsPositive() {
			continue
		}

		tradeQty := decimal.Min(remaining, available)
		// Maker price, never the taker's submitted price.
		tradePrice := cand.Price

		var buyer, seller *exchange.Order
		if o.Side == exchange.Buy {
			buyer, seller = o, cand
		} else {
			buyer, seller = cand, o
		}

		// A failed reservation aborts the whole transaction, so no
		// partial walk is ever observable.
		if err := tx.Reserve(seller.UserID, o.Symbol, tradeQty); err != nil {
			return nil, err
		}
		if err := tx.Credit(buyer.UserID, o.Symbol, tradeQty); err != nil {
			return nil, err
		}

		trade := &exchange.Trade{
			ID:         uuid.NewString(),
			Symbol:     o.Symbol,
			Price:      tradePrice,
			Quantity:   tradeQty,
			Buyer:      exchange.OrderParty(buyer.ID, buyer.UserID),
			Seller:     exchange.OrderParty(seller.ID, seller.UserID),
			ExecutedAt: e.clock.Now().UTC(),
		}
		if err := tx.AppendTrade(trade); err != nil {
			return nil, err
		}
		trades = append(trades, trade)

		cand.Filled = cand.Filled.Add(tradeQty)
		if cand.Remaining().IsZero() {
			cand.Status = exchange.StatusFilled
		}
		if err := tx.UpdateOrder(cand); err != nil {
			return nil, err
		}

		o.Filled = o.Filled.Add(tradeQty)
		remaining = remaining.Sub(tradeQty)
	}

	if remaining.IsZero() {
		o.Status = exchange.StatusFilled
	}
	// Partially filled orders stay open; the book index entry from the
	// insert keeps the remainder matchable.
	if err := tx.UpdateOrder(o); err != nil {
		return nil, err
	}
	return trades, nil
}

// CancelOrder marks an order cancelled. The caller must own the order;
// anything else reports NotFound rather than leaking existence. Cancelling
// an order already in a terminal state returns it unchanged.
func (e *Engine) CancelOrder(user exchange.UserID, id exchange.OrderID) (*exchange.Order, error) {
	committed, err := e.store.GetOrder(id)
	if err != nil {
		return nil, err
	}
	if committed.UserID != user {
		return nil, fmt.Errorf("%w: order %d", exchange.ErrNotFound, id)
	}
	if committed.Status.Terminal() {
		return committed, nil
	}

	mu, ok := e.symbolMu[committed.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", exchange.ErrUnknownSymbol, committed.Symbol)
	}
	mu.Lock()
	defer mu.Unlock()

	tx := e.store.Begin()
	defer tx.Discard()

	o, err := tx.Order(id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return o, nil
	}
	// Cancellation after a partial fill preserves the filled quantity.
	o.Status = exchange.StatusCancelled
	if err := tx.UpdateOrder(o); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancel of order %d: %w", id, err)
	}

	metrics.OrdersCancelled.WithLabelValues(o.Symbol).Inc()
	e.log.Infow("order_cancelled", "order_id", o.ID, "user_id", o.UserID, "symbol", o.Symbol, "filled", o.Filled)
	return o, nil
}

// publishTrades forwards committed trades to the event sink. Failures are
// counted and logged, never surfaced.
func (e *Engine) publishTrades(trades []*exchange.Trade) {
	for _, t := range trades {
		metrics.TradesExecuted.WithLabelValues(t.Symbol).Inc()
		vol, _ := t.Quantity.Float64()
		metrics.TradeVolume.WithLabelValues(t.Symbol).Add(vol)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := e.pub.PublishTrade(ctx, t)
		cancel()
		if err != nil {
			metrics.PublisherErrors.Inc()
			e.log.Warnw("trade_publish_failed", "trade_id", t.ID, "err", err)
		}
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, exchange.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, exchange.ErrInsufficientMarketInventory):
		return "insufficient_market_inventory"
	case errors.Is(err, exchange.ErrUseMarketOrder):
		return "use_market_order"
	default:
		return "internal"
	}
}
