package store

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
)

func getOrder(r pebble.Reader, id exchange.OrderID) (*exchange.Order, error) {
	var o exchange.Order
	found, err := getJSON(r, orderKey(id), &o)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: order %d", exchange.ErrNotFound, id)
	}
	return &o, nil
}

// InsertOrder assigns an id and timestamps and writes the order with
// status open. Non-market orders also enter the book index so they become
// matchable the moment the transaction commits.
func (tx *Tx) InsertOrder(o *exchange.Order) error {
	o.ID = exchange.OrderID(tx.s.lastOrderID.Add(1))
	now := tx.s.clock.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Status = exchange.StatusOpen
	o.Filled = decimal.Zero

	if err := setJSON(tx.b, orderKey(o.ID), o); err != nil {
		return err
	}
	if err := tx.b.Set(userOrderKey(o.UserID, now.UnixNano(), o.ID), orderIDValue(o.ID), nil); err != nil {
		return fmt.Errorf("failed to index order %d for user %d: %w", o.ID, o.UserID, err)
	}
	if !o.Market {
		if err := tx.b.Set(bookKey(o), orderIDValue(o.ID), nil); err != nil {
			return fmt.Errorf("failed to index order %d in book: %w", o.ID, err)
		}
	}
	return nil
}

// UpdateOrder rewrites an order after a fill or cancellation. Orders in a
// terminal state leave the book index.
func (tx *Tx) UpdateOrder(o *exchange.Order) error {
	o.UpdatedAt = tx.s.clock.Now().UTC()
	if err := setJSON(tx.b, orderKey(o.ID), o); err != nil {
		return err
	}
	if o.Status.Terminal() && !o.Market {
		if err := tx.b.Delete(bookKey(o), nil); err != nil {
			return fmt.Errorf("failed to unindex order %d: %w", o.ID, err)
		}
	}
	return nil
}

// Order returns an order as the transaction currently sees it.
func (tx *Tx) Order(id exchange.OrderID) (*exchange.Order, error) {
	return getOrder(tx.b, id)
}

// crossesLimit reports whether a resting order's price fails the taker's
// limit: asks must not exceed it, bids must not fall below it.
func crossesLimit(restingSide exchange.Side, price, limit decimal.Decimal) bool {
	if restingSide == exchange.Sell {
		return price.GreaterThan(limit)
	}
	return price.LessThan(limit)
}

// MatchableOrders returns the open orders on restingSide whose price is
// compatible with limitPrice, best price first and oldest first within a
// price. The list is fixed at the moment of the call: the book index scan
// and the subsequent walk both happen inside the same transaction.
func (tx *Tx) MatchableOrders(symbol string, restingSide exchange.Side, limitPrice decimal.Decimal) ([]*exchange.Order, error) {
	prefix := bookSidePrefix(symbol, restingSide)
	iter, err := tx.b.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan book %s/%s: %w", symbol, restingSide, err)
	}
	defer iter.Close()

	var out []*exchange.Order
	for ok := iter.First(); ok; ok = iter.Next() {
		id, err := orderIDFromValue(iter.Value())
		if err != nil {
			return nil, err
		}
		o, err := getOrder(tx.b, id)
		if err != nil {
			return nil, err
		}
		// Keys are sorted best-first, so the first incompatible price
		// ends the scan.
		if crossesLimit(restingSide, o.Price, limitPrice) {
			break
		}
		out = append(out, o)
	}
	return out, nil
}

// GetOrder reads one committed order.
func (s *Store) GetOrder(id exchange.OrderID) (*exchange.Order, error) {
	return getOrder(s.db, id)
}

// OrdersByUser returns all committed orders of a user, newest first.
func (s *Store) OrdersByUser(user exchange.UserID) ([]*exchange.Order, error) {
	prefix := userOrderPrefix(user)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan orders for user %d: %w", user, err)
	}
	defer iter.Close()

	var out []*exchange.Order
	for ok := iter.First(); ok; ok = iter.Next() {
		id, err := orderIDFromValue(iter.Value())
		if err != nil {
			return nil, err
		}
		o, err := getOrder(s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// OpenOrders returns the committed resting orders on one side of the book,
// best price first. An empty symbol covers every symbol; ordering is then
// still price-major because the caller re-sorts across symbols.
func (s *Store) OpenOrders(symbol string, side exchange.Side) ([]*exchange.Order, error) {
	prefix := bookPrefix()
	if symbol != "" {
		prefix = bookSidePrefix(symbol, side)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}
	defer iter.Close()

	var out []*exchange.Order
	for ok := iter.First(); ok; ok = iter.Next() {
		id, err := orderIDFromValue(iter.Value())
		if err != nil {
			return nil, err
		}
		o, err := getOrder(s.db, id)
		if err != nil {
			return nil, err
		}
		if o.Side != side {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
