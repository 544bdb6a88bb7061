package store

import (
	"fmt"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
)

// AppendTrade writes an immutable trade record plus one participant index
// entry per distinct party. Trade records are never modified.
func (tx *Tx) AppendTrade(t *exchange.Trade) error {
	if err := setJSON(tx.b, tradeKey(t), t); err != nil {
		return err
	}
	if err := setJSON(tx.b, userTradeKey(t.Buyer.UserID, t), t); err != nil {
		return err
	}
	if t.Seller.UserID == t.Buyer.UserID {
		// Self-trade: one index entry is enough, the key would collide.
		return nil
	}
	if err := setJSON(tx.b, userTradeKey(t.Seller.UserID, t), t); err != nil {
		return err
	}
	return nil
}

// Trades returns all committed trades, newest first.
func (s *Store) Trades() ([]*exchange.Trade, error) {
	trades, err := scanJSON[*exchange.Trade](s.db, tradePrefix(), true)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// TradesByUser returns the committed trades where user is buyer or seller,
// newest first.
func (s *Store) TradesByUser(user exchange.UserID) ([]*exchange.Trade, error) {
	trades, err := scanJSON[*exchange.Trade](s.db, userTradePrefix(user), true)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for user %d: %w", user, err)
	}
	return trades, nil
}
