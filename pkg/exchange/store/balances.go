package store

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
)

// getBalance loads one holding. A missing row is a zero balance.
func getBalance(r pebble.Reader, user exchange.UserID, asset string) (exchange.Balance, error) {
	bal := exchange.Balance{
		UserID: user,
		Asset:  asset,
		Amount: decimal.Zero,
		Locked: decimal.Zero,
	}
	if _, err := getJSON(r, balanceKey(user, asset), &bal); err != nil {
		return exchange.Balance{}, err
	}
	return bal, nil
}

// Balance returns the holding as the transaction currently sees it,
// staged writes included.
func (tx *Tx) Balance(user exchange.UserID, asset string) (exchange.Balance, error) {
	return getBalance(tx.b, user, asset)
}

// Reserve decrements a user's holding, failing with ErrInsufficientBalance
// when the amount exceeds what the user holds. The paired Credit must run
// inside the same transaction so no intermediate state is ever visible.
func (tx *Tx) Reserve(user exchange.UserID, asset string, amount decimal.Decimal) error {
	bal, err := getBalance(tx.b, user, asset)
	if err != nil {
		return err
	}
	if amount.GreaterThan(bal.Amount) {
		return fmt.Errorf("%w: user %d holds %s %s, need %s",
			exchange.ErrInsufficientBalance, user, bal.Amount, asset, amount)
	}
	bal.Amount = bal.Amount.Sub(amount)
	return setJSON(tx.b, balanceKey(user, asset), bal)
}

// Credit increments a user's holding, creating the row if absent.
func (tx *Tx) Credit(user exchange.UserID, asset string, amount decimal.Decimal) error {
	bal, err := getBalance(tx.b, user, asset)
	if err != nil {
		return err
	}
	bal.Amount = bal.Amount.Add(amount)
	return setJSON(tx.b, balanceKey(user, asset), bal)
}

// BalanceOf reads one committed holding outside any transaction.
func (s *Store) BalanceOf(user exchange.UserID, asset string) (exchange.Balance, error) {
	return getBalance(s.db, user, asset)
}

// Balances returns all committed holdings of a user, ordered by asset.
func (s *Store) Balances(user exchange.UserID) ([]exchange.Balance, error) {
	return scanJSON[exchange.Balance](s.db, balancePrefix(user), false)
}
