package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
)

// Pebble key schema.
// Design principles:
//  1. Prefix-based for range scans (all balances of a user, one side of a book).
//  2. Zero-padded numeric segments so lexicographic order equals numeric order.
//  3. The book index encodes price-time priority directly in the key: a
//     forward scan visits best price first, oldest first within a price.
const (
	prefixBalance   = "bal/"
	prefixOrder     = "ord/"
	prefixUserOrder = "uord/"
	prefixBook      = "book/"
	prefixTrade     = "trade/"
	prefixUserTrade = "utrade/"
)

// priceScale positions eight fractional digits into the integer key segment.
const priceScale = 8

// balanceKey returns the key for one (user, asset) holding.
// Format: "bal/{user}/{asset}"
func balanceKey(user exchange.UserID, asset string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", prefixBalance, user, asset))
}

// balancePrefix covers all holdings of one user.
func balancePrefix(user exchange.UserID) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixBalance, user))
}

// orderKey returns the primary key for an order.
// Format: "ord/{id}"
func orderKey(id exchange.OrderID) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

func orderPrefix() []byte { return []byte(prefixOrder) }

// userOrderKey indexes orders per user, newest first on a forward scan.
// Format: "uord/{user}/{^created_ns}/{id}"
func userOrderKey(user exchange.UserID, createdNS int64, id exchange.OrderID) []byte {
	return []byte(fmt.Sprintf("%s%020d/%019d/%020d", prefixUserOrder, user, math.MaxInt64-createdNS, id))
}

func userOrderPrefix(user exchange.UserID) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixUserOrder, user))
}

// bookKey indexes open orders by (symbol, side, price priority, time priority).
// Sells sort ascending by price (lowest ask first); buys use the complemented
// price so the highest bid comes first. Format:
// "book/{symbol}/{side}/{pricekey}/{created_ns}/{id}"
func bookKey(o *exchange.Order) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%019d/%019d/%020d",
		prefixBook, o.Symbol, o.Side, priceSortKey(o.Side, o.Price), o.CreatedAt.UnixNano(), o.ID))
}

// bookSidePrefix covers one side of one symbol's book.
func bookSidePrefix(symbol string, side exchange.Side) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/", prefixBook, symbol, side))
}

func bookPrefix() []byte { return []byte(prefixBook) }

// priceSortKey scales a price to integer units of 1e-8 and, for bids,
// complements it so best-first ordering falls out of a forward scan.
func priceSortKey(side exchange.Side, price decimal.Decimal) int64 {
	units := price.Shift(priceScale).IntPart()
	if side == exchange.Buy {
		return math.MaxInt64 - units
	}
	return units
}

// tradeKey orders trades chronologically; the uuid breaks ties within one
// nanosecond. Format: "trade/{executed_ns}/{uuid}"
func tradeKey(t *exchange.Trade) []byte {
	return []byte(fmt.Sprintf("%s%019d/%s", prefixTrade, t.ExecutedAt.UnixNano(), t.ID))
}

func tradePrefix() []byte { return []byte(prefixTrade) }

// userTradeKey indexes trades per participant.
// Format: "utrade/{user}/{executed_ns}/{uuid}"
func userTradeKey(user exchange.UserID, t *exchange.Trade) []byte {
	return []byte(fmt.Sprintf("%s%020d/%019d/%s", prefixUserTrade, user, t.ExecutedAt.UnixNano(), t.ID))
}

func userTradePrefix(user exchange.UserID) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixUserTrade, user))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// orderIDFromValue parses an index value back into an order id.
func orderIDFromValue(v []byte) (exchange.OrderID, error) {
	id, err := strconv.ParseUint(strings.TrimLeft(string(v), "0"), 10, 64)
	if err != nil {
		if strings.Trim(string(v), "0") == "" {
			return 0, fmt.Errorf("index value names the zero order id")
		}
		return 0, fmt.Errorf("bad index value %q: %w", v, err)
	}
	return exchange.OrderID(id), nil
}

// orderIDValue renders an order id for storage in index values.
func orderIDValue(id exchange.OrderID) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}
