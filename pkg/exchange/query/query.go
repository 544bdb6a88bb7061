package query

import (
	"fmt"
	"sort"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/store"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/symbol"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Pagination describes one page of a result set.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// OrderFilters narrows a user-order listing. Zero values mean "any".
type OrderFilters struct {
	Symbol string
	Side   exchange.Side
	Status exchange.OrderStatus
}

// Book is a public order-book snapshot: open buys (best bid first) and
// open sells (best ask first). Pagination applies to each side; the totals
// reflect the larger side.
type Book struct {
	Buys       []*exchange.Order `json:"buys"`
	Sells      []*exchange.Order `json:"sells"`
	Pagination Pagination        `json:"pagination"`
}

// Page of user orders.
type Orders struct {
	Orders     []*exchange.Order `json:"orders"`
	Pagination Pagination        `json:"pagination"`
}

// Page of trades.
type Trades struct {
	Trades     []*exchange.Trade `json:"trades"`
	Pagination Pagination        `json:"pagination"`
}

// Service serves read-only, paginated views over committed store state.
// It never observes in-progress matcher transactions.
type Service struct {
	store *store.Store
	reg   *symbol.Registry
}

func New(st *store.Store, reg *symbol.Registry) *Service {
	return &Service{store: st, reg: reg}
}

// Book returns the resting book, optionally filtered to one symbol.
func (s *Service) Book(sym string, page, limit int) (*Book, error) {
	if sym != "" && !s.reg.Exists(sym) {
		return nil, fmt.Errorf("%w: %s", exchange.ErrUnknownSymbol, sym)
	}

	buys, err := s.store.OpenOrders(sym, exchange.Buy)
	if err != nil {
		return nil, err
	}
	sells, err := s.store.OpenOrders(sym, exchange.Sell)
	if err != nil {
		return nil, err
	}
	sortBookSide(buys, true)
	sortBookSide(sells, false)

	pagedBuys, pb := paginate(buys, page, limit)
	pagedSells, ps := paginate(sells, page, limit)
	pg := pb
	if ps.TotalItems > pb.TotalItems {
		pg = ps
	}
	return &Book{Buys: pagedBuys, Sells: pagedSells, Pagination: pg}, nil
}

// UserOrders lists a user's orders, most recent first.
func (s *Service) UserOrders(user exchange.UserID, f OrderFilters, page, limit int) (*Orders, error) {
	if f.Symbol != "" && !s.reg.Exists(f.Symbol) {
		return nil, fmt.Errorf("%w: %s", exchange.ErrUnknownSymbol, f.Symbol)
	}
	if f.Side != "" && !f.Side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", exchange.ErrBadRequest, f.Side)
	}
	if f.Status != "" && !validStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", exchange.ErrBadRequest, f.Status)
	}

	orders, err := s.store.OrdersByUser(user)
	if err != nil {
		return nil, err
	}
	filtered := orders[:0:0]
	for _, o := range orders {
		if f.Symbol != "" && o.Symbol != f.Symbol {
			continue
		}
		if f.Side != "" && o.Side != f.Side {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		filtered = append(filtered, o)
	}

	paged, pg := paginate(filtered, page, limit)
	return &Orders{Orders: paged, Pagination: pg}, nil
}

// Trades lists trade history, newest first, scoped to one participant when
// user is non-nil.
func (s *Service) Trades(user *exchange.UserID, page, limit int) (*Trades, error) {
	var (
		trades []*exchange.Trade
		err    error
	)
	if user != nil {
		trades, err = s.store.TradesByUser(*user)
	} else {
		trades, err = s.store.Trades()
	}
	if err != nil {
		return nil, err
	}
	paged, pg := paginate(trades, page, limit)
	return &Trades{Trades: paged, Pagination: pg}, nil
}

// Balances returns a user's committed holdings.
func (s *Service) Balances(user exchange.UserID) ([]exchange.Balance, error) {
	return s.store.Balances(user)
}

// sortBookSide orders one side by price priority, then age. Cross-symbol
// listings share the same discipline.
func sortBookSide(orders []*exchange.Order, descending bool) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if !a.Price.Equal(b.Price) {
			if descending {
				return a.Price.GreaterThan(b.Price)
			}
			return a.Price.LessThan(b.Price)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func validStatus(st exchange.OrderStatus) bool {
	switch st {
	case exchange.StatusOpen, exchange.StatusFilled, exchange.StatusCancelled, exchange.StatusPartial:
		return true
	}
	return false
}

func paginate[T any](items []T, page, limit int) ([]T, Pagination) {
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], Pagination{
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		TotalItems: total,
	}
}
