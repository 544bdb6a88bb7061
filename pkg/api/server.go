package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/engine"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/query"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/price"
)

// userHeader carries the caller's account id. There is no authentication
// layer; the header is trusted as-is.
const userHeader = "X-User-ID"

// Server exposes the exchange over REST and the price channel over
// WebSocket.
type Server struct {
	engine *engine.Engine
	query  *query.Service
	prices *price.Service
	hub    *price.Hub
	router *mux.Router
	log    *zap.SugaredLogger

	allowedOrigins []string
}

func NewServer(eng *engine.Engine, qs *query.Service, ps *price.Service, hub *price.Hub, allowedOrigins []string, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:         eng,
		query:          qs,
		prices:         ps,
		hub:            hub,
		router:         mux.NewRouter(),
		log:            log,
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Trading
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// Queries
	api.HandleFunc("/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/prices", s.handleGetPrices).Methods("GET")

	// Funding
	api.HandleFunc("/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/balances/deposit", s.handleDeposit).Methods("POST")

	// Price stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wired HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", userHeader},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	order, err := s.engine.PlaceOrder(engine.OrderRequest{
		UserID:   user,
		Side:     exchange.Side(req.Side),
		Symbol:   req.Symbol,
		Price:    req.Price,
		Quantity: req.Quantity,
		Market:   req.Market,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, orderInfo(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.OrderID == 0 {
		s.respondError(w, http.StatusBadRequest, "missing order_id", nil)
		return
	}

	order, err := s.engine.CancelOrder(user, req.OrderID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, orderInfo(order))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	book, err := s.query.Book(r.URL.Query().Get("symbol"), page, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, BookResponse{
		Buys:       orderInfos(book.Buys),
		Sells:      orderInfos(book.Sells),
		Pagination: book.Pagination,
	})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, limit := pageParams(r)
	orders, err := s.query.UserOrders(user, query.OrderFilters{
		Symbol: q.Get("symbol"),
		Side:   exchange.Side(q.Get("side")),
		Status: exchange.OrderStatus(q.Get("status")),
	}, page, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, OrdersResponse{
		Orders:     orderInfos(orders.Orders),
		Pagination: orders.Pagination,
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	// mine=true scopes the history to the caller's trades.
	var user *exchange.UserID
	if r.URL.Query().Get("mine") == "true" {
		u, ok := s.userID(w, r)
		if !ok {
			return
		}
		user = &u
	}

	trades, err := s.query.Trades(user, page, limit)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, TradesResponse{
		Trades:     tradeInfos(trades.Trades),
		Pagination: trades.Pagination,
	})
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.prices.Table())
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	balances, err := s.query.Balances(user)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, balanceInfos(balances))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bal, err := s.engine.Deposit(user, req.Asset, req.Amount)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, balanceInfos([]exchange.Balance{bal})[0])
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (exchange.UserID, bool) {
	raw := r.Header.Get(userHeader)
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "missing "+userHeader+" header", nil)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid "+userHeader+" header", err)
		return 0, false
	}
	return exchange.UserID(id), true
}

func pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnw("response_encode_failed", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// respondDomainError maps exchange sentinel errors onto HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrBadRequest),
		errors.Is(err, exchange.ErrUseMarketOrder):
		status = http.StatusBadRequest
	case errors.Is(err, exchange.ErrUnknownSymbol),
		errors.Is(err, exchange.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, exchange.ErrInsufficientMarketInventory):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, exchange.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Errorw("internal_error", "err", err)
	}
	s.respondError(w, status, err.Error(), nil)
}
