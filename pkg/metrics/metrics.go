package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exchange-core instrumentation, exported on /metrics by the API server.
var (
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_orders_placed_total",
			Help: "Orders accepted by the matching engine",
		},
		[]string{"symbol", "side", "market"},
	)

	OrdersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_orders_rejected_total",
			Help: "Order submissions rejected before commit",
		},
		[]string{"symbol", "reason"},
	)

	OrdersCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_orders_cancelled_total",
			Help: "Orders moved to the cancelled state",
		},
		[]string{"symbol"},
	)

	TradesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_trades_total",
			Help: "Trades recorded by the matching engine",
		},
		[]string{"symbol"},
	)

	TradeVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_trade_volume_total",
			Help: "Cumulative traded quantity per symbol",
		},
		[]string{"symbol"},
	)

	PriceTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exchange_price_ticks_total",
			Help: "Completed price-service ticks",
		},
	)

	PriceTickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_price_tick_errors_total",
			Help: "Per-symbol quote provider failures",
		},
		[]string{"ticker"},
	)

	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exchange_price_subscribers",
			Help: "Live price-channel subscribers",
		},
	)

	PublisherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exchange_event_publisher_errors_total",
			Help: "Event sink failures (swallowed)",
		},
	)
)
