package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManishgandotraCoder/forkast-sub000/params"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/api"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/events"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/engine"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/query"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/store"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/exchange/symbol"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/price"
	"github.com/ManishgandotraCoder/forkast-sub000/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Storage ----
	st, err := store.Open(cfg.Exchange.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Exchange.DBPath, "err", err)
	}
	defer st.Close()

	reg := symbol.NewRegistry(symbol.FromTickers(cfg.Exchange.Symbols))
	sugar.Infow("symbols_registered", "count", reg.Count())

	// ---- Event sink (optional) ----
	var pub events.Publisher = events.Nop{}
	if cfg.Events.RedisAddr != "" {
		rp, err := events.NewRedisPublisher(cfg.Events.RedisAddr)
		if err != nil {
			// The sink is best-effort everywhere; run without it.
			sugar.Warnw("redis_unavailable", "addr", cfg.Events.RedisAddr, "err", err)
		} else {
			pub = rp
			defer rp.Close()
			sugar.Infow("redis_events_enabled", "addr", cfg.Events.RedisAddr)
		}
	}

	// ---- Matching engine and queries ----
	mm := exchange.UserID(cfg.Exchange.MarketMakerID)
	eng := engine.New(reg, st, mm, pub, sugar)
	qs := query.New(st, reg)

	// ---- Price service ----
	var quoter price.Quoter
	switch cfg.Pricing.Source {
	case params.PriceSourceExternal:
		quoter = price.NewCoinbaseQuoter()
		sugar.Infow("price_source", "source", "coinbase")
	default:
		quoter = price.NewSimulator(reg.List(), time.Now().UnixNano())
		sugar.Infow("price_source", "source", "simulator")
	}

	hub := price.NewHub(sugar)
	prices := price.NewService(reg, quoter, hub, pub, cfg.Pricing.TickInterval, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first tick runs synchronously inside Start. Gate the API on it so
	// clients never see seed prices presented as live quotes.
	started := make(chan struct{})
	go func() {
		prices.StartNotify(ctx, started)
	}()
	select {
	case <-started:
	case <-ctx.Done():
		return
	}

	// ---- API server ----
	server := api.NewServer(eng, qs, prices, hub, cfg.API.AllowedOrigins, sugar)
	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("exchanged_started",
		"api_addr", cfg.API.Addr,
		"db_path", cfg.Exchange.DBPath,
		"market_maker", mm,
		"tick_interval", cfg.Pricing.TickInterval)

	<-ctx.Done()
	sugar.Infow("exchanged_stopping")
}
