package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PriceSource selects where the price service gets its quotes from.
const (
	PriceSourceSimulator = "simulator"
	PriceSourceExternal  = "external"
)

type Pricing struct {
	// Source is "simulator" or "external". The service falls back to the
	// simulator when the external provider is not wired in.
	Source string
	// TickInterval is the minimum interval between price ticks.
	TickInterval time.Duration
}

type Exchange struct {
	// DBPath is the pebble database directory for balances, orders and trades.
	DBPath string
	// MarketMakerID is the pseudo-user whose inventory fills market orders.
	MarketMakerID int64
	// Symbols overrides the built-in symbol universe when non-empty.
	// Comma-separated tickers, e.g. "BTC-USD,ETH-USD".
	Symbols []string
}

type API struct {
	Addr           string
	AllowedOrigins []string
}

type Events struct {
	// RedisAddr enables the Redis event sink when non-empty.
	RedisAddr string
}

type Config struct {
	Pricing  Pricing
	Exchange Exchange
	API      API
	Events   Events
	LogFile  string
}

func Default() Config {
	return Config{
		Pricing: Pricing{
			Source:       PriceSourceSimulator,
			TickInterval: time.Second,
		},
		Exchange: Exchange{
			DBPath:        "data/exchange.db",
			MarketMakerID: 0,
		},
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		LogFile: "data/exchanged.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if src := os.Getenv("PRICE_SOURCE"); src == PriceSourceSimulator || src == PriceSourceExternal {
		cfg.Pricing.Source = src
	}
	if tick := os.Getenv("TICK_INTERVAL_MS"); tick != "" {
		if ms, err := strconv.Atoi(tick); err == nil && ms > 0 {
			cfg.Pricing.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Exchange.DBPath = path
	}
	if mm := os.Getenv("MARKET_MAKER_USER_ID"); mm != "" {
		if id, err := strconv.ParseInt(mm, 10, 64); err == nil {
			cfg.Exchange.MarketMakerID = id
		}
	}
	if syms := os.Getenv("SUPPORTED_SYMBOLS"); syms != "" {
		for _, s := range strings.Split(syms, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Exchange.Symbols = append(cfg.Exchange.Symbols, s)
			}
		}
	}
	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = strings.Split(origins, ",")
	}
	if redis := os.Getenv("REDIS_ADDR"); redis != "" {
		cfg.Events.RedisAddr = redis
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	return cfg
}
