package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres       Postgres
	Redis          Redis
	API            API
	CircuitBreaker CircuitBreaker
	Cache          Cache
	Ledger         Ledger
	Jobs           Jobs
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"migrations"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type API struct {
	Debug         bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout       time.Duration `env:"API_TIMEOUT" envDefault:"5s"`
	MarketDataApi MarketDataApi
}

type MarketDataApi struct {
	Url               string        `env:"MARKET_DATA_API_URL"`
	MaxRetries        int           `env:"MARKET_DATA_MAX_RETRIES" envDefault:"3"`
	InitialRetryDelay time.Duration `env:"MARKET_DATA_INITIAL_RETRY_DELAY" envDefault:"200ms"`
	MaxRetryDelay     time.Duration `env:"MARKET_DATA_MAX_RETRY_DELAY" envDefault:"2s"`
	// upper bound of pages read by the listing fallback for one symbol
	MaxScanPages int `env:"MARKET_DATA_MAX_SCAN_PAGES" envDefault:"50"`
}

type CircuitBreaker struct {
	Threshold int           `env:"CIRCUIT_BREAKER_THRESHOLD" envDefault:"5"`
	Timeout   time.Duration `env:"CIRCUIT_BREAKER_TIMEOUT" envDefault:"30s"`
}

type Cache struct {
	PriceTTL              time.Duration `env:"CACHE_PRICE_TTL" envDefault:"5m"`
	PriceRefreshThreshold time.Duration `env:"CACHE_PRICE_REFRESH_THRESHOLD" envDefault:"4m"`
	BatchSize             int           `env:"CACHE_BATCH_SIZE" envDefault:"25"`
}

type Ledger struct {
	PriceTolerance decimal.Decimal `env:"LEDGER_PRICE_TOLERANCE" envDefault:"0.02"`
}

type Jobs struct {
	RefreshPricesInterval time.Duration `env:"REFRESH_PRICES_JOB_INTERVAL" envDefault:"1m"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	if cfg.Cache.PriceRefreshThreshold >= cfg.Cache.PriceTTL {
		log.Fatalf("CACHE_PRICE_REFRESH_THRESHOLD (%s) must be less than CACHE_PRICE_TTL (%s)",
			cfg.Cache.PriceRefreshThreshold, cfg.Cache.PriceTTL)
	}

	return cfg
}
