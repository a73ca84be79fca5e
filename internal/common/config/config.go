package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	API struct {
		BaseURL string        `env:"API_BASE_URL" envDefault:"https://api.jaudifinance.com"`
		Timeout time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	}

	Sync struct {
		MaxRetries int           `env:"SYNC_MAX_RETRIES" envDefault:"3"`
		BaseDelay  time.Duration `env:"SYNC_BASE_DELAY" envDefault:"5s"`
		// Cron spec for the periodic background drain.
		Schedule string `env:"SYNC_SCHEDULE" envDefault:"@every 30s"`
	}

	Monitor struct {
		Interval     time.Duration `env:"MONITOR_INTERVAL" envDefault:"10s"`
		ProbeTimeout time.Duration `env:"MONITOR_PROBE_TIMEOUT" envDefault:"3s"`
	}

	Security struct {
		SigningKey  string        `env:"SIGNING_KEY,required"`
		SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`
		AuthTimeout time.Duration `env:"AUTH_TIMEOUT" envDefault:"30s"`
		// Directory for locally persisted credentials.
		SecretsDir string `env:"SECRETS_DIR" envDefault:"data/secrets"`
	}

	Rates struct {
		BaseCurrency string `env:"RATES_BASE_CURRENCY" envDefault:"SLE"`
		// Cron spec for the cached-rate refresh worker.
		RefreshSchedule string   `env:"RATES_REFRESH_SCHEDULE" envDefault:"@every 15m"`
		Currencies      []string `env:"RATES_CURRENCIES" envSeparator:"," envDefault:"USD,EUR,GBP"`
	}

	Storage struct {
		SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"data/appstate.json"`
	}
}

func Load() *Config {
	// Missing .env is fine; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
