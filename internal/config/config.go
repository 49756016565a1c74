package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	App   AppConfig
	Cart  CartConfig
	DB    DBConfig
	Redis RedisConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env       string `envconfig:"CARTSTATE_APP_ENV" default:"dev"`
	Port      string `envconfig:"CARTSTATE_APP_PORT" default:"8080"`
	LogLevel  string `envconfig:"CARTSTATE_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"CARTSTATE_LOG_FORMAT" default:"json"`
}

type CartConfig struct {
	StorageKey            string          `envconfig:"CARTSTATE_STORAGE_KEY" default:"shopify-luxe-cart"`
	Backend               string          `envconfig:"CARTSTATE_BACKEND" default:"memory"`
	ShopDomain            string          `envconfig:"CARTSTATE_SHOP_DOMAIN" default:"the-website-preview.myshopify.com"`
	FreeShippingThreshold decimal.Decimal `envconfig:"CARTSTATE_FREE_SHIPPING_THRESHOLD" default:"200"`
}

type DBConfig struct {
	DSN     string `envconfig:"CARTSTATE_DB_DSN"`
	Channel string `envconfig:"CARTSTATE_DB_NOTIFY_CHANNEL" default:"cart_kv_changes"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTSTATE_REDIS_URL"`
	Address      string        `envconfig:"CARTSTATE_REDIS_ADDR"`
	Password     string        `envconfig:"CARTSTATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTSTATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTSTATE_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"CARTSTATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTSTATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTSTATE_REDIS_WRITE_TIMEOUT" default:"5s"`
	Channel      string        `envconfig:"CARTSTATE_REDIS_CHANNEL" default:"cs:changes"`
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Cart.StorageKey) == "" {
		return fmt.Errorf("CARTSTATE_STORAGE_KEY is empty")
	}

	c.Cart.Backend = strings.ToLower(strings.TrimSpace(c.Cart.Backend))
	switch c.Cart.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("CARTSTATE_DB_DSN is required for backend %q", c.Cart.Backend)
		}
	case BackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("CARTSTATE_REDIS_URL or CARTSTATE_REDIS_ADDR is required for backend %q", c.Cart.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Cart.Backend)
	}

	return nil
}
