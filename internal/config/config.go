// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"

	"dicehouse/internal/contract"
	"dicehouse/internal/game"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port         int    `env:"PORT" envDefault:"8080"`
	RateLimit    int    `env:"RATE_LIMIT" envDefault:"100"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"dicehouse.db"`

	IndexerEnabled bool   `env:"INDEXER_ENABLED" envDefault:"false"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./migrations"`

	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	FaucetEnabled bool   `env:"FAUCET_ENABLED" envDefault:"false"`

	Redis    RedisConfig
	Database DatabaseConfig
	Contract ContractConfig
}

type RedisConfig struct {
	Addr     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// DatabaseConfig keeps the BLUEPRINT_DB_* names the migrate tool has always
// read.
type DatabaseConfig struct {
	Host     string `env:"BLUEPRINT_DB_HOST" envDefault:"localhost"`
	Port     string `env:"BLUEPRINT_DB_PORT" envDefault:"5432"`
	Database string `env:"BLUEPRINT_DB_DATABASE" envDefault:"dicehouse"`
	Username string `env:"BLUEPRINT_DB_USERNAME" envDefault:"postgres"`
	Password string `env:"BLUEPRINT_DB_PASSWORD" envDefault:"postgres"`
	Schema   string `env:"BLUEPRINT_DB_SCHEMA" envDefault:"public"`
}

// URL is the pgx connection string.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Database,
		RawQuery: "sslmode=disable&search_path=" + url.QueryEscape(d.Schema),
	}
	return u.String()
}

// ContractConfig is the instantiate message used on first boot.
type ContractConfig struct {
	Address           string      `env:"CONTRACT_ADDRESS" envDefault:"dice1house"`
	Denom             string      `env:"DENOM" envDefault:"udice"`
	MinBet            game.Amount `env:"MIN_BET" envDefault:"1"`
	MaxBet            game.Amount `env:"MAX_BET" envDefault:"1000000"`
	PayoutNumerator   uint64      `env:"PAYOUT_NUMERATOR" envDefault:"57"`
	PayoutDenominator uint64      `env:"PAYOUT_DENOMINATOR" envDefault:"10"`
	Admin             string      `env:"ADMIN_ADDRESS" envDefault:"dice1admin"`
	DieLow            int64       `env:"DIE_LOW" envDefault:"1"`
	DieHigh           int64       `env:"DIE_HIGH" envDefault:"6"`
}

func (c ContractConfig) InstantiateMsg() contract.InstantiateMsg {
	low, high := c.DieLow, c.DieHigh
	return contract.InstantiateMsg{
		MinBet:            c.MinBet,
		MaxBet:            c.MaxBet,
		PayoutNumerator:   c.PayoutNumerator,
		PayoutDenominator: c.PayoutDenominator,
		Admin:             c.Admin,
		Denom:             c.Denom,
		DieLow:            &low,
		DieHigh:           &high,
	}
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return Config{}, fmt.Errorf("parse env: STORE_BACKEND %q is not one of memory, redis, sqlite", cfg.StoreBackend)
	}
	return cfg, nil
}

// MigrateConfig is the subset of Config the migrate tool reads. It does not
// require JWT_SECRET.
type MigrateConfig struct {
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./migrations"`
	Database       DatabaseConfig
}

func LoadMigrate() (MigrateConfig, error) {
	var cfg MigrateConfig
	if err := env.Parse(&cfg); err != nil {
		return MigrateConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
