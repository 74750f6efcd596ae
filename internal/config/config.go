// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/oracle"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	AllowedOrigins       []string      // CORS allowlist in production
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
}

// DBConfig holds PostgreSQL connection settings.  An empty DSN in development
// disables persistence entirely: the engine runs purely in memory.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	Secret    string        // must be set
	AccessTTL time.Duration // default 24h
}

// EngineConfig holds the market engine policy knobs.
type EngineConfig struct {
	ProtocolShareBps int64           // protocol's share of withdrawn fees, default 2000 (20%)
	ProtocolAccount  uuid.UUID       // treasury account credited on fee withdrawal
	MinSeed          decimal.Decimal // minimum seed collateral in micro-units
	FaucetEnabled    bool            // dev-only collateral faucet
	FaucetCap        decimal.Decimal // max micro-units per faucet call
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Engine EngineConfig
	Oracle oracle.Config
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}

	if c.IsProd() {
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
		}
		if c.Engine.FaucetEnabled {
			errs = append(errs, errors.New("FAUCET_ENABLED must be off in production"))
		}
	}

	if c.Engine.ProtocolShareBps < 0 || c.Engine.ProtocolShareBps > domain.FeeDenominator {
		errs = append(errs, fmt.Errorf(
			"ENGINE_PROTOCOL_SHARE_BPS must be within 0..%d, got %d",
			domain.FeeDenominator, c.Engine.ProtocolShareBps,
		))
	}
	if c.Engine.ProtocolAccount == uuid.Nil {
		errs = append(errs, errors.New("ENGINE_PROTOCOL_ACCOUNT must be a valid UUID"))
	}
	if c.Engine.MinSeed.IsNegative() || !c.Engine.MinSeed.IsInteger() {
		errs = append(errs, fmt.Errorf(
			"ENGINE_MIN_SEED must be a non-negative whole number of micro-units, got %s",
			c.Engine.MinSeed,
		))
	}

	total := c.Oracle.BinanceWeight + c.Oracle.BybitWeight + c.Oracle.OKXWeight
	if total != 100 {
		errs = append(errs, fmt.Errorf(
			"oracle weights must sum to 100, got %d (Binance=%d Bybit=%d OKX=%d)",
			total, c.Oracle.BinanceWeight, c.Oracle.BybitWeight, c.Oracle.OKXWeight,
		))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	var origins []string
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			origins = append(origins, strings.TrimSpace(o))
		}
	}
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins:       origins,
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB = DBConfig{
		DSN:             os.Getenv("DATABASE_DSN"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		Secret:    getEnv("JWT_SECRET", ""),
		AccessTTL: getDuration("JWT_ACCESS_TTL", 24*time.Hour),
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	shareBps, err := getInt("ENGINE_PROTOCOL_SHARE_BPS", 2000)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_PROTOCOL_SHARE_BPS: %w", err)
	}
	minSeed, err := getDecimal("ENGINE_MIN_SEED", domain.Units(1))
	if err != nil {
		return nil, fmt.Errorf("ENGINE_MIN_SEED: %w", err)
	}
	faucetCap, err := getDecimal("FAUCET_CAP", domain.Units(1000))
	if err != nil {
		return nil, fmt.Errorf("FAUCET_CAP: %w", err)
	}
	protocolAccount := uuid.Nil
	if raw := os.Getenv("ENGINE_PROTOCOL_ACCOUNT"); raw != "" {
		protocolAccount, err = uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("ENGINE_PROTOCOL_ACCOUNT: invalid uuid %q", raw)
		}
	} else if getEnv("ENVIRONMENT", "development") != "production" {
		// Development: a throwaway treasury so the server boots without setup.
		protocolAccount = uuid.New()
	}
	cfg.Engine = EngineConfig{
		ProtocolShareBps: int64(shareBps),
		ProtocolAccount:  protocolAccount,
		MinSeed:          minSeed,
		FaucetEnabled:    getEnv("FAUCET_ENABLED", "true") == "true",
		FaucetCap:        faucetCap,
	}

	// ── Oracle ────────────────────────────────────────────────────────────────
	binW, err := getInt("ORACLE_BINANCE_WEIGHT", 50)
	if err != nil {
		return nil, fmt.Errorf("ORACLE_BINANCE_WEIGHT: %w", err)
	}
	byW, err := getInt("ORACLE_BYBIT_WEIGHT", 30)
	if err != nil {
		return nil, fmt.Errorf("ORACLE_BYBIT_WEIGHT: %w", err)
	}
	okxW, err := getInt("ORACLE_OKX_WEIGHT", 20)
	if err != nil {
		return nil, fmt.Errorf("ORACLE_OKX_WEIGHT: %w", err)
	}
	cfg.Oracle = oracle.Config{
		BinanceURL:    getEnv("ORACLE_BINANCE_URL", "https://api.binance.com"),
		BybitURL:      getEnv("ORACLE_BYBIT_URL", "https://api.bybit.com"),
		OKXURL:        getEnv("ORACLE_OKX_URL", "https://www.okx.com"),
		FetchTimeout:  getDuration("ORACLE_FETCH_TIMEOUT", 2*time.Second),
		CacheTTL:      getDuration("ORACLE_CACHE_TTL", 1*time.Second),
		BinanceWeight: binW,
		BybitWeight:   byW,
		OKXWeight:     okxW,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// getDecimal parses an env var as a decimal amount of micro-units.
func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", v)
	}
	return d, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
