// Package config loads server settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables win over it, and command-line flags win over both.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/inventory-engine/stock"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	AppEnv          string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type EngineConfig struct {
	HistoricalLockDays   int
	DefaultLowStockLimit int
	WarehouseMarker      string
	RecentTransactions   int
}

// Settings converts the engine section into stock.Settings.
func (e EngineConfig) Settings() stock.Settings {
	return stock.Settings{
		WarehouseMarker:      e.WarehouseMarker,
		DefaultLowStockLimit: e.DefaultLowStockLimit,
		HistoricalLock:       time.Duration(e.HistoricalLockDays) * 24 * time.Hour,
		RecentTransactions:   e.RecentTransactions,
	}
}

// Load reads .env (if any), the environment, then args as flags.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()
	cfg := LoadEnv()

	fs := flag.NewFlagSet("inventory-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP server port")
	fs.StringVar(&cfg.Database.Driver, "db-driver", cfg.Database.Driver, "database driver (sqlite|postgres)")
	fs.StringVar(&cfg.Database.DSN, "db", cfg.Database.DSN, "database path or DSN")
	fs.StringVar(&cfg.Logger.Level, "log-level", cfg.Logger.Level, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv builds the configuration from environment variables alone.
func LoadEnv() *Config {
	defaults := stock.DefaultSettings()
	appEnv := getEnv("APP_ENV", "development")
	dev := appEnv == "development"

	encoding := "json"
	if dev {
		encoding = "console"
	}

	return &Config{
		Server: ServerConfig{
			AppEnv:          appEnv,
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", encoding),
			Development:       dev,
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_DSN", "inventory.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Engine: EngineConfig{
			HistoricalLockDays:   getEnvInt("HISTORICAL_LOCK_DAYS", int(defaults.HistoricalLock/(24*time.Hour))),
			DefaultLowStockLimit: getEnvInt("DEFAULT_LOW_STOCK_LIMIT", defaults.DefaultLowStockLimit),
			WarehouseMarker:      getEnv("WAREHOUSE_MARKER", defaults.WarehouseMarker),
			RecentTransactions:   getEnvInt("DASHBOARD_RECENT_TRANSACTIONS", defaults.RecentTransactions),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return fallback
}
