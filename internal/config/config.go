// Package config loads splitbill settings from an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Receipts  ReceiptsConfig  `yaml:"receipts"`
	Companion CompanionConfig `yaml:"companion"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig governs the Connect HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MetricsEnabled  bool          `yaml:"metricsEnabled"`
}

// Addr is host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite|mongo
	Path   string `yaml:"path"`

	MongoURI          string `yaml:"mongoURI"`
	MongoDatabase     string `yaml:"mongoDatabase"`
	MongoTransactions bool   `yaml:"mongoTransactions"`
}

// AuthConfig controls session tokens.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwtSecret"`
	TokenDuration time.Duration `yaml:"tokenDuration"`
}

// SessionConfig locates the persisted local session.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// ReceiptsConfig configures the receipt image store. An empty Dir disables receipts.
type ReceiptsConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"baseURL"`
}

// CompanionConfig points at the paired companion. An empty URL means unpaired.
type CompanionConfig struct {
	URL        string `yaml:"url"`
	ListenAddr string `yaml:"listenAddr"`
}

// LedgerConfig tunes the ledger engine.
type LedgerConfig struct {
	MaxConcurrentCalls int `yaml:"maxConcurrentCalls"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			MetricsEnabled:  true,
		},
		Store: StoreConfig{
			Driver:        DriverSQLite,
			Path:          "./data/splitbill.db",
			MongoDatabase: "splitbill",
		},
		Auth: AuthConfig{
			TokenDuration: 24 * time.Hour,
		},
		Session: SessionConfig{
			Path: "./data/session",
		},
		Receipts: ReceiptsConfig{
			Dir: "./data/receipts",
		},
		Companion: CompanionConfig{
			ListenAddr: "127.0.0.1:8081",
		},
		Ledger: LedgerConfig{
			MaxConcurrentCalls: 16,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "SPLITBILL_HOST")
	setString(&cfg.Store.Driver, "SPLITBILL_STORE")
	setString(&cfg.Store.Path, "DB_PATH")
	setString(&cfg.Store.MongoURI, "SPLITBILL_MONGO_URI")
	setString(&cfg.Store.MongoDatabase, "SPLITBILL_MONGO_DATABASE")
	setString(&cfg.Auth.JWTSecret, "SPLITBILL_JWT_SECRET")
	setString(&cfg.Session.Path, "SPLITBILL_SESSION_PATH")
	setString(&cfg.Receipts.Dir, "SPLITBILL_RECEIPTS_DIR")
	setString(&cfg.Receipts.BaseURL, "SPLITBILL_RECEIPTS_BASE_URL")
	setString(&cfg.Companion.URL, "SPLITBILL_COMPANION_URL")
	setString(&cfg.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("SPLITBILL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SPLITBILL_PORT value %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SPLITBILL_TOKEN_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SPLITBILL_TOKEN_DURATION: %w", err)
		}
		cfg.Auth.TokenDuration = d
	}
	if v := os.Getenv("SPLITBILL_MAX_CONCURRENT_CALLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SPLITBILL_MAX_CONCURRENT_CALLS value %q: %w", v, err)
		}
		cfg.Ledger.MaxConcurrentCalls = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Server.Port))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongoURI is required for mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Auth.TokenDuration <= 0 {
		errs = append(errs, errors.New("auth.tokenDuration must be positive"))
	}
	if c.Ledger.MaxConcurrentCalls < 0 {
		errs = append(errs, errors.New("ledger.maxConcurrentCalls must not be negative"))
	}
	return errors.Join(errs...)
}
