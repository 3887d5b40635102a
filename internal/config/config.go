package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Backend selection values.
const (
	BackendAuto   = "auto"
	BackendRemote = "remote"
	BackendDirect = "direct"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "QB_"

type Config struct {
	Env      string `yaml:"env" env:"ENV, overwrite"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL, overwrite"`
	Backend  string `yaml:"backend" env:"BACKEND, overwrite" validate:"oneof=auto remote direct"`

	Database   Database   `yaml:"database"`
	TableStore TableStore `yaml:"table_store"`
	Redis      Redis      `yaml:"redis"`
	Cache      struct {
		TTL string `yaml:"ttl" env:"CACHE_TTL, overwrite"`
	} `yaml:"cache"`
	Server struct {
		Addr string `yaml:"addr" env:"SERVER_ADDR, overwrite"`
	} `yaml:"server"`
}

// Database describes the direct-connection backend.
type Database struct {
	Host       string `yaml:"host" env:"DB_HOST, overwrite" validate:"required"`
	Port       int    `yaml:"port" env:"DB_PORT, overwrite" validate:"min=1,max=65535"`
	PooledPort int    `yaml:"pooled_port" env:"DB_POOLED_PORT, overwrite" validate:"min=1,max=65535"`
	Name       string `yaml:"name" env:"DB_NAME, overwrite" validate:"required"`
	User       string `yaml:"user" env:"DB_USER, overwrite"`
	Password   string `yaml:"password" env:"DB_PASSWORD, overwrite"`
	SSLMode    string `yaml:"sslmode" env:"DB_SSLMODE, overwrite"`
	Timeout    string `yaml:"timeout" env:"DB_TIMEOUT, overwrite"`
	AutoTest   bool   `yaml:"auto_test" env:"DB_AUTO_TEST, overwrite"`
}

// TableStore describes the remote HTTP table store.
type TableStore struct {
	URL       string `yaml:"url" env:"TABLESTORE_URL, overwrite"`
	APIKey    string `yaml:"api_key" env:"TABLESTORE_API_KEY, overwrite"`
	Token     string `yaml:"token" env:"TABLESTORE_TOKEN, overwrite"`
	Timeout   string `yaml:"timeout" env:"TABLESTORE_TIMEOUT, overwrite"`
	PingTable string `yaml:"ping_table" env:"TABLESTORE_PING_TABLE, overwrite"`
}

// Redis is optional; an empty Addr disables the shared lookup cache.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR, overwrite"`
	Password string `yaml:"password" env:"REDIS_PASSWORD, overwrite"`
	DB       int    `yaml:"db" env:"REDIS_DB, overwrite"`
	TTL      string `yaml:"ttl" env:"REDIS_TTL, overwrite"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{
		Env:      "production",
		LogLevel: "info",
		Backend:  BackendAuto,
		Database: Database{
			Host:       "localhost",
			Port:       5432,
			PooledPort: 6543,
			Name:       "postgres",
			User:       "postgres",
			SSLMode:    "require",
			Timeout:    "30s",
			AutoTest:   true,
		},
		TableStore: TableStore{
			Timeout:   "30s",
			PingTable: "users",
		},
	}
	cfg.Redis.TTL = "10m"
	cfg.Server.Addr = ":8080"
	return cfg
}

// Load reads YAML config from path, overlays QB_* environment variables and
// validates the result. A missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}
	return LoadWith(context.Background(), path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, env envconfig.Lookuper) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, env),
	}); err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DSN builds a connection string for host:port using the database settings.
func (d Database) DSN(host string, port int) string {
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	if secs := int(d.ConnectTimeout().Seconds()); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + d.Name,
		RawQuery: q.Encode(),
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	return u.String()
}

// ConnectTimeout is the parsed database timeout.
func (d Database) ConnectTimeout() time.Duration {
	return TTLDuration(d.Timeout, 30*time.Second)
}

// RequestTimeout is the parsed table-store timeout.
func (t TableStore) RequestTimeout() time.Duration {
	return TTLDuration(t.Timeout, 30*time.Second)
}

// Enabled reports whether the table store has been configured at all.
func (t TableStore) Enabled() bool { return t.URL != "" }

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
