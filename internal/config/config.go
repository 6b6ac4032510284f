package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Backend   BackendConfig  `mapstructure:"backend"`
	Database  DatabaseConfig `mapstructure:"database"`
	Runtime   RuntimeConfig  `mapstructure:"runtime"`
	JWTSecret string         `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// BackendConfig selects where records live: "embedded" serves the data
// contract locally from the configured database, "remote" points the
// runtime at an external backend.
type BackendConfig struct {
	Mode      string   `mapstructure:"mode"`
	BaseURL   string   `mapstructure:"base_url"`
	Token     string   `mapstructure:"token"`
	SchemaIDs []string `mapstructure:"schema_ids"` // schemas to fetch from a remote backend at startup
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type RuntimeConfig struct {
	SchemaDir       string `mapstructure:"schema_dir"`
	DebounceMs      int    `mapstructure:"debounce_ms"`
	DefaultPageSize int    `mapstructure:"default_page_size"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// Debounce returns the search quiet period.
func (r RuntimeConfig) Debounce() time.Duration {
	return time.Duration(r.DebounceMs) * time.Millisecond
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("backend.mode", "embedded")
	viper.SetDefault("backend.base_url", "http://localhost:8080")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.name", "metagrid")
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("runtime.schema_dir", "./schemas")
	viper.SetDefault("runtime.debounce_ms", 600)
	viper.SetDefault("runtime.default_page_size", 25)
	viper.SetDefault("jwt_secret", "changeme-secret")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
