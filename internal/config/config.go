package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig Postgres session index backend
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN lib/pq key=value connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv overrides fields from <prefix>_HOST, _PORT, _USER, _PASSWORD, _DATABASE, _SSLMODE.
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Port)
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_DATABASE"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
}

// RedisConfig session index backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoadFromEnv overrides fields from <prefix>_ADDR, <prefix>_PASSWORD, <prefix>_DB.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		fmt.Sscanf(db, "%d", &c.DB)
	}
}

// Config vacancy-report (HTTP API) configuration
type Config struct {
	HTTP struct {
		Addr string
	}

	// RedisEnabled=false keeps the session index in memory (single instance / local dev)
	RedisEnabled bool
	Redis        RedisConfig

	// DBEnabled keeps the session index in Postgres (used when Redis is disabled)
	DBEnabled bool
	Database  DatabaseConfig

	Upload struct {
		Dir      string
		MaxBytes int64
	}

	Session struct {
		TTL time.Duration
	}

	Report struct {
		// PhaseSchemaPath empty means the embedded default schema
		PhaseSchemaPath string
		// Timezone naive spreadsheet timestamps are interpreted in
		Timezone string
	}

	Log struct {
		Level  string
		Format string
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Database: "vacancy_report",
		SSLMode:  "disable",
		MaxConns: parseInt(getEnv("DB_MAX_CONNS", "10"), 10),
		MaxIdle:  parseInt(getEnv("DB_MAX_IDLE", "2"), 2),
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Upload.Dir = getEnv("UPLOAD_DIR", "uploads")
	cfg.Upload.MaxBytes = int64(parseInt(getEnv("UPLOAD_MAX_BYTES", "10485760"), 10*1024*1024))

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "12h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	cfg.Session.TTL = ttl

	cfg.Report.PhaseSchemaPath = getEnv("PHASE_SCHEMA_PATH", "")
	cfg.Report.Timezone = getEnv("TIMEZONE", "America/Sao_Paulo")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Location resolves Report.Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Report.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
