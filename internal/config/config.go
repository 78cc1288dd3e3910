package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration, populated from the
// environment with sane defaults for local development.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Attendance AttendanceConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	RateBurst       int           `env:"SERVER_RATE_BURST" env-default:"20"`
	RatePerSecond   int           `env:"SERVER_RATE_PER_SECOND" env-default:"10"`
	MaxBodyBytes    int64         `env:"SERVER_MAX_BODY_BYTES" env-default:"1048576"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty DSN keeps
// the service on its in-memory stores.
type DatabaseConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" env-default:"30m"`
}

// RedisConfig holds the pub/sub broker settings. An empty address keeps the
// service on the in-process hub.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	Secret    string        `env:"AUTH_SECRET" env-default:"dev-signing-secret-change"`
	Issuer    string        `env:"AUTH_ISSUER" env-default:"fieldpulse"`
	AccessTTL time.Duration `env:"AUTH_ACCESS_TTL" env-default:"12h"`
}

// AttendanceConfig holds attendance policy settings.
type AttendanceConfig struct {
	// LateAfter is the wall-clock UTC cutoff (HH:MM) after which a
	// check-in is recorded as Late rather than Present.
	LateAfter string `env:"ATTENDANCE_LATE_AFTER" env-default:"09:15"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
