// Package config reads process configuration from the environment. Every
// setting has a development default so the server starts with no env at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Addr        string
	DatabaseURL string
	TxTimeout   time.Duration

	Redis RedisConfig
	Auth  AuthConfig
	Audit AuditConfig
	Log   LogConfig
	Staff []StaffAccount

	CORSOrigins []string
}

// RedisConfig holds connection settings for the optional refresh-token store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds token signing and lifetime settings.
type AuthConfig struct {
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CookieSecure    bool
	BcryptCost      int
	SweepInterval   time.Duration
}

// AuditConfig controls streaming audit events to Kafka. An empty broker
// list keeps events in the audit table only.
type AuditConfig struct {
	KafkaBrokers []string
	Topic        string
	BufferSize   int
}

type LogConfig struct {
	Level  string
	Format string
}

// StaffAccount is a validator or admin provisioned at startup.
type StaffAccount struct {
	Email    string
	Password string
	Name     string
	Role     string
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", key, raw))
			return def
		}
		return n
	}

	cfg := Config{
		Addr:        envOr("PORTAL_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		TxTimeout:   duration("TX_TIMEOUT", 5*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSigningKey:   envOr("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:       envOr("JWT_ISSUER", "citizen-portal"),
			JWTAudience:     envOr("JWT_AUDIENCE", "citizen-portal-web"),
			AccessTokenTTL:  duration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: duration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			CookieSecure:    os.Getenv("COOKIE_SECURE") != "false",
			BcryptCost:      integer("BCRYPT_COST", 12),
			SweepInterval:   duration("REFRESH_SWEEP_INTERVAL", time.Hour),
		},
		Audit: AuditConfig{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:        envOr("AUDIT_TOPIC", "portal.audit"),
			BufferSize:   integer("AUDIT_BUFFER_SIZE", 1024),
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
		CORSOrigins: splitList(envOr("CORS_ORIGINS", "http://localhost:3000")),
	}

	staff, err := staffFromEnv()
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Staff = staff

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// UsesDevSigningKey reports whether the JWT key was left at its default.
func (c Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}

// staffFromEnv reads STAFF_ACCOUNTS as a semicolon separated list of
// role:email:password:name entries.
func staffFromEnv() ([]StaffAccount, error) {
	raw := strings.TrimSpace(os.Getenv("STAFF_ACCOUNTS"))
	if raw == "" {
		return nil, nil
	}
	var out []StaffAccount
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("STAFF_ACCOUNTS: entry %q must be role:email:password:name", entry)
		}
		role := strings.TrimSpace(parts[0])
		if role != "validator" && role != "admin" {
			return nil, fmt.Errorf("STAFF_ACCOUNTS: role %q must be validator or admin", role)
		}
		out = append(out, StaffAccount{
			Role:     role,
			Email:    strings.TrimSpace(parts[1]),
			Password: parts[2],
			Name:     strings.TrimSpace(parts[3]),
		})
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
