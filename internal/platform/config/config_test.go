package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORTAL_ADDR", "DATABASE_URL", "JWT_SIGNING_KEY", "ACCESS_TOKEN_TTL", "KAFKA_BROKERS", "STAFF_ACCOUNTS", "COOKIE_SECURE", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.True(t, cfg.UsesDevSigningKey())
	assert.Empty(t, cfg.Audit.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("STAFF_ACCOUNTS", "validator:val@city.gov:s3cret:Val Idator; admin:root@city.gov:toor:Root")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.KafkaBrokers)
	require.Len(t, cfg.Staff, 2)
	assert.Equal(t, "val@city.gov", cfg.Staff[0].Email)
	assert.Equal(t, "s3cret", cfg.Staff[0].Password)
	assert.Equal(t, "Val Idator", cfg.Staff[0].Name)
	assert.Equal(t, "admin", cfg.Staff[1].Role)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	t.Setenv("STAFF_ACCOUNTS", "citizen:a@b.c:pw:Name")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL")
	assert.Contains(t, err.Error(), "STAFF_ACCOUNTS")
}
