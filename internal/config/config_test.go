package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load("api")
	require.NoError(t, err)

	assert.Equal(t, "api", cfg.App.RunMode)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.JWTTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.EmailTokenTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.PhoneCodeTTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Listings.TTL())
	assert.False(t, cfg.Listings.Moderation)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("LISTING_MODERATION", "true")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load("all")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.True(t, cfg.Listings.Moderation)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 2525, cfg.SMTP.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load("api")
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "")
	_, err = Load("api")
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestValidate_Drivers(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CACHE_DRIVER", "memcached")
	_, err := Load("api")
	assert.ErrorContains(t, err, "CACHE_DRIVER")
}
