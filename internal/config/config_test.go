package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"REDIS_ADDR", "REDIS_DB", "EVENT_TRANSPORT", "KAFKA_BROKERS", "KAFKA_TOPIC",
		"CHECKOUT_RATE_LIMIT", "CHECKOUT_RATE_WINDOW_SEC", "SMTP_HOST", "SMTP_PORT",
		"SMTP_USER", "SMTP_PASS", "SMTP_FROM", "STORE_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportMemory, cfg.EventTransport)
	assert.Equal(t, 20, cfg.CheckoutRateLimit)
	assert.Equal(t, time.Minute, cfg.CheckoutRateWindow)
	assert.Equal(t, "MonarxStore", cfg.StoreName)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.SMTP.Enabled())
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("EVENT_TRANSPORT", "KAFKA")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CHECKOUT_RATE_LIMIT", "5")
	t.Setenv("CHECKOUT_RATE_WINDOW_SEC", "10")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("SMTP_PASS", "x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportKafka, cfg.EventTransport)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.CheckoutRateLimit)
	assert.Equal(t, 10*time.Second, cfg.CheckoutRateWindow)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, "bot@example.com", cfg.SMTP.From)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"kafka without redis": {"EVENT_TRANSPORT": "kafka"},
		"unknown transport":   {"EVENT_TRANSPORT": "nats"},
		"bad rate limit":      {"CHECKOUT_RATE_LIMIT": "abc"},
		"zero rate limit":     {"CHECKOUT_RATE_LIMIT": "0"},
		"bad window":          {"CHECKOUT_RATE_WINDOW_SEC": "-1"},
		"bad smtp port":       {"SMTP_PORT": "smtp"},
		"bad redis db":        {"REDIS_DB": "one"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
