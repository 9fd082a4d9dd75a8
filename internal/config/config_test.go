package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, int64(8_000_000), cfg.ReadLimit)
	assert.Equal(t, 2, cfg.Room.Capacity)
	assert.True(t, cfg.Room.AckTracking)
	assert.Equal(t, "migrate", cfg.Room.ReconnectPolicy)
	assert.Equal(t, LimitConfig{Limit: 8, Window: 10 * time.Second}, cfg.Throttle.Text)
	assert.Equal(t, LimitConfig{Limit: 5, Window: 15 * time.Second}, cfg.Throttle.Attachment)
	assert.Equal(t, int64(2_000_000), cfg.Attachment.MaxBytes)
	assert.Equal(t, 7_000_000, cfg.Attachment.MaxDataURI)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte("port: 4000\nsecret: s3cret\nroom:\n  capacity: 0\n  reconnect_grace: 30s\nthrottle:\n  text:\n    limit: 3\n    window: 1s\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o600))

	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("DUET_ROOM_RECONNECT_POLICY", "rejoin")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, 0, cfg.Room.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Room.ReconnectGrace)
	assert.Equal(t, "rejoin", cfg.Room.ReconnectPolicy)
	assert.Equal(t, LimitConfig{Limit: 3, Window: time.Second}, cfg.Throttle.Text)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("DUET_ROOM_RECONNECT_POLICY", "teleport")

	_, err := Load(nil)
	assert.ErrorContains(t, err, "reconnect_policy")
}

func TestLoad_GraceNeedsSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("DUET_ROOM_RECONNECT_GRACE", "20s")

	_, err := Load(nil)
	assert.ErrorContains(t, err, "secret is required")

	t.Setenv("DUET_SECRET", "s3cret")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.Room.ReconnectGrace)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:       3000,
			ReadLimit:  1024,
			PingPeriod: time.Second,
			PongWait:   2 * time.Second,
			Room:       RoomConfig{Capacity: 2, ReconnectPolicy: "migrate"},
			Throttle: ThrottleConfig{
				Text:       LimitConfig{Limit: 8, Window: 10 * time.Second},
				Attachment: LimitConfig{Limit: 5, Window: 15 * time.Second},
			},
			Attachment: AttachmentConfig{MaxBytes: 10, MaxDataURI: 20},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "unbounded rooms", mutate: func(c *Config) { c.Room.Capacity = 0 }, ok: true},
		{name: "throttle off", mutate: func(c *Config) { c.Throttle.Text = LimitConfig{} }, ok: true},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }},
		{name: "negative capacity", mutate: func(c *Config) { c.Room.Capacity = -1 }},
		{name: "pong before ping", mutate: func(c *Config) { c.PongWait = c.PingPeriod }},
		{name: "limit without window", mutate: func(c *Config) { c.Throttle.Attachment.Window = 0 }},
		{name: "zero attachment size", mutate: func(c *Config) { c.Attachment.MaxBytes = 0 }},
		{name: "negative grace", mutate: func(c *Config) { c.Room.ReconnectGrace = -time.Second }},
		{name: "grace without secret", mutate: func(c *Config) { c.Room.ReconnectGrace = 20 * time.Second }},
		{name: "grace with secret", mutate: func(c *Config) {
			c.Room.ReconnectGrace = 20 * time.Second
			c.Secret = "s3cret"
		}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
