package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Room       RoomConfig       `mapstructure:"room"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
	Attachment AttachmentConfig `mapstructure:"attachment"`
}

type RoomConfig struct {
	// Capacity of 0 leaves rooms unbounded.
	Capacity        int           `mapstructure:"capacity"`
	AckTracking     bool          `mapstructure:"ack_tracking"`
	ReconnectPolicy string        `mapstructure:"reconnect_policy"`
	ReconnectGrace  time.Duration `mapstructure:"reconnect_grace"`
}

type LimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type ThrottleConfig struct {
	Text       LimitConfig `mapstructure:"text"`
	Attachment LimitConfig `mapstructure:"attachment"`
}

type AttachmentConfig struct {
	MaxBytes     int64    `mapstructure:"max_bytes"`
	MaxDataURI   int      `mapstructure:"max_data_uri"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// SetDefaults registers every key so environment overrides are picked up.
func SetDefaults(v *viper.Viper) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	v.SetDefault("env", env)
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 8_000_000)
	v.SetDefault("ping_period", "10s")
	v.SetDefault("pong_wait", "180s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("room.capacity", 2)
	v.SetDefault("room.ack_tracking", true)
	v.SetDefault("room.reconnect_policy", "migrate")
	v.SetDefault("room.reconnect_grace", "0s")

	v.SetDefault("throttle.text.limit", 8)
	v.SetDefault("throttle.text.window", "10s")
	v.SetDefault("throttle.attachment.limit", 5)
	v.SetDefault("throttle.attachment.window", "15s")

	v.SetDefault("attachment.max_bytes", 2_000_000)
	v.SetDefault("attachment.max_data_uri", 7_000_000)
	v.SetDefault("attachment.allowed_types", []string{})
}

// Load reads config/config.<env>.yaml on top of the defaults. A missing file
// is not an error. DUET_* environment variables override both.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix("DUET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	env := v.GetString("env")
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Int("capacity", cfg.Room.Capacity).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod {
		errs = append(errs, errors.New("pong_wait must exceed a positive ping_period"))
	}
	if c.Room.Capacity < 0 {
		errs = append(errs, errors.New("room.capacity must not be negative"))
	}
	if p := c.Room.ReconnectPolicy; p != "migrate" && p != "rejoin" {
		errs = append(errs, fmt.Errorf("room.reconnect_policy %q is not migrate or rejoin", p))
	}
	if c.Room.ReconnectGrace < 0 {
		errs = append(errs, errors.New("room.reconnect_grace must not be negative"))
	}
	// Reclaiming a suspended connection matches client tokens, which live in
	// the session cookie and need a signing key.
	if c.Room.ReconnectGrace > 0 && c.Secret == "" {
		errs = append(errs, errors.New("secret is required when room.reconnect_grace is set"))
	}
	for name, l := range map[string]LimitConfig{"text": c.Throttle.Text, "attachment": c.Throttle.Attachment} {
		if l.Limit < 0 || (l.Limit > 0 && l.Window <= 0) {
			errs = append(errs, fmt.Errorf("throttle.%s needs a non-negative limit and a positive window", name))
		}
	}
	if c.Attachment.MaxBytes <= 0 || c.Attachment.MaxDataURI <= 0 {
		errs = append(errs, errors.New("attachment limits must be positive"))
	}
	return errors.Join(errs...)
}
