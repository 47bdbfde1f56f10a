package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Hub struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"hub"`

	WebAccess struct {
		Enabled     bool          `mapstructure:"enabled"`
		Host        string        `mapstructure:"host"`
		PortStart   int           `mapstructure:"port_start"`
		PortEnd     int           `mapstructure:"port_end"`
		TokenTTL    time.Duration `mapstructure:"token_ttl"`
		AuthTimeout time.Duration `mapstructure:"auth_timeout"`
		StaticDir   string        `mapstructure:"static_dir"`
	} `mapstructure:"web_access"`

	Events struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"events"`

	Store struct {
		Backend string `mapstructure:"backend"`
	} `mapstructure:"store"`

	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`

	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("hub.listen", "127.0.0.1:8787")
	v.SetDefault("web_access.enabled", true)
	v.SetDefault("web_access.host", "0.0.0.0")
	v.SetDefault("web_access.port_start", 8800)
	v.SetDefault("web_access.port_end", 8899)
	v.SetDefault("web_access.token_ttl", 5*time.Minute)
	v.SetDefault("web_access.auth_timeout", 10*time.Second)
	v.SetDefault("events.capacity", 1024)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Env overrides
	v.SetEnvPrefix("CHORUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("hub.listen", "CHORUS_HUB_LISTEN")
	_ = v.BindEnv("web_access.static_dir", "CHORUS_STATIC_DIR")
	_ = v.BindEnv("store.backend", "CHORUS_STORE_BACKEND")
	_ = v.BindEnv("db.dsn", "CHORUS_DB_DSN")
	_ = v.BindEnv("redis.url", "CHORUS_REDIS_URL")
	_ = v.BindEnv("log.level", "CHORUS_LOG_LEVEL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.WebAccess.PortStart <= 0 || c.WebAccess.PortEnd > 65535 || c.WebAccess.PortStart > c.WebAccess.PortEnd {
		return fmt.Errorf("web_access port range %d-%d is invalid", c.WebAccess.PortStart, c.WebAccess.PortEnd)
	}
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres store (set CHORUS_DB_DSN or config file)")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis store (set CHORUS_REDIS_URL or config file)")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (use memory|postgres|redis)", c.Store.Backend)
	}
	return nil
}
