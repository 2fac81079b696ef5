package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Trello   TrelloConfig   `mapstructure:"trello"`
	Host     HostConfig     `mapstructure:"host"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type TrelloConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	APIKey   string        `mapstructure:"api_key"`
	APIToken string        `mapstructure:"api_token"`
	// DefaultProject receives APIKey/APIToken as its options on first start.
	DefaultProject string `mapstructure:"default_project"`
}

type HostConfig struct {
	URLPrefix string `mapstructure:"url_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "plugin.db")
	v.SetDefault("trello.base_url", "https://trello.com/1")
	v.SetDefault("trello.timeout", 5*time.Second)
	v.SetDefault("trello.default_project", "default")
	v.SetDefault("host.url_prefix", "http://localhost:8080")
}

// Load reads config.toml from dir. A missing file falls back to defaults,
// and environment variables such as TRELLO_API_KEY override either.
// A .env file in dir is loaded first when present.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load(dir + "/.env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{"trello.api_key", "trello.api_token"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Host.URLPrefix = strings.TrimRight(cfg.Host.URLPrefix, "/")
	return cfg, nil
}
