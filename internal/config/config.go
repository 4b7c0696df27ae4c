// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults — merged
// in priority order. Configuration is loaded into structs, not accessed as
// raw key-value pairs.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related
// settings; `mapstructure` tags map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sites     SitesConfig     `mapstructure:"sites"`
	Search    SearchConfig    `mapstructure:"search"`
	Tiles     TilesConfig     `mapstructure:"tiles"`
	Pano      PanoConfig      `mapstructure:"pano"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	DownloadDir  string `mapstructure:"download_dir"`
}

// SitesConfig holds per-site base URLs so tests and deployments behind
// proxies can point the adapters elsewhere. Empty values mean the live
// sites.
type SitesConfig struct {
	CopartURL  string `mapstructure:"copart_url"`
	IaaiURL    string `mapstructure:"iaai_url"`
	PoctraURL  string `mapstructure:"poctra_url"`
	BidfaxURL  string `mapstructure:"bidfax_url"`
	TileURL    string `mapstructure:"tile_url"`
	SpincarURL string `mapstructure:"spincar_url"`
}

type SearchConfig struct {
	// AdapterTimeoutSeconds bounds each site attempt in the fallback chain.
	AdapterTimeoutSeconds int `mapstructure:"adapter_timeout_seconds"`
	// TokenPollSeconds and TokenPollAttempts bound the anti-bot token wait.
	TokenPollSeconds  int `mapstructure:"token_poll_seconds"`
	TokenPollAttempts int `mapstructure:"token_poll_attempts"`
}

type TilesConfig struct {
	Concurrency       int     `mapstructure:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type PanoConfig struct {
	FaceSize int `mapstructure:"face_size"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/vinpix.db")
	v.SetDefault("storage.download_dir", "./storage/downloads")
	v.SetDefault("sites.copart_url", "")
	v.SetDefault("sites.iaai_url", "")
	v.SetDefault("sites.poctra_url", "")
	v.SetDefault("sites.bidfax_url", "")
	v.SetDefault("sites.tile_url", "")
	v.SetDefault("sites.spincar_url", "")
	v.SetDefault("search.adapter_timeout_seconds", 30)
	v.SetDefault("search.token_poll_seconds", 1)
	v.SetDefault("search.token_poll_attempts", 60)
	v.SetDefault("tiles.concurrency", 8)
	v.SetDefault("tiles.requests_per_second", 20)
	v.SetDefault("tiles.burst", 8)
	v.SetDefault("pano.face_size", 1024)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Missing config file is fine — defaults + env are enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// VINPIX_ prefix + nested keys: VINPIX_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("VINPIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
