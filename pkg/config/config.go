// Package config loads the client configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/metadata"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/rpc"
	"github.com/wolfentensor/bittensor-substrate-interface/pkg/ss58"
)

const (
	configDirPathEnv     = "SUBSTRATE_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."

	// BittensorURL is the public Bittensor endpoint.
	BittensorURL = "wss://node.bittensor.com"
	// BittensorPreset is the type registry preset of Bittensor nodes.
	BittensorPreset = "bittensor"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the overall client configuration
type Config struct {
	URL        string `env:"SUBSTRATE_URL" env-default:"wss://node.bittensor.com" validate:"required,url"`
	Preset     string `env:"SUBSTRATE_TYPE_REGISTRY_PRESET" env-default:"bittensor" validate:"required"`
	SS58Format uint16 `env:"SUBSTRATE_SS58_FORMAT" env-default:"42" validate:"ss58prefix"`

	// MetadataCacheSize is the number of runtime versions kept in memory.
	// The default matches metadata.DefaultCacheSize.
	MetadataCacheSize int `env:"SUBSTRATE_METADATA_CACHE_SIZE" env-default:"16" validate:"gt=0"`

	RPC      RPCConfig
	Database metadata.DatabaseConfig
	Log      log.Config
}

// RPCConfig holds the transport settings
type RPCConfig struct {
	HandshakeTimeout   time.Duration `env:"SUBSTRATE_RPC_HANDSHAKE_TIMEOUT" env-default:"10s" validate:"gt=0"`
	RequestTimeout     time.Duration `env:"SUBSTRATE_RPC_REQUEST_TIMEOUT" env-default:"30s" validate:"gte=0"`
	PingInterval       time.Duration `env:"SUBSTRATE_RPC_PING_INTERVAL" env-default:"20s" validate:"gte=0"`
	SubscriptionBuffer int           `env:"SUBSTRATE_RPC_SUBSCRIPTION_BUFFER" env-default:"256" validate:"gt=0"`

	ReconnectEnabled         bool          `env:"SUBSTRATE_RPC_RECONNECT" env-default:"true"`
	ReconnectInitialInterval time.Duration `env:"SUBSTRATE_RPC_RECONNECT_INITIAL_INTERVAL" env-default:"500ms" validate:"gt=0"`
	ReconnectMaxInterval     time.Duration `env:"SUBSTRATE_RPC_RECONNECT_MAX_INTERVAL" env-default:"30s" validate:"gtefield=ReconnectInitialInterval"`
	ReconnectMaxElapsed      time.Duration `env:"SUBSTRATE_RPC_RECONNECT_MAX_ELAPSED" env-default:"5m" validate:"gte=0"`
}

// Transport converts the settings into the transport configuration.
func (c RPCConfig) Transport() rpc.Config {
	return rpc.Config{
		HandshakeTimeout:   c.HandshakeTimeout,
		RequestTimeout:     c.RequestTimeout,
		PingInterval:       c.PingInterval,
		SubscriptionBuffer: c.SubscriptionBuffer,
		Reconnect: rpc.ReconnectConfig{
			Enabled:         c.ReconnectEnabled,
			InitialInterval: c.ReconnectInitialInterval,
			MaxInterval:     c.ReconnectMaxInterval,
			MaxElapsedTime:  c.ReconnectMaxElapsed,
		},
	}
}

// Default returns the configuration Load produces from an empty
// environment: the Bittensor endpoint and preset.
func Default() Config {
	transport := rpc.DefaultConfig
	return Config{
		URL:               BittensorURL,
		Preset:            BittensorPreset,
		SS58Format:        42,
		MetadataCacheSize: metadata.DefaultCacheSize,
		RPC: RPCConfig{
			HandshakeTimeout:         transport.HandshakeTimeout,
			RequestTimeout:           transport.RequestTimeout,
			PingInterval:             transport.PingInterval,
			SubscriptionBuffer:       transport.SubscriptionBuffer,
			ReconnectEnabled:         transport.Reconnect.Enabled,
			ReconnectInitialInterval: transport.Reconnect.InitialInterval,
			ReconnectMaxInterval:     transport.Reconnect.MaxInterval,
			ReconnectMaxElapsed:      transport.Reconnect.MaxElapsedTime,
		},
		Database: metadata.DatabaseConfig{
			Driver:   "none",
			Username: "postgres",
			Host:     "localhost",
			Port:     "5432",
		},
		Log: log.Config{
			Format: "console",
			Level:  log.LevelInfo,
			Output: "stderr",
		},
	}
}

// Load builds configuration from environment variables. A .env file in
// the directory named by SUBSTRATE_CONFIG_DIR_PATH is loaded first when
// present; variables already set take precedence over it.
func Load(lg log.Logger) (Config, error) {
	lg = lg.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	if err := godotenv.Load(configDotEnvPath); err != nil {
		lg.Debug(".env file not found", "path", configDotEnvPath)
	} else {
		lg.Info("loaded .env file", "path", configDotEnvPath)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	lg.Info("loaded configuration", "url", cfg.URL, "preset", cfg.Preset, "metadataStore", cfg.Database.Driver)
	return cfg, nil
}

// Validate checks the value constraints of every field.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("ss58prefix", validSS58Prefix); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func validSS58Prefix(fl validator.FieldLevel) bool {
	v := fl.Field().Uint()
	return v <= ss58.MaxPrefix && ss58.ValidPrefix(uint16(v))
}
