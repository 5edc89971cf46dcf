// Package config loads taxchat settings from defaults, an optional YAML file,
// TAXCHAT_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "TAXCHAT"
	defaultConfigName = "taxchat"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Store   StoreConfig   `mapstructure:"store"`
	History HistoryConfig `mapstructure:"history"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	CORS bool   `mapstructure:"cors"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"      validate:"required,oneof=openai gemini"`
	BaseURL     string        `mapstructure:"base_url"      validate:"omitempty,url"`
	Model       string        `mapstructure:"model"         validate:"required"`
	APIKey      string        `mapstructure:"api_key"`
	APIKeyParam string        `mapstructure:"api_key_param"`
	Temperature float64       `mapstructure:"temperature"   validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"    validate:"gt=0"`
	TopP        float64       `mapstructure:"top_p"         validate:"min=0,max=1"`
	Timeout     time.Duration `mapstructure:"timeout"       validate:"min=1s"`
}

type StoreConfig struct {
	Driver        string        `mapstructure:"driver"         validate:"required,oneof=sqlite dynamodb"`
	Path          string        `mapstructure:"path"           validate:"required_if=Driver sqlite"`
	Table         string        `mapstructure:"table"          validate:"required_if=Driver dynamodb"`
	Retention     time.Duration `mapstructure:"retention"      validate:"min=0"`
	PruneSchedule string        `mapstructure:"prune_schedule" validate:"required"`
}

type HistoryConfig struct {
	UserID string `mapstructure:"user_id" validate:"required"`
	Limit  int    `mapstructure:"limit"   validate:"gt=0,lte=100"`
}

type ClientConfig struct {
	ServiceURL string        `mapstructure:"service_url" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"min=1s"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// Option adjusts the viper instance before the config is read.
type Option func(v *viper.Viper) error

// BindFlag makes flag override key when the flag is set on the command line.
func BindFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", flag.Name, err)
		}
		return nil
	}
}

// Load reads the configuration. An explicit path must exist; without one a
// taxchat.yaml in the working directory is used when present.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// GROQ_API_KEY is accepted for compatibility with existing deployments.
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GROQ_API_KEY"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(defaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: read config file: %w", err)
		}
	}
	return nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	if c.Store.Retention > 0 && c.Store.Retention < time.Hour {
		return errors.New("config: store.retention must be at least 1h when set")
	}
	return nil
}

// HasLLMKey reports whether an API key source is configured.
func (c *Config) HasLLMKey() bool {
	return strings.TrimSpace(c.LLM.APIKey) != "" || strings.TrimSpace(c.LLM.APIKeyParam) != ""
}
