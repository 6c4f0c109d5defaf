package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Apollo    ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	Outreach  OutreachConfig  `yaml:"outreach" mapstructure:"outreach"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ApolloConfig holds contact directory API settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OutreachConfig holds defaults for the analyze/batch pipeline.
type OutreachConfig struct {
	MaxPerRole           int    `yaml:"max_per_role" mapstructure:"max_per_role"`
	EnrichTopN           int    `yaml:"enrich_top_n" mapstructure:"enrich_top_n"`
	SequenceName         string `yaml:"sequence_name" mapstructure:"sequence_name"`
	SequenceID           string `yaml:"sequence_id" mapstructure:"sequence_id"`
	EmailAccountID       string `yaml:"email_account_id" mapstructure:"email_account_id"`
	PersonalizationField string `yaml:"personalization_field" mapstructure:"personalization_field"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Dir returns the per-user config directory (~/.email-recruiters).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "config: resolve home dir")
	}
	return filepath.Join(home, ".email-recruiters"), nil
}

// Load reads configuration from file and environment. The config file is
// looked up in the current directory first, then ~/.email-recruiters.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := Dir(); err == nil {
		v.AddConfigPath(dir)
	}

	// Environment
	v.SetEnvPrefix("EMAILRECRUITERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("apollo.base_url", "https://api.apollo.io")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("outreach.max_per_role", 3)
	v.SetDefault("outreach.enrich_top_n", 5)
	v.SetDefault("outreach.personalization_field", "Applied Role")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
