// Package config loads pipeline configuration from config.yaml and the
// environment, and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Places PlacesConfig `yaml:"places" mapstructure:"places"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Enrich EnrichConfig `yaml:"enrich" mapstructure:"enrich"`
	RunLog RunLogConfig `yaml:"runlog" mapstructure:"runlog"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// PlacesConfig holds Google Places API settings. APIKey has no default and
// must come from config or PROVIDER_PLACES_API_KEY.
type PlacesConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DataConfig locates the curator-maintained datasets.
type DataConfig struct {
	// BaseFile is the curated source-of-truth provider list. The pipeline
	// reads it and never writes it.
	BaseFile string `yaml:"base_file" mapstructure:"base_file"`

	// FinalFile is the merged dataset the directory view consumes; the
	// serve command's default.
	FinalFile string `yaml:"final_file" mapstructure:"final_file"`
}

// CacheConfig configures the optional place-lookup cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// EnrichConfig configures enrichment pacing and retries.
type EnrichConfig struct {
	IntervalMs    int `yaml:"interval_ms" mapstructure:"interval_ms"`
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// RunLogConfig locates the run history database.
type RunLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROVIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. api_key defaults to empty so viper knows the key and picks
	// up PROVIDER_PLACES_API_KEY even without a config file.
	v.SetDefault("places.api_key", "")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.timeout_secs", 15)
	v.SetDefault("data.base_file", "data/providers.json")
	v.SetDefault("data.final_file", "data/providers.final.json")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", ".provider-cli/places-cache.db")
	v.SetDefault("enrich.interval_ms", 200)
	v.SetDefault("enrich.concurrency", 1)
	v.SetDefault("enrich.retry_attempts", 2)
	v.SetDefault("runlog.path", ".provider-cli/runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
