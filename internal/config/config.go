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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Places     PlacesConfig     `yaml:"places" mapstructure:"places"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	Workers         int    `yaml:"workers" mapstructure:"workers"`
	Mock            bool   `yaml:"mock" mapstructure:"mock"`
	SkipValidation  bool   `yaml:"skip_validation" mapstructure:"skip_validation"`
	SkipEnrichment  bool   `yaml:"skip_enrichment" mapstructure:"skip_enrichment"`
	SkipResearch    bool   `yaml:"skip_research" mapstructure:"skip_research"`
	SkipPersonalize bool   `yaml:"skip_personalize" mapstructure:"skip_personalize"`
	MessageTemplate string `yaml:"message_template" mapstructure:"message_template"`
	TemplatesPath   string `yaml:"templates_path" mapstructure:"templates_path"`
}

// ValidationConfig configures the contact validators.
type ValidationConfig struct {
	DNSTimeoutSecs     int     `yaml:"dns_timeout_secs" mapstructure:"dns_timeout_secs"`
	WebsiteTimeoutSecs int     `yaml:"website_timeout_secs" mapstructure:"website_timeout_secs"`
	PhoneRegion        string  `yaml:"phone_region" mapstructure:"phone_region"`
	RatePerSecond      float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ExportConfig configures lead export.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leads.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("pipeline.workers", 5)
	v.SetDefault("pipeline.mock", false)
	v.SetDefault("pipeline.message_template", "professional")
	v.SetDefault("validation.dns_timeout_secs", 5)
	v.SetDefault("validation.website_timeout_secs", 10)
	v.SetDefault("validation.phone_region", "US")
	v.SetDefault("validation.rate_per_second", 10)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.format", "csv")
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

// Validate checks that the configuration can support a pipeline run.
// Mock mode needs no API keys; a live run needs the Places key plus
// keys for every stage that is not skipped.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 20 {
		return eris.Errorf("config: pipeline.workers must be between 1 and 20, got %d", c.Pipeline.Workers)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}

	if c.Pipeline.Mock {
		return nil
	}
	if c.Places.Key == "" {
		return eris.New("config: places.key is required for live runs")
	}
	if !c.Pipeline.SkipResearch && c.Perplexity.Key == "" {
		return eris.New("config: perplexity.key is required unless research is skipped")
	}
	if !c.Pipeline.SkipPersonalize && c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required unless personalization is skipped")
	}
	return nil
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
