package optionchain

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "OPTIONCHAIN_"

type Config struct {
	Loader LoaderConfig `yaml:"loader" envPrefix:"LOADER_"`
	Run    RunConfig    `yaml:"run" envPrefix:"RUN_"`
	Rates  RatesConfig  `yaml:"rates" envPrefix:"RATES_"`
	Sink   SinkConfig   `yaml:"sink" envPrefix:"SINK_"`
	Log    LogConfig    `yaml:"log" envPrefix:"LOG_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   //日志级别
	Format string `yaml:"format" env:"FORMAT"` //text 或 json
}

func DefaultConfig() Config {
	return Config{
		Loader: DefaultLoaderConfig(),
		Run:    RunConfig{}.withDefaults(),
		Sink:   SinkConfig{Kind: SINK_NONE, Batch: true},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads the yaml file at path (optional), then applies .env and
// OPTIONCHAIN_* environment overrides on top.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config env: %w", err)
	}

	cfg.Loader = cfg.Loader.withDefaults()
	cfg.Run = cfg.Run.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if err := c.Loader.Validate(); err != nil {
		return err
	}
	switch c.Sink.Kind {
	case "", SINK_NONE, SINK_JSONL, SINK_SQLITE, SINK_POSTGRES:
	default:
		return fmt.Errorf("%w: %q", ErrorUnknownSinkKind, c.Sink.Kind)
	}
	if _, err := logrus.ParseLevel(c.Log.levelOrDefault()); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func (c LogConfig) levelOrDefault() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// Apply configures logger level and formatter.
func (c LogConfig) Apply(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.levelOrDefault())
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	switch strings.ToLower(c.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
