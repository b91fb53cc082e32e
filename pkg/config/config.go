package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"FinCast/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"20"`
			Burst int     `yaml:"burst" default:"40"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		Endpoint    string  `yaml:"endpoint" default:"localhost:4317"`
		Insecure    bool    `yaml:"insecure" default:"true"`
		ServiceName string  `yaml:"service_name" default:"fincast"`
		SampleRatio float64 `yaml:"sample_ratio" default:"1"`
	} `yaml:"tracing"`
	Ensemble struct {
		HoldoutFraction float64       `yaml:"holdout_fraction" default:"0.1"`
		MinHoldoutSize  int           `yaml:"min_holdout_size" default:"10"`
		Epsilon         float64       `yaml:"epsilon" default:"0.000001"`
		ModelTimeout    time.Duration `yaml:"model_timeout" default:"5s"`
		Models          []string      `yaml:"models" default:"[\"naive\",\"drift\",\"linear_trend\",\"ses\",\"holt\",\"sma\",\"ema\"]"`
		SESAlpha        float64       `yaml:"ses_alpha" default:"0.5"`
		HoltAlpha       float64       `yaml:"holt_alpha" default:"0.5"`
		HoltBeta        float64       `yaml:"holt_beta" default:"0.3"`
		SMAPeriod       int           `yaml:"sma_period" default:"5"`
		EMAPeriod       int           `yaml:"ema_period" default:"5"`
		Remote          struct {
			URL      string        `yaml:"url"`
			Timeout  time.Duration `yaml:"timeout" default:"3s"`
			Attempts int           `yaml:"attempts" default:"3"`
			RPS      float64       `yaml:"rps" default:"10"`
			Burst    int           `yaml:"burst" default:"10"`
		} `yaml:"remote"`
	} `yaml:"ensemble"`
	Forecast struct {
		DefaultHorizon int           `yaml:"default_horizon" default:"10"`
		SeriesLength   int           `yaml:"series_length" default:"600"`
		Timeframe      string        `yaml:"timeframe" default:"1m"`
		CacheTTL       time.Duration `yaml:"cache_ttl" default:"30s"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"20s"`
		MaxKeys        int           `yaml:"max_keys" default:"1000"`
		TrainLockTTL   time.Duration `yaml:"train_lock_ttl" default:"2m"`
	} `yaml:"forecast"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequestTopic string   `yaml:"request_topic" default:"forecast.requests"`
		ResultTopic  string   `yaml:"result_topic" default:"forecast.results"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"fincast"`
			Workers    int           `yaml:"workers" default:"4"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled       bool          `yaml:"enabled"`
		Host          string        `yaml:"host" default:"localhost"`
		Port          int           `yaml:"port" default:"9000"`
		Database      string        `yaml:"database" default:"default"`
		User          string        `yaml:"user" default:"default"`
		Password      string        `yaml:"password"`
		UseHTTP       bool          `yaml:"use_http"`
		AsyncInsert   bool          `yaml:"async_insert"`
		DialTimeout   time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout   time.Duration `yaml:"read_timeout" default:"30s"`
		ForecastTable string        `yaml:"forecast_table" default:"forecasts"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		MemorySize int           `yaml:"memory_size" default:"1024"`
		DefaultTTL time.Duration `yaml:"default_ttl" default:"1m"`
		Prefix     string        `yaml:"prefix" default:"fincast"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Name       string        `yaml:"name" default:"train"`
		Workers    int           `yaml:"workers" default:"2"`
		MaxRetries int           `yaml:"max_retries" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"queue"`
}

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("FINCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("FINCAST_HTTP_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("REMOTE_MODEL_URL"); v != "" {
		c.Ensemble.Remote.URL = v
	}
	if v := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
		c.Tracing.Enabled = true
	}
}

var knownModels = map[string]bool{
	"naive": true, "drift": true, "linear_trend": true, "ses": true,
	"holt": true, "sma": true, "ema": true, "remote": true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	e := c.Ensemble
	if e.HoldoutFraction <= 0 || e.HoldoutFraction >= 1 {
		return fmt.Errorf("ensemble.holdout_fraction must be in (0, 1), got %v", e.HoldoutFraction)
	}
	if e.Epsilon <= 0 {
		return fmt.Errorf("ensemble.epsilon must be > 0")
	}
	if len(e.Models) == 0 {
		return fmt.Errorf("ensemble.models cannot be empty")
	}
	seen := make(map[string]bool, len(e.Models))
	for _, m := range e.Models {
		if !knownModels[m] {
			return fmt.Errorf("ensemble.models: unknown model %q", m)
		}
		if seen[m] {
			return fmt.Errorf("ensemble.models: duplicate model %q", m)
		}
		seen[m] = true
	}
	if seen["remote"] && e.Remote.URL == "" {
		return fmt.Errorf("ensemble.remote.url is required when the remote model is enabled")
	}
	if c.Forecast.DefaultHorizon < 1 {
		return fmt.Errorf("forecast.default_horizon must be >= 1")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis.enabled")
	}
	return nil
}
