package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		Digest     struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic"`
			Interval  time.Duration `yaml:"interval"`
			Threshold int           `yaml:"threshold"`
		} `yaml:"digest"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			Capacity int     `yaml:"capacity"`
			Refill   float64 `yaml:"refill_per_sec"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic"`
		CandlesTopic string   `yaml:"candles_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		CandlesTable     string        `yaml:"candles_table"`
		SignalsTable     string        `yaml:"signals_table"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Prefix   string `yaml:"prefix"`
		Queue    struct {
			Name        string        `yaml:"name"`
			Workers     int           `yaml:"workers"`
			MaxRetries  int           `yaml:"max_retries"`
			RetryDelay  time.Duration `yaml:"retry_delay"`
			PollTimeout time.Duration `yaml:"poll_timeout"`
		} `yaml:"queue"`
	} `yaml:"redis"`
	OKX struct {
		Enabled        bool          `yaml:"enabled"`
		RestURL        string        `yaml:"rest_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		Bar            string        `yaml:"bar"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		RateLimit      struct {
			Capacity int     `yaml:"capacity"`
			Refill   float64 `yaml:"refill_per_sec"`
		} `yaml:"rate_limit"`
	} `yaml:"okx"`
	Scanner struct {
		Workers      int           `yaml:"workers"`
		DefaultLimit int           `yaml:"default_limit"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
		LabelDir     string        `yaml:"label_dir"`
	} `yaml:"scanner"`
	Detector DetectorConfig `yaml:"detector"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills section defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Detector.Normalize(); err != nil {
		return nil, fmt.Errorf("detector config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	return c, c.Validate()
}

// ApplyEnv overrides selected fields from getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.OKX.Symbols = splitList(v)
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 60
	}
	if c.Server.RateLimit.Refill == 0 {
		c.Server.RateLimit.Refill = 20
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Kafka.SignalsTopic == "" {
		c.Kafka.SignalsTopic = "patternpull.signals"
	}
	if c.Kafka.CandlesTopic == "" {
		c.Kafka.CandlesTopic = "patternpull.candles"
	}
	if c.Log.Digest.Topic == "" {
		c.Log.Digest.Topic = "patternpull.log-digest"
	}
	if c.ClickHouse.CandlesTable == "" {
		c.ClickHouse.CandlesTable = "candles"
	}
	if c.ClickHouse.SignalsTable == "" {
		c.ClickHouse.SignalsTable = "signals"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "patternpull"
	}
	if c.Redis.Queue.Name == "" {
		c.Redis.Queue.Name = "scan-jobs"
	}
	if c.Redis.Queue.Workers == 0 {
		c.Redis.Queue.Workers = 2
	}
	if c.OKX.RestURL == "" {
		c.OKX.RestURL = "https://www.okx.com"
	}
	if c.OKX.WebSocketURL == "" {
		c.OKX.WebSocketURL = "wss://ws.okx.com:8443/ws/v5/business"
	}
	if c.OKX.Bar == "" {
		c.OKX.Bar = "5m"
	}
	if c.OKX.RateLimit.Capacity == 0 {
		c.OKX.RateLimit.Capacity = 20
	}
	if c.OKX.RateLimit.Refill == 0 {
		c.OKX.RateLimit.Refill = 10
	}
	if c.Scanner.Workers == 0 {
		c.Scanner.Workers = 4
	}
	if c.Scanner.DefaultLimit == 0 {
		c.Scanner.DefaultLimit = 1000
	}
	if c.Scanner.CacheTTL == 0 {
		c.Scanner.CacheTTL = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.OKX.Enabled && len(c.OKX.Symbols) == 0 {
		return fmt.Errorf("okx.symbols cannot be empty when okx is enabled")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner.workers must be >= 1, got %d", c.Scanner.Workers)
	}
	return nil
}
