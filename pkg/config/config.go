package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Instrument  string `yaml:"instrument"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Chart struct {
		Granularity       string        `yaml:"granularity" default:"1m"`
		RetentionCap      int           `yaml:"retention_cap" default:"1500"`
		NearStartFraction float64       `yaml:"near_start_fraction" default:"0.15"`
		DebounceInterval  time.Duration `yaml:"debounce_interval" default:"300ms"`
		SkipBuffer        int           `yaml:"skip_buffer" default:"10"`
		FetchLimit        int           `yaml:"fetch_limit" default:"300"`
		FrameInterval     time.Duration `yaml:"frame_interval" default:"16ms"`
		DedupWindow       time.Duration `yaml:"dedup_window" default:"50ms"`
		SwitchUpper       int           `yaml:"switch_upper" default:"150"`
		SwitchLower       int           `yaml:"switch_lower" default:"50"`
		SwitchCooldown    time.Duration `yaml:"switch_cooldown" default:"1s"`
	} `yaml:"chart"`
	Backfill struct {
		Source  string        `yaml:"source" default:"rest"` // rest or clickhouse
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"backfill"`
	Live struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"live"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl" default:"5m"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"chartsync.events"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host        string        `yaml:"host"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"chartsync"`
		Table       string        `yaml:"table" default:"candles"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
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

	if v := os.Getenv("INSTRUMENT"); v != "" {
		c.Instrument = v
	}
	if v := os.Getenv("BACKFILL_URL"); v != "" {
		c.Backfill.BaseURL = v
	}
	if v := os.Getenv("LIVE_WS_URL"); v != "" {
		c.Live.WebSocketURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Instrument == "" {
		return fmt.Errorf("instrument is required")
	}
	if c.Backfill.Source != "rest" && c.Backfill.Source != "clickhouse" {
		return fmt.Errorf("backfill.source must be 'rest' or 'clickhouse', got '%s'", c.Backfill.Source)
	}
	if c.Backfill.Source == "rest" && c.Backfill.BaseURL == "" {
		return fmt.Errorf("backfill.base_url is required for the rest source")
	}
	if c.Backfill.Source == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse source")
	}
	if c.Live.WebSocketURL == "" {
		return fmt.Errorf("live.websocket_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
