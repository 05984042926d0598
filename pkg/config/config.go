package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ExFuse/pkg/util"

	"gopkg.in/yaml.v3"
)

type ExchangeConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"base_url"`
	FuturesURL   string        `yaml:"futures_url"`
	Weight       float64       `yaml:"weight"`
	Timeout      time.Duration `yaml:"timeout"`
	RateCapacity float64       `yaml:"rate_capacity"`
	RateRefill   float64       `yaml:"rate_refill"`
	Stream       struct {
		Enabled bool          `yaml:"enabled"`
		URL     string        `yaml:"url"`
		TickTTL time.Duration `yaml:"tick_ttl"`
		Symbols []string      `yaml:"symbols"`
	} `yaml:"stream"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Exchanges struct {
		Bybit   ExchangeConfig `yaml:"bybit"`
		Binance ExchangeConfig `yaml:"binance"`
	} `yaml:"exchanges"`
	Aggregator struct {
		AdapterTimeout       time.Duration `yaml:"adapter_timeout"`
		DominanceCacheTTL    time.Duration `yaml:"dominance_cache_ttl"`
		MinSpreadPcnt        float64       `yaml:"min_spread_pcnt"`
		BuyFeePcnt           float64       `yaml:"buy_fee_pcnt"`
		SellFeePcnt          float64       `yaml:"sell_fee_pcnt"`
		PriceDivergencePcnt  float64       `yaml:"price_divergence_pcnt"`
		VolumeDivergencePcnt float64       `yaml:"volume_divergence_pcnt"`
		MaxTickerAge         time.Duration `yaml:"max_ticker_age"`
		MinResponseTime      time.Duration `yaml:"min_response_time"`
		MaxErrorRate         float64       `yaml:"max_error_rate"`
		MinDataCompleteness  float64       `yaml:"min_data_completeness"`
	} `yaml:"aggregator"`
	Analytics struct {
		StatArbMaxCorrelation float64 `yaml:"stat_arb_max_correlation"`
		StatArbMinSpreadPcnt  float64 `yaml:"stat_arb_min_spread_pcnt"`
		WallSizeMultiple      float64 `yaml:"wall_size_multiple"`
		ConsensusTolerance    float64 `yaml:"consensus_tolerance"`
	} `yaml:"analytics"`
	Monitor struct {
		Enabled  bool          `yaml:"enabled"`
		Symbols  []string      `yaml:"symbols"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"monitor"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			BatchTimeout time.Duration `yaml:"batch_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		SignalsTable     string        `yaml:"signals_table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Cache struct {
		ResponseTTL time.Duration `yaml:"response_ttl"`
		Memory      struct {
			Enabled    bool          `yaml:"enabled"`
			MaxEntries int           `yaml:"max_entries"`
			DefaultTTL time.Duration `yaml:"default_ttl"`
		} `yaml:"memory"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
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

	c.Monitor.Symbols = util.NormalizeSymbols(c.Monitor.Symbols)
	c.Exchanges.Bybit.Stream.Symbols = util.NormalizeSymbols(c.Exchanges.Bybit.Stream.Symbols)

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

	if v := os.Getenv("MONITOR_SYMBOLS"); v != "" {
		c.Monitor.Symbols = util.NormalizeSymbols(strings.Split(v, ","))
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if !c.Exchanges.Bybit.Enabled && !c.Exchanges.Binance.Enabled {
		return fmt.Errorf("at least one exchange must be enabled")
	}
	if c.Monitor.Enabled && len(c.Monitor.Symbols) == 0 {
		return fmt.Errorf("monitor.symbols cannot be empty when monitor is enabled")
	}
	if c.Monitor.Enabled && !c.Kafka.Enabled && !c.ClickHouse.Enabled {
		return fmt.Errorf("monitor requires kafka or clickhouse to record signals")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// Weights returns the per-exchange trust weights for enabled exchanges.
func (c *Config) Weights() map[string]float64 {
	w := make(map[string]float64, 2)
	if c.Exchanges.Bybit.Enabled {
		w["bybit"] = c.Exchanges.Bybit.Weight
	}
	if c.Exchanges.Binance.Enabled {
		w["binance"] = c.Exchanges.Binance.Weight
	}
	return w
}
