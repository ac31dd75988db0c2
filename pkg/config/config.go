package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// IndexConfig describes one tracked index and its strike window.
type IndexConfig struct {
	Name       string   `yaml:"name"`
	Enabled    bool     `yaml:"enabled" default:"true"`
	StrikeStep float64  `yaml:"strike_step" default:"50"`
	ITMDepth   int      `yaml:"itm_depth" default:"10"`
	OTMDepth   int      `yaml:"otm_depth" default:"10"`
	Rules      []string `yaml:"rules"` // expiry rules or explicit ISO dates
}

type Config struct {
	Environment string `yaml:"environment" default:"dev"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Broker struct {
		BaseURL            string        `yaml:"base_url"`
		APIKey             string        `yaml:"api_key"`
		Timeout            time.Duration `yaml:"timeout" default:"5s"`
		RateCapacity       float64       `yaml:"rate_capacity" default:"5"`
		RateRefillPerSec   float64       `yaml:"rate_refill_per_sec" default:"2"`
		BreakerMaxFailures uint32        `yaml:"breaker_max_failures" default:"5"`
		BreakerCooldown    time.Duration `yaml:"breaker_cooldown" default:"30s"`
	} `yaml:"broker"`
	SpotFeed struct {
		Enabled        bool          `yaml:"enabled"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"15s"`
	} `yaml:"spot_feed"`
	Indices   []IndexConfig `yaml:"indices"`
	Scheduler struct {
		Interval       time.Duration `yaml:"interval" default:"30s"`
		Parallel       bool          `yaml:"parallel" default:"true"`
		Workers        int           `yaml:"workers" default:"4"`
		BudgetFraction float64       `yaml:"budget_fraction" default:"0.9"`
		TaskTimeout    time.Duration `yaml:"task_timeout"` // default interval/2
		Stagger        time.Duration `yaml:"stagger" default:"250ms"`
		RetryLimit     int           `yaml:"retry_limit" default:"2"`
	} `yaml:"scheduler"`
	Pipeline struct {
		PrefilterMaxInstruments int  `yaml:"prefilter_max_instruments" default:"2500"`
		PrefilterStrict         bool `yaml:"prefilter_strict"`
		Validate                struct {
			MaxStrikeDeviationPct  float64 `yaml:"max_strike_deviation_pct" default:"35"`
			MinStrikeCoverage      float64 `yaml:"min_strike_coverage" default:"0.30"`
			RelaxedStrikeCoverage  float64 `yaml:"relaxed_strike_coverage" default:"0.15"`
			NarrowWindowStrikes    int     `yaml:"narrow_window_strikes" default:"10"`
			MaxZeroVolumeRatio     float64 `yaml:"max_zero_volume_ratio" default:"0.98"`
			DummyExpiryHorizonDays int     `yaml:"dummy_expiry_horizon_days" default:"365"`
		} `yaml:"validate"`
		SalvageEnabled         bool `yaml:"salvage_enabled"`
		SalvageMaxForeignDates int  `yaml:"salvage_max_foreign_dates" default:"3"`
		IVEstimation           bool `yaml:"iv_estimation"`
		Greeks                 bool `yaml:"greeks"`
	} `yaml:"pipeline"`
	Analytics struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout" default:"3s"`
	} `yaml:"analytics"`
	Severity struct {
		MinStreak     int           `yaml:"min_streak" default:"1"`
		DecayCycles   int           `yaml:"decay_cycles" default:"6"`
		TrendWindow   int           `yaml:"trend_window" default:"30"`
		CriticalRatio float64       `yaml:"critical_ratio" default:"0.4"`
		WarnRatio     float64       `yaml:"warn_ratio" default:"0.5"`
		RuleRefresh   time.Duration `yaml:"rule_refresh" default:"60s"`
	} `yaml:"severity"`
	Adaptive struct {
		MaxDetailMode   int    `yaml:"max_detail_mode" default:"0"` // 0 = most detail
		MinDetailMode   int    `yaml:"min_detail_mode" default:"2"`
		BreachStreak    int    `yaml:"breach_streak" default:"3"`
		PromoteCooldown int    `yaml:"promote_cooldown" default:"10"`
		RecoveryCycles  int    `yaml:"recovery_cycles" default:"5"`
		MinHealthCycles int    `yaml:"min_health_cycles" default:"5"`
		MemoryTier1MB   uint64 `yaml:"memory_tier1_mb" default:"768"`
		MemoryTier2MB   uint64 `yaml:"memory_tier2_mb" default:"1024"`
	} `yaml:"adaptive"`
	StrikeScale struct {
		Enabled        bool    `yaml:"enabled" default:"true"`
		Mode           string  `yaml:"mode" default:"passthrough"` // passthrough | mutating
		BreachFraction float64 `yaml:"breach_fraction" default:"0.85"`
		Reduction      float64 `yaml:"reduction" default:"0.8"`
		BreachStreak   int     `yaml:"breach_streak" default:"3"`
		RestoreStreak  int     `yaml:"restore_streak" default:"10"`
		MinDepth       int     `yaml:"min_depth" default:"2"`
	} `yaml:"strike_scale"`
	Cardinality struct {
		MaxSeries         int           `yaml:"max_series" default:"12000"`
		ReenableFraction  float64       `yaml:"reenable_fraction" default:"0.7"`
		MinDisableSeconds time.Duration `yaml:"min_disable_seconds" default:"300s"`
	} `yaml:"cardinality"`
	StrikeCache struct {
		MaxEntries int           `yaml:"max_entries" default:"128"`
		TTL        time.Duration `yaml:"ttl" default:"5m"`
	} `yaml:"strike_cache"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"optpull"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		OutcomeTopic string   `yaml:"outcome_topic" default:"optpull.outcomes"`
		LogTopic     string   `yaml:"log_topic" default:"optpull.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		RulesKey string `yaml:"rules_key" default:"optpull:severity:rules"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file, applying struct defaults.
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
	if c.Scheduler.TaskTimeout <= 0 {
		c.Scheduler.TaskTimeout = c.Scheduler.Interval / 2
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

	if v := os.Getenv("OPTPULL_BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("OPTPULL_BROKER_URL"); v != "" {
		c.Broker.BaseURL = v
	}
	if v := os.Getenv("OPTPULL_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("OPTPULL_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("OPTPULL_REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required")
	}
	if len(c.Indices) == 0 {
		return fmt.Errorf("indices cannot be empty")
	}
	for i, idx := range c.Indices {
		if idx.Name == "" {
			return fmt.Errorf("indices[%d].name is required", i)
		}
		if len(idx.Rules) == 0 {
			return fmt.Errorf("indices[%d].rules cannot be empty", i)
		}
		if idx.StrikeStep <= 0 {
			return fmt.Errorf("indices[%d].strike_step must be positive", i)
		}
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.BudgetFraction <= 0 || c.Scheduler.BudgetFraction > 1 {
		return fmt.Errorf("scheduler.budget_fraction must be in (0,1]")
	}
	if m := c.StrikeScale.Mode; m != "passthrough" && m != "mutating" {
		return fmt.Errorf("strike_scale.mode must be 'passthrough' or 'mutating', got '%s'", m)
	}
	if c.StrikeScale.Reduction <= 0 || c.StrikeScale.Reduction >= 1 {
		return fmt.Errorf("strike_scale.reduction must be in (0,1)")
	}
	if c.Adaptive.MaxDetailMode < 0 || c.Adaptive.MinDetailMode > 2 ||
		c.Adaptive.MaxDetailMode > c.Adaptive.MinDetailMode {
		return fmt.Errorf("adaptive detail mode bounds invalid: [%d,%d]",
			c.Adaptive.MaxDetailMode, c.Adaptive.MinDetailMode)
	}
	if c.Cardinality.ReenableFraction <= 0 || c.Cardinality.ReenableFraction >= 1 {
		return fmt.Errorf("cardinality.reenable_fraction must be in (0,1)")
	}
	return nil
}

// EnabledIndices returns the configured indices with Enabled set.
func (c *Config) EnabledIndices() []IndexConfig {
	out := make([]IndexConfig, 0, len(c.Indices))
	for _, idx := range c.Indices {
		if idx.Enabled {
			out = append(out, idx)
		}
	}
	return out
}
