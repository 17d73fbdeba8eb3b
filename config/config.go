package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/momentum/costs"
	"github.com/rustyeddy/momentum/risk"
	"github.com/rustyeddy/momentum/scoring"
)

// DefaultStrategyName is the strategy used when none is named.
const DefaultStrategyName = "momentum_strategy_one"

// ErrInvalidConfig is wrapped by every ValidationError.
var ErrInvalidConfig = errors.New("invalid config")

// ErrUnknownStrategy is returned by Strategy for a name that is not
// configured.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ValidationError reports the offending field of a rejected configuration.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Provider hands out strategy parameters by name.
type Provider interface {
	Strategy(name string) (Strategy, error)
}

var _ Provider = (*Config)(nil)

// Config is the complete configuration of a momentum deployment. It is
// loaded once and passed by value; nothing in the module mutates it.
type Config struct {
	Scoring    scoring.Config      `json:"scoring" yaml:"scoring"`
	Strategies map[string]Strategy `json:"strategies" yaml:"strategies"`
	Costs      costs.Delivery      `json:"costs" yaml:"costs"`
	Impact     costs.Impact        `json:"impact" yaml:"impact"`
	Tax        costs.CapitalGains  `json:"tax" yaml:"tax"`
	Feed       FeedConfig          `json:"feed" yaml:"feed"`
	Journal    JournalConfig       `json:"journal" yaml:"journal"`
	Metrics    MetricsConfig       `json:"metrics" yaml:"metrics"`
	Schedule   ScheduleConfig      `json:"schedule" yaml:"schedule"`
	Log        LogConfig           `json:"log" yaml:"log"`
}

// Strategy holds the portfolio parameters of one named strategy.
type Strategy struct {
	Name           string  `json:"name,omitempty" yaml:"name,omitempty"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	// RiskThreshold is the percent of initial capital risked per position.
	RiskThreshold float64 `json:"risk_threshold" yaml:"risk_threshold"`
	MaxPositions  int     `json:"max_positions" yaml:"max_positions"`
	// BufferPercent is the fraction of remaining cash held back from each
	// entry.
	BufferPercent float64 `json:"buffer_percent" yaml:"buffer_percent"`
	// SwapBuffer is the margin a challenger must beat a holding by. Unset
	// falls back to BufferPercent.
	SwapBuffer        *float64 `json:"swap_buffer,omitempty" yaml:"swap_buffer,omitempty"`
	ExitThreshold     float64  `json:"exit_threshold" yaml:"exit_threshold"`
	SLMultiplier      float64  `json:"sl_multiplier" yaml:"sl_multiplier"`
	SLFallbackPercent float64  `json:"sl_fallback_percent" yaml:"sl_fallback_percent"`
	SLStepPercent     float64  `json:"sl_step_percent" yaml:"sl_step_percent"`
	// CandidatePool truncates the ranked list; 0 uses MaxPositions.
	CandidatePool int  `json:"candidate_pool,omitempty" yaml:"candidate_pool,omitempty"`
	RotationSwaps bool `json:"rotation_swaps" yaml:"rotation_swaps"`
	MinOneShare   bool `json:"min_one_share" yaml:"min_one_share"`

	Drawdown risk.DrawdownPolicy `json:"drawdown_controls" yaml:"drawdown_controls"`
}

// DefaultStrategy returns the parameters of the stock momentum strategy.
func DefaultStrategy() Strategy {
	return Strategy{
		Name:              DefaultStrategyName,
		InitialCapital:    100000,
		RiskThreshold:     1.0,
		MaxPositions:      15,
		BufferPercent:     0.25,
		ExitThreshold:     40,
		SLMultiplier:      2.0,
		SLFallbackPercent: 0.06,
		SLStepPercent:     0, // hard step stop off
		Drawdown:          risk.DefaultDrawdownPolicy(),
	}
}

// UnmarshalYAML decodes over the defaults so a strategy only lists what
// it changes.
func (s *Strategy) UnmarshalYAML(value *yaml.Node) error {
	type plain Strategy
	*s = DefaultStrategy()
	s.Name = ""
	return value.Decode((*plain)(s))
}

func (s *Strategy) UnmarshalJSON(data []byte) error {
	type plain Strategy
	*s = DefaultStrategy()
	s.Name = ""
	return json.Unmarshal(data, (*plain)(s))
}

// Swap returns the swap buffer in effect.
func (s Strategy) Swap() float64 {
	if s.SwapBuffer != nil {
		return *s.SwapBuffer
	}
	return s.BufferPercent
}

// Pool returns the number of ranked candidates considered each week.
func (s Strategy) Pool() int {
	if s.CandidatePool > 0 {
		return s.CandidatePool
	}
	return s.MaxPositions
}

// RiskAmount is the currency risked per position.
func (s Strategy) RiskAmount() float64 {
	return risk.RiskAmount(s.InitialCapital, s.RiskThreshold)
}

// Stops returns the stop tracker configured by the strategy.
func (s Strategy) Stops() risk.StopTracker {
	return risk.StopTracker{
		Multiplier:      s.SLMultiplier,
		FallbackPercent: s.SLFallbackPercent,
		StepPercent:     s.SLStepPercent,
	}
}

// Validate checks the strategy; field names are prefixed with prefix.
func (s Strategy) Validate(prefix string) error {
	field := func(name string) string { return prefix + "." + name }
	if s.InitialCapital <= 0 {
		return invalid(field("initial_capital"), "must be positive")
	}
	if s.RiskThreshold <= 0 || s.RiskThreshold > 100 {
		return invalid(field("risk_threshold"), "must be between 0 and 100")
	}
	if s.MaxPositions < 1 {
		return invalid(field("max_positions"), "must be at least 1")
	}
	if s.BufferPercent < 0 || s.BufferPercent >= 1 {
		return invalid(field("buffer_percent"), "must be in [0, 1)")
	}
	if s.SwapBuffer != nil && *s.SwapBuffer < 0 {
		return invalid(field("swap_buffer"), "must not be negative")
	}
	if s.ExitThreshold < 0 || s.ExitThreshold > 100 {
		return invalid(field("exit_threshold"), "must be between 0 and 100")
	}
	if s.SLMultiplier <= 0 {
		return invalid(field("sl_multiplier"), "must be positive")
	}
	if s.SLFallbackPercent < 0 || s.SLFallbackPercent >= 1 {
		return invalid(field("sl_fallback_percent"), "must be in [0, 1)")
	}
	if s.SLStepPercent < 0 {
		return invalid(field("sl_step_percent"), "must not be negative")
	}
	if s.CandidatePool < 0 {
		return invalid(field("candidate_pool"), "must not be negative")
	}
	if err := s.Drawdown.Validate(); err != nil {
		return &ValidationError{Field: field("drawdown_controls"), Err: err}
	}
	return nil
}

// FeedConfig selects where snapshots and prices come from.
type FeedConfig struct {
	Type string `json:"type" yaml:"type"` // "csv", "bars" or "http"
	// Path is a snapshot CSV for "csv" or a directory of bar CSVs for
	// "bars".
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxStaleDays bounds as-of lookups.
	MaxStaleDays  int         `json:"max_stale_days" yaml:"max_stale_days"`
	RatePerSecond float64     `json:"rate_per_second,omitempty" yaml:"rate_per_second,omitempty"`
	Burst         int         `json:"burst,omitempty" yaml:"burst,omitempty"`
	MaxRetries    uint64      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Redis         RedisConfig `json:"redis" yaml:"redis"`
}

// ParseTimeout converts the timeout string to a time.Duration.
func (f FeedConfig) ParseTimeout() (time.Duration, error) {
	if f.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(f.Timeout)
}

// RedisConfig enables the snapshot cache when Addr is set.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	TTL      string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// ParseTTL converts the TTL string to a time.Duration.
func (r RedisConfig) ParseTTL() (time.Duration, error) {
	if r.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(r.TTL)
}

// JournalConfig contains persistence parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "none", "csv", "sqlite" or "postgres"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Report, when set, receives an Org-mode summary of each run.
	Report string `json:"report,omitempty" yaml:"report,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// ScheduleConfig drives the ranking job of the watch command.
type ScheduleConfig struct {
	Spec     string `json:"spec" yaml:"spec"`
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	TopN     int    `json:"top_n" yaml:"top_n"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML or JSON over the defaults. Strategies are replaced,
// not merged, when the document lists any.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	defaults := cfg.Strategies
	cfg.Strategies = nil

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		cfg.Strategies = nil
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = defaults
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return &ValidationError{Field: "scoring", Err: err}
	}
	if len(c.Strategies) == 0 {
		return invalid("strategies", "at least one strategy is required")
	}
	for _, name := range c.StrategyNames() {
		if err := c.Strategies[name].Validate("strategies." + name); err != nil {
			return err
		}
	}
	if err := c.Costs.Validate(); err != nil {
		return &ValidationError{Field: "costs", Err: err}
	}
	if err := c.Tax.Validate(); err != nil {
		return &ValidationError{Field: "tax", Err: err}
	}

	switch c.Feed.Type {
	case "", "csv", "bars":
	case "http":
		if c.Feed.URL == "" {
			return invalid("feed.url", "required for http feed")
		}
	default:
		return invalid("feed.type", "must be 'csv', 'bars' or 'http'")
	}
	if _, err := c.Feed.ParseTimeout(); err != nil {
		return &ValidationError{Field: "feed.timeout", Err: err}
	}
	if _, err := c.Feed.Redis.ParseTTL(); err != nil {
		return &ValidationError{Field: "feed.redis.ttl", Err: err}
	}
	if c.Feed.MaxStaleDays < 0 {
		return invalid("feed.max_stale_days", "must not be negative")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.Dir == "" {
			return invalid("journal.dir", "required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return invalid("journal.db_path", "required for SQLite type")
		}
	case "postgres":
		if c.Journal.DSN == "" {
			return invalid("journal.dsn", "required for postgres type")
		}
	default:
		return invalid("journal.type", "must be 'none', 'csv', 'sqlite' or 'postgres'")
	}

	if c.Schedule.Spec != "" {
		if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
			return &ValidationError{Field: "schedule.spec", Err: err}
		}
	}
	if c.Schedule.Strategy != "" {
		if _, ok := c.Strategies[c.Schedule.Strategy]; !ok {
			return invalid("schedule.strategy", "unknown strategy %q", c.Schedule.Strategy)
		}
	}
	if c.Schedule.TopN < 0 {
		return invalid("schedule.top_n", "must not be negative")
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return invalid("log.format", "must be 'console' or 'json'")
	}
	return nil
}

// Strategy returns a copy of the named strategy with its Name filled in.
func (c *Config) Strategy(name string) (Strategy, error) {
	if name == "" {
		name = DefaultStrategyName
	}
	s, ok := c.Strategies[name]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	s.Name = name
	return s, nil
}

// StrategyNames lists configured strategies in sorted order.
func (c *Config) StrategyNames() []string {
	names := make([]string, 0, len(c.Strategies))
	for name := range c.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides deployment settings from MOMENTUM_* variables.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if v := getenv("MOMENTUM_DB_PATH"); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v := getenv("MOMENTUM_POSTGRES_DSN"); v != "" {
		c.Journal.Type = "postgres"
		c.Journal.DSN = v
	}
	if v := getenv("MOMENTUM_FEED_URL"); v != "" {
		c.Feed.Type = "http"
		c.Feed.URL = v
	}
	set(&c.Feed.Redis.Addr, "MOMENTUM_REDIS_ADDR")
	set(&c.Feed.Redis.Password, "MOMENTUM_REDIS_PASSWORD")
	set(&c.Metrics.Addr, "MOMENTUM_METRICS_ADDR")
	set(&c.Log.Level, "MOMENTUM_LOG_LEVEL")
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Scoring: scoring.DefaultConfig(),
		Strategies: map[string]Strategy{
			DefaultStrategyName: DefaultStrategy(),
		},
		Costs:  costs.DefaultDelivery(),
		Impact: costs.DefaultImpact(),
		Tax:    costs.DefaultCapitalGains(),
		Feed: FeedConfig{
			Type:          "csv",
			Timeout:       "10s",
			MaxStaleDays:  7,
			RatePerSecond: 5,
			Burst:         1,
			MaxRetries:    3,
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Metrics: MetricsConfig{
			Addr: ":9102",
		},
		Schedule: ScheduleConfig{
			Spec:     "30 16 * * 5",
			Strategy: DefaultStrategyName,
			TopN:     15,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
