package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

const dateLayout = "2006-01-02"

type EtaConfig struct {
	Alpha              float64       `yaml:"alpha"`
	MinPublishInterval time.Duration `yaml:"min_publish_interval"`
	MinShift           time.Duration `yaml:"min_shift"`
	StaleAfter         time.Duration `yaml:"stale_after"`
}

type HealthConfig struct {
	DegradedAfter int           `yaml:"degraded_after"`
	ExcludedAfter int           `yaml:"excluded_after"`
	ExcludeTTL    time.Duration `yaml:"exclude_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	StreamInterval time.Duration `yaml:"stream_interval"`
}

type Config struct {
	// TickInterval is the autonomous cadence; zero means force-tick only.
	TickInterval    time.Duration    `yaml:"tick_interval"`
	TicksPerCycle   int              `yaml:"ticks_per_cycle"`
	CommissionRatio float64          `yaml:"commission_ratio"`
	BarFeedTimeout  time.Duration    `yaml:"bar_feed_timeout"`
	Timeframes      []string         `yaml:"timeframes"`
	StartDate       string           `yaml:"start_date"`
	EndDate         string           `yaml:"end_date"`
	Eta             EtaConfig        `yaml:"eta"`
	Health          HealthConfig     `yaml:"health"`
	Database        DatabaseConfig   `yaml:"database"`
	ClickHouse      ClickHouseConfig `yaml:"clickhouse"`
	HTTP            HTTPConfig       `yaml:"http"`
	Runners         []*models.Runner `yaml:"runners"`
}

func DefaultConfig() *Config {
	return &Config{
		TickInterval:    time.Second,
		TicksPerCycle:   1,
		CommissionRatio: 0.001,
		BarFeedTimeout:  10 * time.Second,
		Eta: EtaConfig{
			Alpha:              0.1,
			MinPublishInterval: 30 * time.Second,
			MinShift:           60 * time.Second,
			StaleAfter:         5 * time.Minute,
		},
		Health: HealthConfig{
			DegradedAfter: 3,
			ExcludedAfter: 10,
			ExcludeTTL:    24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Port:           8080,
			StreamInterval: time.Second,
		},
	}
}

// LoadConfig reads a YAML file over the defaults and applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SIM_TICK_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SIM_TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}

	if v, ok := lookup("SIM_TICKS_PER_CYCLE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIM_TICKS_PER_CYCLE: %w", err)
		}
		c.TicksPerCycle = n
	}

	if v, ok := lookup("SIM_COMMISSION_RATIO"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SIM_COMMISSION_RATIO: %w", err)
		}
		c.CommissionRatio = f
	}

	if v, ok := lookup("DATABASE_URL"); ok {
		c.Database.URL = v
	}

	if v, ok := lookup("CLICKHOUSE_ADDR"); ok {
		c.ClickHouse.Addr = v
	}

	if v, ok := lookup("HTTP_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.HTTP.Port = n
	}

	return nil
}

func (c *Config) Validate() error {
	if c.TickInterval < 0 {
		return fmt.Errorf("tick_interval must not be negative")
	}

	if c.TicksPerCycle <= 0 {
		return fmt.Errorf("ticks_per_cycle must be positive")
	}

	if c.CommissionRatio < 0 || c.CommissionRatio >= 1 {
		return fmt.Errorf("commission_ratio must be in [0, 1)")
	}

	if c.BarFeedTimeout <= 0 {
		return fmt.Errorf("bar_feed_timeout must be positive")
	}

	if c.Eta.Alpha <= 0 || c.Eta.Alpha > 1 {
		return fmt.Errorf("eta.alpha must be in (0, 1]")
	}

	if _, err := c.ParseTimeframes(); err != nil {
		return err
	}

	if _, err := c.DateRange(); err != nil {
		return err
	}

	return nil
}

func (c *Config) Commission() decimal.Decimal {
	return decimal.NewFromFloat(c.CommissionRatio)
}

func (c *Config) ParseTimeframes() ([]models.Timeframe, error) {
	var out []models.Timeframe
	for _, s := range c.Timeframes {
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}

	return out, nil
}

// DateRange returns the configured range, or nil when unset. The end date
// is inclusive.
func (c *Config) DateRange() (*models.DateRange, error) {
	if c.StartDate == "" && c.EndDate == "" {
		return nil, nil
	}

	if c.StartDate == "" || c.EndDate == "" {
		return nil, fmt.Errorf("start_date and end_date must be set together")
	}

	start, err := time.ParseInLocation(dateLayout, c.StartDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}

	end, err := time.ParseInLocation(dateLayout, c.EndDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}

	end = end.AddDate(0, 0, 1)
	if !end.After(start) {
		return nil, fmt.Errorf("end_date must not be before start_date")
	}

	return &models.DateRange{StartEpoch: start.Unix(), EndEpoch: end.Unix()}, nil
}
