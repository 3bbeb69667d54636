package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"arbwatcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Nobitex   SourceConfig    `mapstructure:"nobitex"`
	Wallex    SourceConfig    `mapstructure:"wallex"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs scan cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// ArbitrageConfig defines the scanned universe and profitability threshold.
type ArbitrageConfig struct {
	// Symbols are scanned in configured order each cycle.
	Symbols []string `mapstructure:"symbols"`
	// Threshold is a fraction: 0.01 means a 1% spread triggers.
	Threshold float64 `mapstructure:"threshold"`
}

// SourceConfig captures connectivity and request budget for one exchange.
type SourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	MaxPerWindow   int           `mapstructure:"max_requests_per_window"`
	Window         time.Duration `mapstructure:"window"`
	MinSpacing     time.Duration `mapstructure:"min_spacing"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines alert routing and the per-symbol cooldown.
type AlertingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Bale     BaleConfig    `mapstructure:"bale"`
}

// BaleConfig 描述 Bale 机器人告警参数。
type BaleConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARBWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.poll_interval", "1s")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x61726277))

	v.SetDefault("arbitrage.symbols", []string{
		"BTCUSDT", "ETHUSDT", "LTCUSDT", "XRPUSDT", "BCHUSDT",
		"BNBUSDT", "XLMUSDT", "ETCUSDT", "TRXUSDT", "DOGEUSDT",
		"UNIUSDT", "DAIUSDT", "LINKUSDT", "DOTUSDT", "AAVEUSDT",
	})
	v.SetDefault("arbitrage.threshold", 0.01)

	v.SetDefault("nobitex.base_url", "https://apiv2.nobitex.ir")
	v.SetDefault("nobitex.max_requests_per_window", 60)
	v.SetDefault("nobitex.window", "60s")
	v.SetDefault("nobitex.min_spacing", "1s")
	v.SetDefault("nobitex.request_timeout", "10s")
	v.SetDefault("nobitex.user_agent", "arbwatcher/1.0")

	v.SetDefault("wallex.base_url", "https://api.wallex.ir")
	v.SetDefault("wallex.max_requests_per_window", 60)
	v.SetDefault("wallex.window", "60s")
	v.SetDefault("wallex.min_spacing", "1s")
	v.SetDefault("wallex.request_timeout", "10s")
	v.SetDefault("wallex.user_agent", "arbwatcher/1.0")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "5m")
	v.SetDefault("alerting.bale.enabled", false)
	v.SetDefault("alerting.bale.api_base", "https://tapi.bale.ai")
	v.SetDefault("alerting.bale.request_timeout", "10s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":8000")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Arbitrage.Symbols) == 0 {
		return fmt.Errorf("arbitrage.symbols must not be empty")
	}
	if c.Arbitrage.Threshold < 0 {
		return fmt.Errorf("arbitrage.threshold cannot be negative")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	for name, src := range map[string]SourceConfig{"nobitex": c.Nobitex, "wallex": c.Wallex} {
		if src.MaxPerWindow <= 0 {
			return fmt.Errorf("%s.max_requests_per_window must be greater than zero", name)
		}
		if src.Window <= 0 {
			return fmt.Errorf("%s.window must be greater than zero", name)
		}
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Alerting.Bale.Enabled {
		if c.Alerting.Bale.BotToken == "" {
			return fmt.Errorf("alerting.bale.bot_token 必须配置")
		}
		if c.Alerting.Bale.ChatID == "" {
			return fmt.Errorf("alerting.bale.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
