package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Pool       PoolConfig       `mapstructure:"pool"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Series     SeriesConfig     `mapstructure:"series"`
	Historical HistoricalConfig `mapstructure:"historical"`
	Log        LogConfig        `mapstructure:"log"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
}

// PoolConfig is the static metadata of the monitored pool. Token decimal
// places and the quote direction are configuration, not computed per event.
type PoolConfig struct {
	Address         string `mapstructure:"address"`          // pool contract address
	Token0Decimals  int    `mapstructure:"token0_decimals"`  // e.g. 6 for USDC
	Token1Decimals  int    `mapstructure:"token1_decimals"`  // e.g. 18 for WETH
	QuoteToken0     bool   `mapstructure:"quote_token0"`     // quote prices in token0 per token1
}

type FeedConfig struct {
	URL           string        `mapstructure:"url"`            // websocket endpoint
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`   // handshake + subscription ack deadline
	PingInterval  time.Duration `mapstructure:"ping_interval"`  // keepalive cadence, 0 disables
	ReconnectBase time.Duration `mapstructure:"reconnect_base"` // first retry delay
	ReconnectMax  time.Duration `mapstructure:"reconnect_max"`  // backoff cap
}

// SeriesConfig bounds the in-memory price series. Mode is "window" or
// "count"; the two policies are mutually exclusive.
type SeriesConfig struct {
	Mode             string        `mapstructure:"mode"`
	Window           time.Duration `mapstructure:"window"`            // window mode: retention span
	MaxPoints        int           `mapstructure:"max_points"`        // count mode: most recent N
	CoalesceInterval time.Duration `mapstructure:"coalesce_interval"` // update-in-place span for dense swaps
	EvictInterval    time.Duration `mapstructure:"evict_interval"`    // maintenance tick period
	Cadence          time.Duration `mapstructure:"cadence"`           // placeholder spacing in gaps
	CadenceFill      bool          `mapstructure:"cadence_fill"`      // enable gap placeholders
}

type HistoricalConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Lookback time.Duration `mapstructure:"lookback"` // how far back to seed
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	// Support environment variables with dot notation (e.g., FEED_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Env-only operation is fine; only a malformed file is fatal.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.dial_timeout", 10*time.Second)
	v.SetDefault("feed.ping_interval", 25*time.Second)
	v.SetDefault("feed.reconnect_base", 2*time.Second)
	v.SetDefault("feed.reconnect_max", 30*time.Second)

	v.SetDefault("series.mode", "window")
	v.SetDefault("series.window", 10*time.Minute)
	v.SetDefault("series.coalesce_interval", 30*time.Second)
	v.SetDefault("series.evict_interval", 5*time.Second)
	v.SetDefault("series.cadence", 30*time.Second)

	v.SetDefault("historical.timeout", 15*time.Second)
	v.SetDefault("historical.lookback", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "dev")
}

func (c *Config) Validate() error {
	if c.Pool.Address == "" {
		return fmt.Errorf("pool.address is required")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	switch c.Series.Mode {
	case "window":
		if c.Series.Window <= 0 {
			return fmt.Errorf("series.window must be positive in window mode")
		}
		if c.Series.CadenceFill && c.Series.Cadence <= 0 {
			return fmt.Errorf("series.cadence must be positive when cadence_fill is enabled")
		}
	case "count":
		if c.Series.MaxPoints <= 0 {
			return fmt.Errorf("series.max_points must be positive in count mode")
		}
		if c.Series.CadenceFill {
			// in count mode placeholders would evict real observations
			return fmt.Errorf("series.cadence_fill requires window mode")
		}
	default:
		return fmt.Errorf("series.mode must be \"window\" or \"count\", got %q", c.Series.Mode)
	}
	return nil
}
