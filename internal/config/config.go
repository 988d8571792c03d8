// Package config loads the top-level YAML configuration spec.md §6
// names under "Configuration". gopkg.in/yaml.v3 is already an indirect
// dependency of the teacher's go.mod (pulled in transitively by
// testify); this promotes it to a direct, load-bearing use.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Symbols []string `yaml:"symbols"`

	GatewayAddress     string `yaml:"gateway_address"`
	GatewayPort        int    `yaml:"gateway_port"`
	SnapshotIntervalMS int    `yaml:"snapshot_interval_ms"`
	LogLevel           string `yaml:"log_level"`

	MaxOrderQuantity string `yaml:"max_order_quantity"`
	MaxOrderPrice    string `yaml:"max_order_price"`

	MakerFeeRate string `yaml:"maker_fee_rate"`
	TakerFeeRate string `yaml:"taker_fee_rate"`

	BroadcastWindowMS          int `yaml:"broadcast_window_ms"`
	PersistenceBatchSize       int `yaml:"persistence_batch_size"`
	PersistenceBatchIntervalMS int `yaml:"persistence_batch_interval_ms"`
	TradeHistoryCap            int `yaml:"trade_history_cap"`
	DepthLevelsDefault         int `yaml:"depth_levels_default"`

	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`

	IngressQueueSize     int `yaml:"ingress_queue_size"`
	PersistenceQueueSize int `yaml:"persistence_queue_size"`
}

// PostgresConfig is the durable event-log/snapshot store's connection.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig is the broadcast bus's connection. Addr empty means "use
// the in-process local bus instead" (the default for tests and single-
// node demos).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns sane defaults matching the ranges spec.md §4.5/§5
// names (batch size 100-500, batch interval 20-50ms, broadcast window
// 5ms, bounded queues at 10 000, trade history cap 10 000).
func Default() Config {
	return Config{
		Symbols:                    []string{"BTC-USDT"},
		GatewayAddress:             "0.0.0.0",
		GatewayPort:                9001,
		SnapshotIntervalMS:         60000,
		LogLevel:                   "info",
		MaxOrderQuantity:           "1000000",
		MaxOrderPrice:              "10000000",
		MakerFeeRate:               "0.0010",
		TakerFeeRate:               "0.0015",
		BroadcastWindowMS:          5,
		PersistenceBatchSize:       200,
		PersistenceBatchIntervalMS: 25,
		TradeHistoryCap:            10000,
		DepthLevelsDefault:         10,
		IngressQueueSize:           10000,
		PersistenceQueueSize:       10000,
	}
}

// Load reads and parses a YAML config file, filling in Default() for
// anything left zero-valued.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// MaxQuantity parses MaxOrderQuantity into a decimal.
func (c Config) MaxQuantity() (decimal.Decimal, error) { return decimal.NewFromString(c.MaxOrderQuantity) }

// MaxPrice parses MaxOrderPrice into a decimal.
func (c Config) MaxPrice() (decimal.Decimal, error) { return decimal.NewFromString(c.MaxOrderPrice) }

// MakerFee parses MakerFeeRate into a decimal.
func (c Config) MakerFee() (decimal.Decimal, error) { return decimal.NewFromString(c.MakerFeeRate) }

// TakerFee parses TakerFeeRate into a decimal.
func (c Config) TakerFee() (decimal.Decimal, error) { return decimal.NewFromString(c.TakerFeeRate) }
