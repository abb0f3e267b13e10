package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EventEntry is one row of the per-event classification table.
type EventEntry struct {
	Name      string `mapstructure:"name"`
	Type      string `mapstructure:"type"`
	Severity  string `mapstructure:"severity"`
	AssetKey  string `mapstructure:"asset-key"`
	AmountKey string `mapstructure:"amount-key"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL                string
	CometAddress          string
	ProtocolName          string
	ProtocolAbbreviation  string
	DeveloperAbbreviation string
	ProtocolVersion       string
	BaseTokenAddress      string
	BaseTokenSymbol       string
	BaseTokenDecimals     uint8
	PriceEndpoint         string
	CallTimeout           time.Duration
	PollInterval          time.Duration
	FromBlock             uint64
	Out                   string
	PGDSN                 string
	Checkpoint            string
	CheckpointEnabled     bool
	MaxRetries            int
	RetryBackoff          time.Duration
	LogLevel              string
	Events                []EventEntry
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("protocol-name", "Compound V3")
	v.SetDefault("protocol-abbreviation", "COMP")
	v.SetDefault("developer-abbreviation", "AE")
	v.SetDefault("protocol-version", "3")
	v.SetDefault("call-timeout", 10*time.Second)
	v.SetDefault("poll-interval", 12*time.Second)
	v.SetDefault("out", "./data/findings.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var events []EventEntry
	if v.IsSet("events") {
		if err := v.UnmarshalKey("events", &events); err != nil {
			return Config{}, fmt.Errorf("parse events: %w", err)
		}
	}
	if len(events) == 0 {
		events = DefaultEvents()
	}

	cfg := Config{
		RPCURL:                v.GetString("rpc"),
		CometAddress:          v.GetString("comet-address"),
		ProtocolName:          v.GetString("protocol-name"),
		ProtocolAbbreviation:  v.GetString("protocol-abbreviation"),
		DeveloperAbbreviation: v.GetString("developer-abbreviation"),
		ProtocolVersion:       v.GetString("protocol-version"),
		BaseTokenAddress:      v.GetString("base-token-address"),
		BaseTokenSymbol:       v.GetString("base-token-symbol"),
		BaseTokenDecimals:     uint8(v.GetUint("base-token-decimals")),
		PriceEndpoint:         v.GetString("price-endpoint"),
		CallTimeout:           v.GetDuration("call-timeout"),
		PollInterval:          v.GetDuration("poll-interval"),
		FromBlock:             v.GetUint64("from"),
		Out:                   v.GetString("out"),
		PGDSN:                 v.GetString("pg-dsn"),
		Checkpoint:            v.GetString("checkpoint"),
		CheckpointEnabled:     v.GetBool("checkpoint-enabled"),
		MaxRetries:            v.GetInt("max-retries"),
		RetryBackoff:          v.GetDuration("retry-backoff"),
		LogLevel:              v.GetString("log-level"),
		Events:                events,
	}

	return cfg, nil
}

// DefaultEvents is the canonical classification table for the four Comet
// balance events.
func DefaultEvents() []EventEntry {
	return []EventEntry{
		{Name: "Supply", Type: "Info", Severity: "Info", AmountKey: "amount"},
		{Name: "Withdraw", Type: "Info", Severity: "Info", AmountKey: "amount"},
		{Name: "SupplyCollateral", Type: "Info", Severity: "Info", AssetKey: "asset", AmountKey: "amount"},
		{Name: "WithdrawCollateral", Type: "Info", Severity: "Info", AssetKey: "asset", AmountKey: "amount"},
	}
}
