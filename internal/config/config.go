package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	// Cap watcher
	RPCURL        string
	Contract      string
	Confirmations uint64
	MaxSpan       uint64
	PollInterval  time.Duration
	StartBlock    uint64
	CallTimeout   time.Duration
	BackoffMax    time.Duration

	// Notifications
	TelegramBotToken string
	TelegramChatID   string

	// Asset poller
	PendleEnabled      bool
	PendleAPIURL       string
	PendleChainID      uint64
	PendlePollInterval time.Duration
	PendleStatePath    string
	PendleDiscoveryLog string
	PendleSnapshotDir  string
	PGDSN              string

	// Service
	ListenAddr string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MTW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("confirmations", uint64(3))
	v.SetDefault("max-span", uint64(10))
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("call-timeout", 15*time.Second)
	v.SetDefault("backoff-max", time.Minute)
	v.SetDefault("pendle-api-url", "")
	v.SetDefault("pendle-chain-id", uint64(1))
	v.SetDefault("pendle-poll-interval", 15*time.Minute)
	v.SetDefault("pendle-state", "./data/pendle_assets_latest.json")
	v.SetDefault("pendle-discovery-log", "./data/pendle_new_assets.jsonl")
	v.SetDefault("pendle-snapshot-dir", "./data/pendle_snapshots")
	v.SetDefault("listen", ":8080")
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

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		Contract:      v.GetString("contract"),
		Confirmations: v.GetUint64("confirmations"),
		MaxSpan:       v.GetUint64("max-span"),
		PollInterval:  v.GetDuration("poll-interval"),
		StartBlock:    v.GetUint64("start-block"),
		CallTimeout:   v.GetDuration("call-timeout"),
		BackoffMax:    v.GetDuration("backoff-max"),

		TelegramBotToken: v.GetString("telegram-bot-token"),
		TelegramChatID:   v.GetString("telegram-chat-id"),

		PendleEnabled:      v.GetBool("pendle-enabled"),
		PendleAPIURL:       v.GetString("pendle-api-url"),
		PendleChainID:      v.GetUint64("pendle-chain-id"),
		PendlePollInterval: v.GetDuration("pendle-poll-interval"),
		PendleStatePath:    v.GetString("pendle-state"),
		PendleDiscoveryLog: v.GetString("pendle-discovery-log"),
		PendleSnapshotDir:  v.GetString("pendle-snapshot-dir"),
		PGDSN:              v.GetString("pg-dsn"),

		ListenAddr: v.GetString("listen"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
