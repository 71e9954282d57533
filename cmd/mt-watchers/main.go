package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Mak300079/MT-watchers/internal/aave"
	"github.com/Mak300079/MT-watchers/internal/chain"
	"github.com/Mak300079/MT-watchers/internal/config"
	"github.com/Mak300079/MT-watchers/internal/notify"
	"github.com/Mak300079/MT-watchers/internal/pendle"
	"github.com/Mak300079/MT-watchers/internal/service"
	"github.com/Mak300079/MT-watchers/internal/storage"
	"github.com/Mak300079/MT-watchers/internal/storage/postgres"
	"github.com/Mak300079/MT-watchers/internal/watcher"
)

func main() {
	root := &cobra.Command{
		Use:          "mt-watchers",
		Short:        "Aave cap-change watcher and Pendle asset poller",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run both watchers behind a health/metrics HTTP server",
		RunE:  runServe,
	}
	addWatcherFlags(serveCmd)
	serveCmd.Flags().Bool("pendle-enabled", true, "run the Pendle asset poller")
	serveCmd.Flags().String("pendle-api-url", "", "Pendle assets endpoint (default: public API)")
	serveCmd.Flags().Uint64("pendle-chain-id", 1, "chain id passed to the assets endpoint")
	serveCmd.Flags().Duration("pendle-poll-interval", 15*time.Minute, "asset poll cadence")
	serveCmd.Flags().String("pendle-state", "./data/pendle_assets_latest.json", "asset baseline state file")
	serveCmd.Flags().String("pendle-discovery-log", "./data/pendle_new_assets.jsonl", "append-only discovery log (empty disables)")
	serveCmd.Flags().String("pendle-snapshot-dir", "./data/pendle_snapshots", "dated snapshot dir (empty disables)")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN for asset upserts (empty disables)")
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	root.AddCommand(serveCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the cap watcher alone in the foreground",
		RunE:  runWatch,
	}
	addWatcherFlags(watchCmd)
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addWatcherFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("contract", aave.DefaultConfigurator.Hex(), "PoolConfigurator address")
	cmd.Flags().Uint64("confirmations", 3, "blocks held back from head")
	cmd.Flags().Uint64("max-span", 10, "max blocks per getLogs query")
	cmd.Flags().Duration("poll-interval", 5*time.Second, "sleep between polls when caught up")
	cmd.Flags().Uint64("start-block", 0, "manual start block (0 derives from head)")
	cmd.Flags().Duration("call-timeout", 15*time.Second, "per-RPC-call timeout")
	cmd.Flags().Duration("backoff-max", time.Minute, "max backoff after failed iterations")
	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token")
	cmd.Flags().String("telegram-chat-id", "", "Telegram chat id")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capWatcher, chainClient, err := buildCapWatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	var poller *pendle.Poller
	if cfg.PendleEnabled {
		poller = buildPoller(ctx, cfg, logger)
	}

	svc := service.New(cfg.ListenAddr, capWatcher, poller, logger)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capWatcher, chainClient, err := buildCapWatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	if err := capWatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func buildCapWatcher(ctx context.Context, cfg config.Config, logger *zap.Logger) (*watcher.Watcher, *chain.Client, error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, nil, fmt.Errorf("invalid contract address: %s", cfg.Contract)
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.CallTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	notifiers := buildNotifiers(cfg, logger)
	labels := aave.NewLabelResolver(chainClient)

	capWatcher := watcher.New(watcher.Config{
		Contract:      common.HexToAddress(cfg.Contract),
		Confirmations: cfg.Confirmations,
		MaxSpan:       cfg.MaxSpan,
		PollInterval:  cfg.PollInterval,
		StartBlock:    cfg.StartBlock,
		BackoffMax:    cfg.BackoffMax,
	}, chainClient, labels, notifiers, logger)

	return capWatcher, chainClient, nil
}

func buildPoller(ctx context.Context, cfg config.Config, logger *zap.Logger) *pendle.Poller {
	var store pendle.AssetStore
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable, asset upserts disabled", zap.Error(err))
		} else if err := pgStore.Ping(ctx); err != nil {
			logger.Error("postgres ping failed, asset upserts disabled", zap.Error(err))
			pgStore.Close()
		} else {
			store = pgStore
		}
	}

	var sink storage.AssetSink
	if cfg.PendleDiscoveryLog != "" {
		sink = storage.NewJsonlStorage(cfg.PendleDiscoveryLog)
	}

	return pendle.NewPoller(
		pendle.PollerConfig{
			PollInterval: cfg.PendlePollInterval,
			SnapshotDir:  cfg.PendleSnapshotDir,
		},
		pendle.NewClient(cfg.PendleAPIURL, cfg.PendleChainID),
		store,
		sink,
		pendle.NewStateStore(cfg.PendleStatePath),
		buildNotifiers(cfg, logger),
		logger,
	)
}

func buildNotifiers(cfg config.Config, logger *zap.Logger) []notify.Notifier {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		return []notify.Notifier{notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)}
	}
	logger.Warn("telegram not configured, alerts go to the process log")
	return []notify.Notifier{notify.NewLogNotifier(logger)}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
