package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/Mak300079/MT-watchers/internal/aave"
	"github.com/Mak300079/MT-watchers/internal/chain"
	"github.com/Mak300079/MT-watchers/internal/metrics"
	"github.com/Mak300079/MT-watchers/internal/model"
	"github.com/Mak300079/MT-watchers/internal/notify"
)

// ChainSource is the read-only chain boundary the watcher consumes.
type ChainSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// LabelSource resolves asset addresses to human labels. Never fails.
type LabelSource interface {
	Resolve(ctx context.Context, asset common.Address) string
}

// State is the externally observable loop state.
type State int32

const (
	StateStarting State = iota
	StateCatchingUp
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateCatchingUp:
		return "catching_up"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Config holds the cap watcher's policy knobs.
type Config struct {
	Contract      common.Address
	Confirmations uint64        // blocks held back from head for reorg immunity
	MaxSpan       uint64        // provider-imposed cap on blocks per getLogs
	PollInterval  time.Duration // sleep between polls when caught up
	StartBlock    uint64        // manual cursor override; 0 derives from head
	BackoffSeed   time.Duration
	BackoffMax    time.Duration
}

func (c *Config) applyDefaults() {
	if c.Confirmations == 0 {
		c.Confirmations = 3
	}
	if c.MaxSpan == 0 {
		c.MaxSpan = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BackoffSeed <= 0 {
		c.BackoffSeed = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Minute
	}
}

// Watcher walks the chain in safe windows, decodes cap-change logs, and
// forwards alerts. Single goroutine: the cursor and backoff need no locking.
type Watcher struct {
	cfg       Config
	chain     ChainSource
	labels    LabelSource
	notifiers []notify.Notifier
	logger    *zap.Logger
	topics    []common.Hash

	cursor  uint64
	backoff time.Duration
	state   atomic.Int32
}

func New(cfg Config, chainSource ChainSource, labels LabelSource, notifiers []notify.Notifier, logger *zap.Logger) *Watcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		cfg:       cfg,
		chain:     chainSource,
		labels:    labels,
		notifiers: notifiers,
		logger:    logger,
		topics:    aave.CapTopics(),
		backoff:   cfg.BackoffSeed,
	}
}

// State reports the current loop state; safe to read from other goroutines.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Run drives the loop until ctx is cancelled. The only terminal error is
// failing to establish the initial cursor; everything after that is retried
// with capped exponential backoff and the cursor is never rolled back.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.start(ctx); err != nil {
		return fmt.Errorf("establish initial cursor: %w", err)
	}

	for {
		if err := w.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.LoopErrors.Inc()
			w.logger.Warn("iteration failed, backing off",
				zap.Uint64("cursor", w.cursor),
				zap.Duration("backoff", w.backoff),
				zap.Error(err),
			)
			if !w.sleep(ctx, w.backoff) {
				return ctx.Err()
			}
			w.backoff = min(w.backoff*2, w.cfg.BackoffMax)
			continue
		}

		w.backoff = w.cfg.BackoffSeed
		w.state.Store(int32(StateIdle))
		if !w.sleep(ctx, w.cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

func (w *Watcher) start(ctx context.Context) error {
	if w.cfg.StartBlock > 0 {
		w.cursor = w.cfg.StartBlock
	} else {
		head, err := w.chain.BlockNumber(ctx)
		if err != nil {
			return err
		}
		w.cursor = 0
		if head > w.cfg.Confirmations {
			w.cursor = head - w.cfg.Confirmations
		}
	}

	metrics.CursorHeight.Set(float64(w.cursor))
	w.logger.Info("watcher starting",
		zap.String("contract", w.cfg.Contract.Hex()),
		zap.Uint64("cursor", w.cursor),
		zap.Uint64("confirmations", w.cfg.Confirmations),
		zap.Uint64("max_span", w.cfg.MaxSpan),
		zap.Duration("poll_interval", w.cfg.PollInterval),
	)
	return nil
}

// runOnce processes everything between the cursor and the current safe head.
// On error the cursor stays where it was, so the next attempt re-requests the
// identical window.
func (w *Watcher) runOnce(ctx context.Context) error {
	head, err := w.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}

	var safeHead uint64
	if head > w.cfg.Confirmations {
		safeHead = head - w.cfg.Confirmations
	}

	for {
		window, ok := PlanWindow(w.cursor, safeHead, w.cfg.MaxSpan)
		if !ok {
			return nil
		}
		w.state.Store(int32(StateCatchingUp))

		if err := w.processWindow(ctx, window); err != nil {
			return err
		}

		w.cursor = window.To + 1
		metrics.CursorHeight.Set(float64(w.cursor))
	}
}

func (w *Watcher) processWindow(ctx context.Context, window Window) error {
	logs, err := w.chain.FilterLogs(ctx, window.From, window.To, w.cfg.Contract, w.topics)
	if err != nil {
		if errors.Is(err, chain.ErrRangeTooLarge) {
			w.logger.Error("provider rejected window span, lower max-span",
				zap.Uint64("from", window.From),
				zap.Uint64("to", window.To),
				zap.Uint64("max_span", w.cfg.MaxSpan),
				zap.Error(err),
			)
		}
		return err
	}
	metrics.WindowsFetched.Inc()

	for _, lg := range logs {
		event, err := w.processLog(ctx, lg)
		if err != nil {
			metrics.DecodeFailures.Inc()
			w.logger.Warn("skipping log",
				zap.Uint64("block", lg.BlockNumber),
				zap.String("tx", lg.TxHash.Hex()),
				zap.String("address", lg.Address.Hex()),
				zap.Error(err),
			)
			continue
		}

		if event.Kind == model.KindUnknown {
			// The node-side topic filter should make this unreachable.
			w.logger.Warn("log with unregistered topic0 passed the filter",
				zap.Uint64("block", lg.BlockNumber),
				zap.String("tx", lg.TxHash.Hex()),
				zap.String("topic0", lg.Topics[0].Hex()),
			)
			continue
		}

		metrics.EventsProcessed.WithLabelValues(string(event.Kind)).Inc()
		line := FormatAlert(event)
		w.logger.Info("cap change detected",
			zap.String("kind", string(event.Kind)),
			zap.Uint64("block", event.BlockNumber),
			zap.String("asset", event.AssetLabel),
			zap.String("old_cap", event.OldCap.String()),
			zap.String("new_cap", event.NewCap.String()),
		)
		notify.Broadcast(ctx, w.logger, w.notifiers, line)
	}

	return nil
}

func (w *Watcher) processLog(ctx context.Context, lg types.Log) (model.CapChangeEvent, error) {
	event, err := aave.DecodeCapChange(lg)
	if err != nil {
		return model.CapChangeEvent{}, err
	}

	ts, err := w.chain.BlockTimestamp(ctx, lg.BlockNumber)
	if err != nil {
		return model.CapChangeEvent{}, err
	}
	event.Timestamp = time.Unix(int64(ts), 0).UTC()
	event.AssetLabel = w.labels.Resolve(ctx, common.HexToAddress(event.AssetAddress))

	return event, nil
}

// FormatAlert renders the single notification line per emitted event.
func FormatAlert(event model.CapChangeEvent) string {
	return fmt.Sprintf("%s | Block %d | %s | Asset %s | %s -> %s",
		event.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"),
		event.BlockNumber,
		event.Kind,
		event.AssetLabel,
		event.OldCap.String(),
		event.NewCap.String(),
	)
}

// sleep waits for d or until ctx is done, returning false when stopped. The
// poll and backoff sleeps are the loop's only suspension points: a window,
// once started, always runs to completion.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
