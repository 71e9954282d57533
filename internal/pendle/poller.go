package pendle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Mak300079/MT-watchers/internal/metrics"
	"github.com/Mak300079/MT-watchers/internal/model"
	"github.com/Mak300079/MT-watchers/internal/notify"
	"github.com/Mak300079/MT-watchers/internal/storage"
)

// Lister fetches the current full asset listing.
type Lister interface {
	FetchAssets(ctx context.Context) ([]model.Asset, error)
}

// AssetStore persists the full listing so last-seen timestamps stay fresh.
type AssetStore interface {
	UpsertAssets(ctx context.Context, assets []model.Asset) error
}

// PollerConfig holds the asset poller's cadence knobs.
type PollerConfig struct {
	PollInterval  time.Duration // default 15m
	ErrorBackoff  time.Duration // default 5m
	SnapshotDir   string        // empty disables dated snapshots
	SnapshotEvery int           // cycles between snapshots, default 96
}

func (c *PollerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Minute
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Minute
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = 96
	}
}

// Poller diffs the asset listing against the previous snapshot and reports
// newly listed assets. Persistence is best-effort: a missing store or sink
// never stops the loop.
type Poller struct {
	cfg       PollerConfig
	lister    Lister
	store     AssetStore        // optional
	sink      storage.AssetSink // optional discovery log
	state     *StateStore
	notifiers []notify.Notifier
	logger    *zap.Logger

	prev       map[string]struct{}
	prevLoaded bool
	cycle      int
}

func NewPoller(
	cfg PollerConfig,
	lister Lister,
	store AssetStore,
	sink storage.AssetSink,
	state *StateStore,
	notifiers []notify.Notifier,
	logger *zap.Logger,
) *Poller {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = NewStateStore("")
	}
	return &Poller{
		cfg:       cfg,
		lister:    lister,
		store:     store,
		sink:      sink,
		state:     state,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled. Cycle errors are logged and retried after
// a fixed backoff.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("asset poller starting", zap.Duration("poll_interval", p.cfg.PollInterval))

	for {
		delay := p.cfg.PollInterval
		if err := p.cycleOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.PollErrors.Inc()
			p.logger.Warn("poll cycle failed", zap.Duration("backoff", p.cfg.ErrorBackoff), zap.Error(err))
			delay = p.cfg.ErrorBackoff
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) cycleOnce(ctx context.Context) error {
	assets, err := p.lister.FetchAssets(ctx)
	if err != nil {
		return err
	}

	if !p.prevLoaded {
		state, ok, err := p.state.Load()
		if err != nil {
			return err
		}
		p.prev = keySet(state.Assets)
		p.prevLoaded = true
		if ok {
			p.logger.Info("resumed asset baseline", zap.Int("assets", len(state.Assets)))
		}
	}

	newAssets := detectNew(p.prev, assets)

	// Upsert the full listing so last_seen_ts stays fresh; DB trouble must
	// not lose the diff, so it is logged rather than returned.
	if p.store != nil {
		if err := p.store.UpsertAssets(ctx, assets); err != nil {
			p.logger.Error("asset upsert failed", zap.Error(err))
		}
	}

	if len(newAssets) > 0 {
		metrics.NewAssets.Add(float64(len(newAssets)))
		p.logger.Info("new assets detected", zap.Int("count", len(newAssets)))
		notify.Broadcast(ctx, p.logger, p.notifiers, listingMessage(newAssets))

		if p.sink != nil {
			if err := p.sink.AppendAssets(newAssets); err != nil {
				p.logger.Warn("discovery log append failed", zap.Error(err))
			}
		}
	}

	if err := p.state.Save(assets); err != nil {
		return err
	}
	p.prev = keySet(assets)

	if p.cfg.SnapshotDir != "" && p.cycle%p.cfg.SnapshotEvery == 0 {
		path, err := SaveSnapshot(p.cfg.SnapshotDir, assets)
		if err != nil {
			p.logger.Warn("snapshot failed", zap.Error(err))
		} else {
			p.logger.Info("snapshot saved", zap.String("path", path))
		}
	}
	p.cycle++
	metrics.PollCycles.Inc()

	return nil
}

func keySet(assets []model.Asset) map[string]struct{} {
	set := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		set[a.Key()] = struct{}{}
	}
	return set
}

func detectNew(prev map[string]struct{}, curr []model.Asset) []model.Asset {
	var fresh []model.Asset
	for _, a := range curr {
		if _, ok := prev[a.Key()]; !ok {
			fresh = append(fresh, a)
		}
	}
	return fresh
}

func listingMessage(newAssets []model.Asset) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pendle watcher: %d new assets detected:", len(newAssets))
	for _, a := range newAssets {
		sb.WriteString("\n")
		sb.WriteString(a.DisplayName())
	}
	return sb.String()
}
