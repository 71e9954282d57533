package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Mak300079/MT-watchers/internal/metrics"
)

// Notifier delivers a single human-readable alert line downstream.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Broadcast sends text to every notifier. Delivery failures are logged and
// counted, never returned: an unreachable downstream must not feed back into
// the watcher's control flow.
func Broadcast(ctx context.Context, logger *zap.Logger, notifiers []Notifier, text string) {
	for _, n := range notifiers {
		if err := n.Notify(ctx, text); err != nil {
			metrics.NotifyFailures.Inc()
			logger.Warn("notification delivery failed", zap.Error(err))
		}
	}
}
