package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes alert lines to the process log. Used as the delivery
// target when no external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, text string) error {
	l.logger.Info("alert", zap.String("text", text))
	return nil
}
