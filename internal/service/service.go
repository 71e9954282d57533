package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Mak300079/MT-watchers/internal/pendle"
	"github.com/Mak300079/MT-watchers/internal/watcher"
)

// Service hosts the cap watcher and the optional asset poller behind an HTTP
// server exposing health and metrics.
type Service struct {
	addr    string
	watcher *watcher.Watcher
	poller  *pendle.Poller // optional
	logger  *zap.Logger
}

func New(addr string, capWatcher *watcher.Watcher, poller *pendle.Poller, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		addr:    addr,
		watcher: capWatcher,
		poller:  poller,
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled or a watcher fails terminally. Both
// watchers receive the same context, so cancellation reaches every sleep
// point and the loops exit without cutting a window short.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)

	go func() { errCh <- s.watcher.Run(ctx) }()
	if s.poller != nil {
		go func() { errCh <- s.poller.Run(ctx) }()
	}

	server := &http.Server{Addr: s.addr, Handler: s.routes()}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("http server listening", zap.String("addr", s.addr))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}

	return runErr
}

func (s *Service) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":        "ok",
		"watcher_state": s.watcher.State().String(),
	})
}
