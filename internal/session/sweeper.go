package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

// Sweeper periodically prunes the session index. The work is advisory:
// Redis already expires session payloads via TTL.
type Sweeper struct {
	store    *Store
	logger   *logging.Logger
	schedule string
	cron     *cron.Cron
}

// NewSweeper creates a sweeper on a cron schedule (e.g. "@every 10m").
func NewSweeper(store *Store, schedule string, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("session: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{store: store, logger: logger, schedule: schedule}
}

// Start registers the sweep job and begins the cron loop.
func (w *Sweeper) Start() error {
	w.cron = cron.New()
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := w.store.Sweep(ctx)
		if err != nil {
			w.logger.Error("session sweep failed", "error", err)
			return
		}
		if removed > 0 {
			w.logger.Info("session sweep completed", "removed", removed)
		}
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for a running sweep to finish.
func (w *Sweeper) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}
