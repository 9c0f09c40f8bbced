package service

import (
	"context"
	"sync"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/util"
	"github.com/rs/zerolog"
)

// MaterializerWorker periodically materializes the current month
type MaterializerWorker struct {
	materializer *Materializer
	logger       zerolog.Logger
	interval     time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	mu           sync.Mutex
	running      bool
}

// NewMaterializerWorker creates a new worker; a non-positive interval defaults to one hour
func NewMaterializerWorker(materializer *Materializer, logger zerolog.Logger, interval time.Duration) *MaterializerWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &MaterializerWorker{
		materializer: materializer,
		logger:       logger.With().Str("component", "materializer_worker").Logger(),
		interval:     interval,
	}
}

// Start begins the background loop. Calling it twice is a no-op.
func (w *MaterializerWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	// fresh channels per run so the worker can be restarted after Stop
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	w.stopCh = stopCh
	w.doneCh = doneCh
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("Starting materializer worker")
	go w.run(ctx, stopCh, doneCh)
}

// Stop waits for the loop to exit
func (w *MaterializerWorker) Stop() {
	w.mu.Lock()
	if !w.running || w.stopCh == nil {
		w.mu.Unlock()
		return
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.stopCh = nil
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	w.logger.Info().Msg("Materializer worker stopped")
}

// IsRunning returns whether the worker is currently running
func (w *MaterializerWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *MaterializerWorker) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		w.mu.Lock()
		if w.doneCh == doneCh {
			w.running = false
			w.stopCh = nil
		}
		w.mu.Unlock()
		close(doneCh)
	}()

	// A run missed at the end of last month is picked up on startup
	month, year := w.materializer.CurrentPeriod()
	prevMonth, prevYear := util.PreviousPeriod(month, year)
	w.materialize(ctx, prevMonth, prevYear)
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *MaterializerWorker) tick(ctx context.Context) {
	month, year := w.materializer.CurrentPeriod()
	w.materialize(ctx, month, year)
}

func (w *MaterializerWorker) materialize(ctx context.Context, month, year int) {
	stats, err := w.materializer.Run(ctx, month, year)
	if err != nil {
		w.logger.Error().Err(err).Int("month", month).Int("year", year).Msg("Materialization run failed")
		return
	}
	if len(stats.Errors) > 0 {
		w.logger.Warn().Int("month", month).Int("year", year).Int("errors", len(stats.Errors)).Msg("Materialization finished with errors")
	}
}
