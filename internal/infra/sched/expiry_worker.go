package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"activation-card-service/internal/usecase"
)

// ExpiryWorker periodically records overdue cards as expired via the use
// case. Lazy expiry already corrects cards on access; the sweep covers cards
// nobody touches.
type ExpiryWorker struct {
	interval time.Duration
	cardUC   usecase.CardUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, cardUC usecase.CardUseCase, logger *zerolog.Logger) *ExpiryWorker {
	wLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		cardUC:   cardUC,
		log:      &wLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.cardUC.SweepExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("overdue cards expired")
			}
		}
	}
}
