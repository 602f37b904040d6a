package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"activation-card-service/internal/domain/model"
	"activation-card-service/internal/domain/ports/repository"
	"activation-card-service/internal/infra/metrics"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	// Overview folds the current card collection into aggregate counts.
	// A non-positive window falls back to the 7-day default.
	Overview(ctx context.Context, window time.Duration) (model.CardStats, error)
}

const statsSnapshotLimit = 10000

type statsUC struct {
	cards repository.ActivationCardRepository
	log   *zerolog.Logger
	now   func() time.Time
}

func NewStatsUseCase(cards repository.ActivationCardRepository, logger *zerolog.Logger) *statsUC {
	ucLog := logger.With().Str("component", "StatsUseCase").Logger()
	return &statsUC{cards: cards, log: &ucLog, now: time.Now}
}

func (s *statsUC) Overview(ctx context.Context, window time.Duration) (model.CardStats, error) {
	cards, err := s.cards.List(ctx, repository.NoTX, repository.CardFilter{Limit: statsSnapshotLimit})
	if err != nil {
		return model.CardStats{}, err
	}
	stats := model.AggregateStats(cards, s.now(), window)
	metrics.SetCardsTotal(stats.ByStatus)
	return stats, nil
}
