package postgres

import (
	"context"
	"encoding/json"
	"time"

	"activation-card-service/internal/domain/model"
	"activation-card-service/internal/domain/ports/repository"
	"activation-card-service/internal/infra/metrics"
	red "activation-card-service/internal/infra/redis"
)

var _ repository.ActivationCardRepository = (*cardRepoCacheDecorator)(nil)

// cardRepoCacheDecorator adds a read-through redis cache in front of the
// card repo. Only the non-transactional FindByID path is cached: reads made
// inside a redemption transaction must always see the store, never a stale
// copy, so a Tx handle bypasses the cache entirely.
type cardRepoCacheDecorator struct {
	inner repository.ActivationCardRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCardRepoCacheDecorator(inner repository.ActivationCardRepository, cache red.RedisClient, ttl time.Duration) repository.ActivationCardRepository {
	return &cardRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func cardCacheKey(id string) string { return "card:" + id }

func (d *cardRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ActivationCard, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}

	// Any cache failure, redis.Nil or a real outage, degrades to the store.
	val, err := d.cache.Get(ctx, cardCacheKey(id))
	if err == nil {
		var card model.ActivationCard
		if json.Unmarshal([]byte(val), &card) == nil {
			metrics.IncCacheRequest("card", "hit")
			return &card, nil
		}
	}

	metrics.IncCacheRequest("card", "miss")
	card, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(card); err == nil {
		_ = d.cache.Set(ctx, cardCacheKey(id), bytes, d.ttl)
	}
	return card, nil
}

// Writes invalidate before delegating so a concurrent reader cannot refill
// the key with the state being replaced.
func (d *cardRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, card *model.ActivationCard) error {
	_ = d.cache.Del(ctx, cardCacheKey(card.ID))
	return d.inner.Save(ctx, tx, card)
}

func (d *cardRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	_ = d.cache.Del(ctx, cardCacheKey(id))
	return d.inner.Delete(ctx, tx, id)
}

// The remaining reads are either collection-shaped or must be
// transactionally fresh; they pass straight through.

func (d *cardRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) ([]*model.ActivationCard, error) {
	return d.inner.FindByCode(ctx, tx, code)
}

func (d *cardRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, filter repository.CardFilter) ([]*model.ActivationCard, error) {
	return d.inner.List(ctx, tx, filter)
}

func (d *cardRepoCacheDecorator) FindOverdue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ActivationCard, error) {
	return d.inner.FindOverdue(ctx, tx, now, limit)
}

func (d *cardRepoCacheDecorator) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.CardStatus]int, error) {
	return d.inner.CountByStatus(ctx, tx)
}

func (d *cardRepoCacheDecorator) AcquireLock(ctx context.Context, tx repository.Tx, key string) error {
	return d.inner.AcquireLock(ctx, tx, key)
}
