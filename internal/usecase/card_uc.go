package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"activation-card-service/internal/domain"
	"activation-card-service/internal/domain/model"
	"activation-card-service/internal/domain/ports/repository"
	"activation-card-service/internal/infra/logging"
	"activation-card-service/internal/infra/metrics"
)

// RateLimiter throttles redemption attempts per caller. Implemented by the
// redis rate limiter in production; a nil limiter disables throttling.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Compile-time check
var _ CardUseCase = (*cardUC)(nil)

// CardUseCase drives the activation-card lifecycle. The decision logic
// itself lives in the model package; this layer owns the read-decide-write
// cycle: one transaction plus one per-card advisory lock per operation, so a
// card can never be double-bound by concurrent redemptions.
type CardUseCase interface {
	Create(ctx context.Context, params CreateCardParams) ([]*model.ActivationCard, error)
	Get(ctx context.Context, id string) (*model.ActivationCard, error)
	List(ctx context.Context, filter repository.CardFilter) ([]*model.ActivationCard, error)
	UpdateNote(ctx context.Context, id, note string) (*model.ActivationCard, error)
	Delete(ctx context.Context, id string) error

	Redeem(ctx context.Context, id, userID string) (model.Decision, error)
	RedeemByCode(ctx context.Context, code, userID string) (model.Decision, error)
	Verify(ctx context.Context, code string) (*model.ActivationCard, error)

	Assign(ctx context.Context, id, userID string) (*model.ActivationCard, error)
	ForceExpire(ctx context.Context, id string) (*model.ActivationCard, error)

	SweepExpired(ctx context.Context) (int, error)
}

// CreateCardParams describes a mint request. Count caps at maxBatchSize;
// zero means one. A non-empty UserID pre-binds every minted card.
type CreateCardParams struct {
	CardType  model.CardType
	Count     int
	UserID    string
	Note      string
	ExpiresAt *time.Time
}

const (
	maxBatchSize     = 100
	sweepBatchSize   = 500
	codeMintAttempts = 3

	redeemRateLimit  = 10
	redeemRateWindow = time.Minute
)

type cardUC struct {
	cards   repository.ActivationCardRepository
	tx      repository.TransactionManager
	limiter RateLimiter
	log     *zerolog.Logger
	now     func() time.Time
}

func NewCardUseCase(cards repository.ActivationCardRepository, tx repository.TransactionManager, limiter RateLimiter, logger *zerolog.Logger) *cardUC {
	ucLog := logger.With().Str("component", "CardUseCase").Logger()
	return &cardUC{
		cards:   cards,
		tx:      tx,
		limiter: limiter,
		log:     &ucLog,
		now:     time.Now,
	}
}

func (uc *cardUC) Create(ctx context.Context, params CreateCardParams) ([]*model.ActivationCard, error) {
	if !params.CardType.Known() {
		return nil, domain.ErrInvalidArgument
	}
	count := params.Count
	if count <= 0 {
		count = 1
	}
	if count > maxBatchSize {
		return nil, domain.ErrInvalidArgument
	}

	now := uc.now()
	out := make([]*model.ActivationCard, 0, count)
	err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for i := 0; i < count; i++ {
			card, err := uc.mintOne(ctx, tx, params, now)
			if err != nil {
				return err
			}
			out = append(out, card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Int("count", len(out)).Str("card_type", string(params.CardType)).Msg("cards minted")
	metrics.IncCardsCreated(string(params.CardType), len(out))
	return out, nil
}

// mintOne retries on a code collision; the charset makes one vanishingly
// rare but the unique index makes it observable.
func (uc *cardUC) mintOne(ctx context.Context, tx repository.Tx, params CreateCardParams, now time.Time) (*model.ActivationCard, error) {
	for attempt := 0; attempt < codeMintAttempts; attempt++ {
		code, err := generateCardCode()
		if err != nil {
			return nil, err
		}
		card, err := model.NewActivationCard(uuid.NewString(), code, params.CardType, params.UserID, params.ExpiresAt, params.Note, now)
		if err != nil {
			return nil, err
		}
		err = uc.cards.Save(ctx, tx, card)
		if err == nil {
			return card, nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return nil, err
		}
	}
	return nil, domain.ErrDuplicateCode
}

func (uc *cardUC) Get(ctx context.Context, id string) (*model.ActivationCard, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	// Fast path: a plain (possibly cached) read. Only an overdue card needs
	// the guarded transaction, to persist the expiry with the read.
	snapshot, err := uc.cards.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if _, overdue := model.ObserveExpiry(snapshot, uc.now()); !overdue {
		return snapshot, nil
	}

	var card *model.ActivationCard
	err = uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.cards.AcquireLock(ctx, tx, id); err != nil {
			return err
		}
		found, err := uc.cards.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		// Reading an overdue card records the expiry in the same tx.
		corrected, mutated := model.ObserveExpiry(found, uc.now())
		if mutated {
			if err := uc.cards.Save(ctx, tx, corrected); err != nil {
				return err
			}
			metrics.IncCardsExpired(1)
		}
		card = corrected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (uc *cardUC) List(ctx context.Context, filter repository.CardFilter) ([]*model.ActivationCard, error) {
	return uc.cards.List(ctx, repository.NoTX, filter)
}

func (uc *cardUC) UpdateNote(ctx context.Context, id, note string) (*model.ActivationCard, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	var card *model.ActivationCard
	err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.cards.AcquireLock(ctx, tx, id); err != nil {
			return err
		}
		found, err := uc.cards.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		next := *found
		next.Note = note
		next.UpdatedAt = uc.now()
		if err := uc.cards.Save(ctx, tx, &next); err != nil {
			return err
		}
		card = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (uc *cardUC) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidArgument
	}
	return uc.cards.Delete(ctx, repository.NoTX, id)
}

// Redeem runs the engine against the card with the given id on behalf of
// userID. Engine outcomes (expired, conflict, already active) come back in
// the Decision, not as errors.
func (uc *cardUC) Redeem(ctx context.Context, id, userID string) (model.Decision, error) {
	if id == "" || userID == "" {
		return model.Decision{}, domain.ErrInvalidArgument
	}
	var dec model.Decision
	err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.cards.AcquireLock(ctx, tx, id); err != nil {
			return err
		}
		card, err := uc.cards.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		return uc.decideAndPersist(ctx, tx, card, userID, &dec)
	})
	if err != nil {
		return model.Decision{}, err
	}
	return dec, nil
}

// RedeemByCode resolves the code first, then re-reads the card under its
// per-card lock so the by-id and by-code paths serialize on the same key.
func (uc *cardUC) RedeemByCode(ctx context.Context, code, userID string) (model.Decision, error) {
	if code == "" || userID == "" {
		return model.Decision{}, domain.ErrInvalidArgument
	}
	if uc.limiter != nil {
		ok, err := uc.limiter.Allow(ctx, "redeem:"+userID, redeemRateLimit, redeemRateWindow)
		if err != nil {
			uc.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			return model.Decision{}, domain.ErrRateLimited
		}
	}

	var dec model.Decision
	err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		matches, err := uc.cards.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		switch len(matches) {
		case 0:
			return domain.ErrCardNotFound
		case 1:
		default:
			uc.log.Error().Str("code", code).Int("matches", len(matches)).Msg("duplicate activation code in store")
			return domain.ErrStoreInconsistency
		}
		if err := uc.cards.AcquireLock(ctx, tx, matches[0].ID); err != nil {
			return err
		}
		card, err := uc.cards.FindByID(ctx, tx, matches[0].ID)
		if err != nil {
			return err
		}
		return uc.decideAndPersist(ctx, tx, card, userID, &dec)
	})
	if err != nil {
		return model.Decision{}, err
	}
	return dec, nil
}

func (uc *cardUC) decideAndPersist(ctx context.Context, tx repository.Tx, card *model.ActivationCard, userID string, out *model.Decision) error {
	dec, err := model.Redeem(card, userID, uc.now())
	if err != nil {
		return err
	}
	if dec.Mutated {
		if err := uc.cards.Save(ctx, tx, dec.Card); err != nil {
			return err
		}
	}
	metrics.IncCardRedemption(string(dec.Outcome))
	ctx = logging.WithCardID(logging.WithUserID(ctx, userID), card.ID)
	logging.With(ctx, uc.log).Info().
		Str("outcome", string(dec.Outcome)).
		Msg("redemption decided")
	*out = dec
	return nil
}

// Verify reports the card state for a code without redeeming. An overdue
// card is corrected to expired as part of the read.
func (uc *cardUC) Verify(ctx context.Context, code string) (*model.ActivationCard, error) {
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}
	var card *model.ActivationCard
	err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		matches, err := uc.cards.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		switch len(matches) {
		case 0:
			return domain.ErrCardNotFound
		case 1:
		default:
			return domain.ErrStoreInconsistency
		}
		if err := uc.cards.AcquireLock(ctx, tx, matches[0].ID); err != nil {
			return err
		}
		found, err := uc.cards.FindByID(ctx, tx, matches[0].ID)
		if err != nil {
			return err
		}
		corrected, mutated := model.ObserveExpiry(found, uc.now())
		if mutated {
			if err := uc.cards.Save(ctx, tx, corrected); err != nil {
				return err
			}
			metrics.IncCardsExpired(1)
		}
		card = corrected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (uc *cardUC) Assign(ctx context.Context, id, userID string) (*model.ActivationCard, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var card *model.ActivationCard
	err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.cards.AcquireLock(ctx, tx, id); err != nil {
			return err
		}
		found, err := uc.cards.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := model.Assign(found, userID, uc.now())
		if err != nil {
			return err
		}
		if err := uc.cards.Save(ctx, tx, next); err != nil {
			return err
		}
		card = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("card_id", id).Str("user_id", userID).Msg("card assigned")
	return card, nil
}

func (uc *cardUC) ForceExpire(ctx context.Context, id string) (*model.ActivationCard, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	var card *model.ActivationCard
	err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.cards.AcquireLock(ctx, tx, id); err != nil {
			return err
		}
		found, err := uc.cards.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := model.ForceExpire(found, uc.now())
		if err != nil {
			return err
		}
		if err := uc.cards.Save(ctx, tx, next); err != nil {
			return err
		}
		card = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("card_id", id).Msg("card force-expired")
	metrics.IncCardsExpired(1)
	return card, nil
}

// SweepExpired records the expiry of every overdue card, one guarded write
// per card. Complements lazy expiry so dashboards do not depend on a card
// being touched.
func (uc *cardUC) SweepExpired(ctx context.Context) (int, error) {
	now := uc.now()
	overdue, err := uc.cards.FindOverdue(ctx, repository.NoTX, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, stale := range overdue {
		id := stale.ID
		err := uc.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := uc.cards.AcquireLock(ctx, tx, id); err != nil {
				return err
			}
			card, err := uc.cards.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			corrected, mutated := model.ObserveExpiry(card, now)
			if !mutated {
				return nil
			}
			if err := uc.cards.Save(ctx, tx, corrected); err != nil {
				return err
			}
			swept++
			return nil
		})
		if err != nil {
			uc.log.Error().Err(err).Str("card_id", id).Msg("sweep failed for card")
		}
	}
	if swept > 0 {
		metrics.IncCardsExpired(swept)
	}
	// Refresh the status gauge while we are here; the sweep is the one
	// periodic task guaranteed to run.
	if counts, err := uc.cards.CountByStatus(ctx, repository.NoTX); err == nil {
		metrics.SetCardsTotal(counts)
	}
	return swept, nil
}
