package repository

import (
	"context"
	"time"

	"activation-card-service/internal/domain/model"
)

// CardFilter narrows List results. Zero values mean "no constraint";
// Limit <= 0 falls back to the implementation default.
type CardFilter struct {
	Status   model.CardStatus
	CardType model.CardType
	UserID   string
	Offset   int
	Limit    int
}

// ActivationCardRepository is the port for the cards collection. The
// lifecycle engine never touches it; use cases read a snapshot, let the
// engine decide, and persist the proposed state through this port inside
// one guarded cycle.
type ActivationCardRepository interface {
	// Save creates or fully updates a card.
	Save(ctx context.Context, tx Tx, card *model.ActivationCard) error
	// FindByID returns domain.ErrCardNotFound when absent.
	FindByID(ctx context.Context, tx Tx, id string) (*model.ActivationCard, error)
	// FindByCode returns every card carrying the code. The code column is
	// unique, so more than one row is a data-integrity fault the caller
	// must surface rather than guess around.
	FindByCode(ctx context.Context, tx Tx, code string) ([]*model.ActivationCard, error)
	List(ctx context.Context, tx Tx, filter CardFilter) ([]*model.ActivationCard, error)
	Delete(ctx context.Context, tx Tx, id string) error
	// FindOverdue returns cards whose deadline passed but whose status has
	// not caught up yet. Feeds the expiry sweep.
	FindOverdue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.ActivationCard, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.CardStatus]int, error)
	// AcquireLock takes a per-key advisory lock scoped to the surrounding
	// transaction. Every read-decide-write cycle for a single card must run
	// under it so two concurrent redemptions cannot both observe an
	// unredeemed card. Only valid with a transactional tx.
	AcquireLock(ctx context.Context, tx Tx, key string) error
}
