package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"activation-card-service/internal/domain"
	"activation-card-service/internal/domain/model"
	"activation-card-service/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.ActivationCardRepository = (*cardRepo)(nil)

type cardRepo struct {
	pool *pgxpool.Pool
}

func NewCardRepo(pool *pgxpool.Pool) *cardRepo {
	return &cardRepo{pool: pool}
}

const cardColumns = `id, code, card_type, status, bound_user_id, assigned_at, redeemed_at, expires_at, note, created_at, updated_at`

// Save creates or fully updates a card. ON CONFLICT covers both minting a
// new card and writing back an engine decision.
func (r *cardRepo) Save(ctx context.Context, tx repository.Tx, card *model.ActivationCard) error {
	const q = `
INSERT INTO activation_cards (id, code, card_type, status, bound_user_id, assigned_at, redeemed_at, expires_at, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  bound_user_id = EXCLUDED.bound_user_id,
  assigned_at = EXCLUDED.assigned_at,
  redeemed_at = EXCLUDED.redeemed_at,
  expires_at = EXCLUDED.expires_at,
  note = EXCLUDED.note,
  updated_at = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		card.ID, card.Code, card.CardType, card.Status, card.BoundUserID,
		card.AssignedAt, card.RedeemedAt, card.ExpiresAt, card.Note,
		card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Unique violation on the code column.
			return domain.ErrDuplicateCode
		}
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *cardRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ActivationCard, error) {
	q := `SELECT ` + cardColumns + ` FROM activation_cards WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return card, nil
}

// FindByCode returns every row with the code. The column carries a unique
// index, so more than one result means the store broke its own invariant;
// the use case decides what to do with that.
func (r *cardRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) ([]*model.ActivationCard, error) {
	q := `SELECT ` + cardColumns + ` FROM activation_cards WHERE code = $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

func (r *cardRepo) List(ctx context.Context, tx repository.Tx, filter repository.CardFilter) ([]*model.ActivationCard, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.CardType != "" {
		add("card_type = $%d", filter.CardType)
	}
	if filter.UserID != "" {
		add("bound_user_id = $%d", filter.UserID)
	}

	q := `SELECT ` + cardColumns + ` FROM activation_cards`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(` LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	q += `;`

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

func (r *cardRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM activation_cards WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

func (r *cardRepo) FindOverdue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ActivationCard, error) {
	const q = `
SELECT ` + cardColumns + `
  FROM activation_cards
 WHERE expires_at IS NOT NULL
   AND expires_at < $1
   AND status <> 'expired'
 ORDER BY expires_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

func (r *cardRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.CardStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM activation_cards GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.CardStatus]int)
	for rows.Next() {
		var status model.CardStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// AcquireLock takes a transaction-scoped advisory lock keyed by the card.
// It refuses to run outside a transaction: a session-scoped lock would
// outlive the write it is supposed to guard.
func (r *cardRepo) AcquireLock(ctx context.Context, tx repository.Tx, key string) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(key))
	return err
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

func scanCard(row pgx.Row) (*model.ActivationCard, error) {
	var c model.ActivationCard
	err := row.Scan(
		&c.ID, &c.Code, &c.CardType, &c.Status, &c.BoundUserID,
		&c.AssignedAt, &c.RedeemedAt, &c.ExpiresAt, &c.Note,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCards(rows pgx.Rows) ([]*model.ActivationCard, error) {
	var out []*model.ActivationCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
