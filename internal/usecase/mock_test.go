//go:build !integration

package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"activation-card-service/internal/domain"
	"activation-card-service/internal/domain/model"
	"activation-card-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// mockTx is the opaque transaction handle the mock tx manager hands out.
type mockTx struct{}

// MockTxManager runs the callback inline with a fake tx handle.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, opts, fn)
	}
	return fn(ctx, mockTx{})
}

// MockCardRepo keeps cards in a map and lets individual methods be overridden
// per test via the Func fields.
type MockCardRepo struct {
	mu    sync.Mutex
	cards map[string]*model.ActivationCard

	SaveFunc          func(ctx context.Context, tx repository.Tx, card *model.ActivationCard) error
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.ActivationCard, error)
	FindByCodeFunc    func(ctx context.Context, tx repository.Tx, code string) ([]*model.ActivationCard, error)
	ListFunc          func(ctx context.Context, tx repository.Tx, filter repository.CardFilter) ([]*model.ActivationCard, error)
	DeleteFunc        func(ctx context.Context, tx repository.Tx, id string) error
	FindOverdueFunc   func(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ActivationCard, error)
	CountByStatusFunc func(ctx context.Context, tx repository.Tx) (map[model.CardStatus]int, error)
	AcquireLockFunc   func(ctx context.Context, tx repository.Tx, key string) error

	SaveCalls int
	LockCalls []string
}

var _ repository.ActivationCardRepository = (*MockCardRepo)(nil)

func NewMockCardRepo() *MockCardRepo {
	return &MockCardRepo{cards: make(map[string]*model.ActivationCard)}
}

func (m *MockCardRepo) put(card *model.ActivationCard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *card
	m.cards[card.ID] = &cp
}

func (m *MockCardRepo) Save(ctx context.Context, tx repository.Tx, card *model.ActivationCard) error {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, card)
	}
	m.put(card)
	return nil
}

func (m *MockCardRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ActivationCard, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return nil, domain.ErrCardNotFound
	}
	cp := *card
	return &cp, nil
}

func (m *MockCardRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) ([]*model.ActivationCard, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, tx, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ActivationCard
	for _, card := range m.cards {
		if card.Code == code {
			cp := *card
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCardRepo) List(ctx context.Context, tx repository.Tx, filter repository.CardFilter) ([]*model.ActivationCard, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, tx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ActivationCard
	for _, card := range m.cards {
		if filter.Status != "" && card.Status != filter.Status {
			continue
		}
		if filter.CardType != "" && card.CardType != filter.CardType {
			continue
		}
		if filter.UserID != "" && !card.BoundTo(filter.UserID) {
			continue
		}
		cp := *card
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockCardRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return domain.ErrCardNotFound
	}
	delete(m.cards, id)
	return nil
}

func (m *MockCardRepo) FindOverdue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ActivationCard, error) {
	if m.FindOverdueFunc != nil {
		return m.FindOverdueFunc(ctx, tx, now, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ActivationCard
	for _, card := range m.cards {
		if card.PastExpiry(now) && card.Status != model.CardStatusExpired {
			cp := *card
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockCardRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.CardStatus]int, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.CardStatus]int)
	for _, card := range m.cards {
		out[card.Status]++
	}
	return out, nil
}

func (m *MockCardRepo) AcquireLock(ctx context.Context, tx repository.Tx, key string) error {
	m.mu.Lock()
	m.LockCalls = append(m.LockCalls, key)
	m.mu.Unlock()
	if m.AcquireLockFunc != nil {
		return m.AcquireLockFunc(ctx, tx, key)
	}
	return nil
}

// MockRateLimiter answers with a fixed verdict unless overridden.
type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Allowed   bool
	Calls     int
}

var _ RateLimiter = (*MockRateLimiter)(nil)

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.Calls++
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return m.Allowed, nil
}
