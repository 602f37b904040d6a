//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"activation-card-service/internal/domain"
	"activation-card-service/internal/domain/model"
	"activation-card-service/internal/domain/ports/repository"
	"activation-card-service/internal/usecase"

	"github.com/rs/zerolog"
)

const testAPIKey = "test-api-key"

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockCardUC satisfies usecase.CardUseCase via overridable fields.
type mockCardUC struct {
	CreateFunc       func(ctx context.Context, params usecase.CreateCardParams) ([]*model.ActivationCard, error)
	GetFunc          func(ctx context.Context, id string) (*model.ActivationCard, error)
	ListFunc         func(ctx context.Context, filter repository.CardFilter) ([]*model.ActivationCard, error)
	UpdateNoteFunc   func(ctx context.Context, id, note string) (*model.ActivationCard, error)
	DeleteFunc       func(ctx context.Context, id string) error
	RedeemFunc       func(ctx context.Context, id, userID string) (model.Decision, error)
	RedeemByCodeFunc func(ctx context.Context, code, userID string) (model.Decision, error)
	VerifyFunc       func(ctx context.Context, code string) (*model.ActivationCard, error)
	AssignFunc       func(ctx context.Context, id, userID string) (*model.ActivationCard, error)
	ForceExpireFunc  func(ctx context.Context, id string) (*model.ActivationCard, error)
}

var _ usecase.CardUseCase = (*mockCardUC)(nil)

func (m *mockCardUC) Create(ctx context.Context, params usecase.CreateCardParams) ([]*model.ActivationCard, error) {
	return m.CreateFunc(ctx, params)
}
func (m *mockCardUC) Get(ctx context.Context, id string) (*model.ActivationCard, error) {
	return m.GetFunc(ctx, id)
}
func (m *mockCardUC) List(ctx context.Context, filter repository.CardFilter) ([]*model.ActivationCard, error) {
	return m.ListFunc(ctx, filter)
}
func (m *mockCardUC) UpdateNote(ctx context.Context, id, note string) (*model.ActivationCard, error) {
	return m.UpdateNoteFunc(ctx, id, note)
}
func (m *mockCardUC) Delete(ctx context.Context, id string) error { return m.DeleteFunc(ctx, id) }
func (m *mockCardUC) Redeem(ctx context.Context, id, userID string) (model.Decision, error) {
	return m.RedeemFunc(ctx, id, userID)
}
func (m *mockCardUC) RedeemByCode(ctx context.Context, code, userID string) (model.Decision, error) {
	return m.RedeemByCodeFunc(ctx, code, userID)
}
func (m *mockCardUC) Verify(ctx context.Context, code string) (*model.ActivationCard, error) {
	return m.VerifyFunc(ctx, code)
}
func (m *mockCardUC) Assign(ctx context.Context, id, userID string) (*model.ActivationCard, error) {
	return m.AssignFunc(ctx, id, userID)
}
func (m *mockCardUC) ForceExpire(ctx context.Context, id string) (*model.ActivationCard, error) {
	return m.ForceExpireFunc(ctx, id)
}
func (m *mockCardUC) SweepExpired(ctx context.Context) (int, error) { return 0, nil }

type mockStatsUC struct {
	OverviewFunc func(ctx context.Context, window time.Duration) (model.CardStats, error)
}

var _ usecase.StatsUseCase = (*mockStatsUC)(nil)

func (m *mockStatsUC) Overview(ctx context.Context, window time.Duration) (model.CardStats, error) {
	return m.OverviewFunc(ctx, window)
}

func sampleCard() *model.ActivationCard {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return &model.ActivationCard{
		ID:        "card-1",
		Code:      "AAAA-BBBB-CCCC",
		CardType:  model.CardTypeDay,
		Status:    model.CardStatusUnassigned,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestServer(cardUC usecase.CardUseCase, statsUC usecase.StatsUseCase) http.Handler {
	return NewServer(cardUC, statsUC, testAPIKey, testLogger()).Router()
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	uc := &mockCardUC{ListFunc: func(ctx context.Context, filter repository.CardFilter) ([]*model.ActivationCard, error) {
		return nil, nil
	}}
	h := newTestServer(uc, &mockStatsUC{})

	t.Run("missing header", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/cards/", "", false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cards/", nil)
		req.Header.Set("Authorization", "not-a-bearer-token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cards/", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("valid key", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/cards/", "", true)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("unconfigured key rejects everything", func(t *testing.T) {
		bare := NewServer(uc, &mockStatsUC{}, "", testLogger()).Router()
		rec := doRequest(t, bare, http.MethodGet, "/api/v1/cards/", "", true)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("health stays open", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/health", "", false)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestHandleCreate(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		uc := &mockCardUC{CreateFunc: func(ctx context.Context, params usecase.CreateCardParams) ([]*model.ActivationCard, error) {
			if params.CardType != model.CardTypeWeek || params.Count != 2 {
				t.Errorf("unexpected params: %+v", params)
			}
			return []*model.ActivationCard{sampleCard(), sampleCard()}, nil
		}}
		h := newTestServer(uc, &mockStatsUC{})

		rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/", `{"card_type":"week","count":2}`, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Data []cardResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Data) != 2 {
			t.Errorf("expected 2 cards, got %d", len(resp.Data))
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		h := newTestServer(&mockCardUC{}, &mockStatsUC{})
		rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/", `{not json`, true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		uc := &mockCardUC{CreateFunc: func(ctx context.Context, params usecase.CreateCardParams) ([]*model.ActivationCard, error) {
			return nil, domain.ErrInvalidArgument
		}}
		h := newTestServer(uc, &mockStatsUC{})
		rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/", `{"card_type":"decade"}`, true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestRedeemOutcomeStatusMapping(t *testing.T) {
	cases := []struct {
		outcome model.Outcome
		want    int
		success bool
	}{
		{model.OutcomeRedeemed, http.StatusOK, true},
		{model.OutcomeAlreadyActive, http.StatusOK, true},
		{model.OutcomeExpired, http.StatusBadRequest, false},
		{model.OutcomeConflict, http.StatusForbidden, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			uc := &mockCardUC{RedeemFunc: func(ctx context.Context, id, userID string) (model.Decision, error) {
				return model.Decision{Outcome: tc.outcome, Card: sampleCard()}, nil
			}}
			h := newTestServer(uc, &mockStatsUC{})

			rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/card-1/redeem", `{"user_id":"u1"}`, true)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			var resp decisionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success != tc.success {
				t.Errorf("expected success=%v", tc.success)
			}
			if resp.Outcome != string(tc.outcome) {
				t.Errorf("expected outcome '%s', got '%s'", tc.outcome, resp.Outcome)
			}
		})
	}
}

func TestDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrCardNotFound, http.StatusNotFound},
		{"conflict", domain.ErrCardConflict, http.StatusForbidden},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusBadRequest},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"store inconsistency", domain.ErrStoreInconsistency, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &mockCardUC{RedeemByCodeFunc: func(ctx context.Context, code, userID string) (model.Decision, error) {
				return model.Decision{}, tc.err
			}}
			h := newTestServer(uc, &mockStatsUC{})

			rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/redeem", `{"code":"AAAA-BBBB-CCCC","user_id":"u1"}`, true)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleGet(t *testing.T) {
	uc := &mockCardUC{GetFunc: func(ctx context.Context, id string) (*model.ActivationCard, error) {
		if id != "card-1" {
			return nil, domain.ErrCardNotFound
		}
		return sampleCard(), nil
	}}
	h := newTestServer(uc, &mockStatsUC{})

	t.Run("found", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/cards/card-1/", "", true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Data cardResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data.ID != "card-1" || resp.Data.Status != "unassigned" {
			t.Errorf("unexpected payload: %+v", resp.Data)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/cards/nope/", "", true)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandleVerify(t *testing.T) {
	uc := &mockCardUC{VerifyFunc: func(ctx context.Context, code string) (*model.ActivationCard, error) {
		return sampleCard(), nil
	}}
	h := newTestServer(uc, &mockStatsUC{})

	t.Run("ok", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/cards/verify?code=AAAA-BBBB-CCCC", "", true)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/cards/verify", "", true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleStats(t *testing.T) {
	uc := &mockCardUC{}
	stats := &mockStatsUC{OverviewFunc: func(ctx context.Context, window time.Duration) (model.CardStats, error) {
		if window != 14*24*time.Hour {
			t.Errorf("expected a 14-day window, got %v", window)
		}
		return model.CardStats{Total: 7, ByStatus: map[model.CardStatus]int{model.CardStatusUsed: 7}}, nil
	}}
	h := newTestServer(uc, stats)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/cards/stats?window_days=14", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data model.CardStats `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 7 {
		t.Errorf("expected total 7, got %d", resp.Data.Total)
	}
}

func TestHandleAssignAndExpire(t *testing.T) {
	t.Run("assign", func(t *testing.T) {
		uc := &mockCardUC{AssignFunc: func(ctx context.Context, id, userID string) (*model.ActivationCard, error) {
			card := sampleCard()
			card.Status = model.CardStatusAssigned
			card.BoundUserID = &userID
			return card, nil
		}}
		h := newTestServer(uc, &mockStatsUC{})
		rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/card-1/assign", `{"user_id":"u1"}`, true)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("assign used card", func(t *testing.T) {
		uc := &mockCardUC{AssignFunc: func(ctx context.Context, id, userID string) (*model.ActivationCard, error) {
			return nil, domain.ErrInvalidTransition
		}}
		h := newTestServer(uc, &mockStatsUC{})
		rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/card-1/assign", `{"user_id":"u1"}`, true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("force expire", func(t *testing.T) {
		uc := &mockCardUC{ForceExpireFunc: func(ctx context.Context, id string) (*model.ActivationCard, error) {
			card := sampleCard()
			card.Status = model.CardStatusExpired
			return card, nil
		}}
		h := newTestServer(uc, &mockStatsUC{})
		rec := doRequest(t, h, http.MethodPost, "/api/v1/cards/card-1/expire", "", true)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestHandleDelete(t *testing.T) {
	uc := &mockCardUC{DeleteFunc: func(ctx context.Context, id string) error {
		if id != "card-1" {
			return domain.ErrCardNotFound
		}
		return nil
	}}
	h := newTestServer(uc, &mockStatsUC{})

	rec := doRequest(t, h, http.MethodDelete, "/api/v1/cards/card-1/", "", true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/cards/nope/", "", true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
