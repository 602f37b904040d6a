package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"activation-card-service/internal/domain"
	"activation-card-service/internal/domain/model"
	"activation-card-service/internal/domain/ports/repository"
	"activation-card-service/internal/usecase"
)

// cardResponse is the wire shape of a card. Pointers keep the optional
// timestamps out of the payload when unset.
type cardResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	CardType    string     `json:"card_type"`
	Status      string     `json:"status"`
	BoundUserID *string    `json:"user_id,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toCardResponse(c *model.ActivationCard) cardResponse {
	return cardResponse{
		ID:          c.ID,
		Code:        c.Code,
		CardType:    string(c.CardType),
		Status:      string(c.Status),
		BoundUserID: c.BoundUserID,
		AssignedAt:  c.AssignedAt,
		RedeemedAt:  c.RedeemedAt,
		ExpiresAt:   c.ExpiresAt,
		Note:        c.Note,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type decisionResponse struct {
	Success bool         `json:"success"`
	Outcome string       `json:"outcome"`
	Card    cardResponse `json:"card"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps engine/store error kinds to transport codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCardNotFound), errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "card not found"})
	case errors.Is(err, domain.ErrCardConflict):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "card is bound to another user"})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "transition not permitted from current state"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many attempts"})
	case errors.Is(err, domain.ErrStoreInconsistency):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "data integrity error"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// writeDecision translates an engine decision: idempotent successes are 200,
// an expired card is a client error, a foreign binding is forbidden.
func writeDecision(w http.ResponseWriter, dec model.Decision) {
	resp := decisionResponse{Outcome: string(dec.Outcome), Card: toCardResponse(dec.Card)}
	switch dec.Outcome {
	case model.OutcomeRedeemed, model.OutcomeAlreadyActive:
		resp.Success = true
		writeJSON(w, http.StatusOK, resp)
	case model.OutcomeExpired:
		writeJSON(w, http.StatusBadRequest, resp)
	case model.OutcomeConflict:
		writeJSON(w, http.StatusForbidden, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "unknown outcome"})
	}
}

type createCardRequest struct {
	CardType  string     `json:"card_type"`
	Count     int        `json:"count"`
	UserID    string     `json:"user_id"`
	Note      string     `json:"note"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cards, err := s.cardUC.Create(r.Context(), usecase.CreateCardParams{
		CardType:  model.CardType(req.CardType),
		Count:     req.Count,
		UserID:    req.UserID,
		Note:      req.Note,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardResponse(c))
	}
	writeJSON(w, http.StatusCreated, struct {
		Data []cardResponse `json:"data"`
	}{Data: out})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	cards, err := s.cardUC.List(r.Context(), repository.CardFilter{
		Status:   model.CardStatus(q.Get("status")),
		CardType: model.CardType(q.Get("card_type")),
		UserID:   q.Get("user_id"),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardResponse(c))
	}
	writeJSON(w, http.StatusOK, struct {
		Data []cardResponse `json:"data"`
	}{Data: out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if days, err := strconv.Atoi(r.URL.Query().Get("window_days")); err == nil && days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}

	stats, err := s.statsUC.Overview(r.Context(), window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data model.CardStats `json:"data"`
	}{Data: stats})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	card, err := s.cardUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data cardResponse `json:"data"`
	}{Data: toCardResponse(card)})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing code parameter"})
		return
	}
	card, err := s.cardUC.Verify(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data cardResponse `json:"data"`
	}{Data: toCardResponse(card)})
}

type updateNoteRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	card, err := s.cardUC.UpdateNote(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data cardResponse `json:"data"`
	}{Data: toCardResponse(card)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.cardUC.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	dec, err := s.cardUC.Redeem(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeDecision(w, dec)
}

type redeemByCodeRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

func (s *Server) handleRedeemByCode(w http.ResponseWriter, r *http.Request) {
	var req redeemByCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	dec, err := s.cardUC.RedeemByCode(r.Context(), req.Code, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeDecision(w, dec)
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	card, err := s.cardUC.Assign(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data cardResponse `json:"data"`
	}{Data: toCardResponse(card)})
}

func (s *Server) handleForceExpire(w http.ResponseWriter, r *http.Request) {
	card, err := s.cardUC.ForceExpire(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data cardResponse `json:"data"`
	}{Data: toCardResponse(card)})
}
