package model

import (
	"time"

	"activation-card-service/internal/domain"
)

// Outcome is the caller-facing verdict of a lifecycle operation.
type Outcome string

const (
	OutcomeRedeemed      Outcome = "redeemed"
	OutcomeAlreadyActive Outcome = "already_active"
	OutcomeExpired       Outcome = "expired"
	OutcomeConflict      Outcome = "conflict"
)

// Decision carries an outcome plus the proposed next card state. When
// Mutated is false the Card is the unchanged input snapshot and nothing
// needs to be written back. When Mutated is true the caller must persist
// Card in the same read-decide-write cycle. This includes the forced
// transition to "expired" observed on a redemption attempt.
type Decision struct {
	Outcome Outcome
	Card    *ActivationCard
	Mutated bool
}

// ComputeExpiry maps a card type to its deadline, anchored at now.
// Offsets are calendar-aware (AddDate), not fixed multiples of 24h; an
// unrecognized type falls back to one day.
func ComputeExpiry(cardType CardType, now time.Time) time.Time {
	switch cardType {
	case CardTypeTest:
		return now.Add(2 * time.Hour)
	case CardTypeDay:
		return now.AddDate(0, 0, 1)
	case CardTypeWeek:
		return now.AddDate(0, 0, 7)
	case CardTypeMonth:
		return now.AddDate(0, 1, 0)
	case CardTypeYear:
		return now.AddDate(1, 0, 0)
	case CardTypePermanent:
		// Sentinel for "effectively never".
		return now.AddDate(100, 0, 0)
	default:
		return now.AddDate(0, 0, 1)
	}
}

// Redeem decides what a redemption attempt by userID at instant now does to
// the card. It is pure: the input snapshot is never modified, and the branch
// order matters. Expiry beats every other state, a user re-presenting their
// own used card succeeds idempotently, and a binding is never silently
// reassigned.
func Redeem(card *ActivationCard, userID string, now time.Time) (Decision, error) {
	if card == nil || userID == "" {
		return Decision{}, domain.ErrInvalidArgument
	}

	// 1. Overdue cards expire on contact, whatever their recorded status.
	if card.PastExpiry(now) && card.Status != CardStatusExpired {
		next := *card
		next.Status = CardStatusExpired
		next.UpdatedAt = now
		return Decision{Outcome: OutcomeExpired, Card: &next, Mutated: true}, nil
	}

	// 2. Expired is terminal.
	if card.Status == CardStatusExpired {
		return Decision{Outcome: OutcomeExpired, Card: card}, nil
	}

	// 3. Used: same user re-verifying is a success, anyone else is rejected.
	// A used card with no bound user is inconsistent and also rejected.
	if card.Status == CardStatusUsed {
		if card.BoundTo(userID) {
			return Decision{Outcome: OutcomeAlreadyActive, Card: card}, nil
		}
		return Decision{Outcome: OutcomeConflict, Card: card}, nil
	}

	// 4. Unbound, or bound to this very user: redeem.
	if card.BoundUserID == nil || card.BoundTo(userID) {
		next := *card
		next.Status = CardStatusUsed
		at := now
		next.RedeemedAt = &at
		uid := userID
		next.BoundUserID = &uid
		if next.AssignedAt == nil {
			next.AssignedAt = &at
		}
		if next.ExpiresAt == nil {
			// Expiry clock starts at the redemption instant, not creation.
			exp := ComputeExpiry(card.CardType, now)
			next.ExpiresAt = &exp
		}
		next.UpdatedAt = now
		return Decision{Outcome: OutcomeRedeemed, Card: &next, Mutated: true}, nil
	}

	// 5. Bound to somebody else.
	return Decision{Outcome: OutcomeConflict, Card: card}, nil
}

// Assign binds the card to userID administratively. It refuses cards that
// are already used; redeemed bindings are immutable outside ForceExpire.
func Assign(card *ActivationCard, userID string, now time.Time) (*ActivationCard, error) {
	if card == nil || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if card.Status == CardStatusUsed {
		return nil, domain.ErrInvalidTransition
	}
	next := *card
	next.Status = CardStatusAssigned
	uid := userID
	next.BoundUserID = &uid
	at := now
	next.AssignedAt = &at
	next.UpdatedAt = now
	return &next, nil
}

// ForceExpire is the privileged override: it moves the card to "expired"
// from any state, unlike lazy expiry which only reacts to a passed deadline.
func ForceExpire(card *ActivationCard, now time.Time) (*ActivationCard, error) {
	if card == nil {
		return nil, domain.ErrInvalidArgument
	}
	next := *card
	next.Status = CardStatusExpired
	if next.ExpiresAt == nil {
		at := now
		next.ExpiresAt = &at
	}
	next.UpdatedAt = now
	return &next, nil
}

// ObserveExpiry applies the lazy-expiry rule outside a redemption attempt:
// if the deadline has passed and the status does not say so yet, it returns
// the corrected state and true. Used by read paths and the sweep worker; the
// caller persists the correction in the same cycle as the read.
func ObserveExpiry(card *ActivationCard, now time.Time) (*ActivationCard, bool) {
	if card == nil {
		return nil, false
	}
	if card.PastExpiry(now) && card.Status != CardStatusExpired {
		next := *card
		next.Status = CardStatusExpired
		next.UpdatedAt = now
		return &next, true
	}
	return card, false
}
