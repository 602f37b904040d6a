package model

import (
	"time"

	"activation-card-service/internal/domain"
)

type CardStatus string

const (
	CardStatusUnassigned CardStatus = "unassigned"
	CardStatusAssigned   CardStatus = "assigned"
	CardStatusUsed       CardStatus = "used"
	CardStatusExpired    CardStatus = "expired"
)

type CardType string

const (
	CardTypeTest      CardType = "test"
	CardTypeDay       CardType = "day"
	CardTypeWeek      CardType = "week"
	CardTypeMonth     CardType = "month"
	CardTypeYear      CardType = "year"
	CardTypePermanent CardType = "permanent"
)

// KnownCardTypes lists every recognized type, in display order.
var KnownCardTypes = []CardType{
	CardTypeTest, CardTypeDay, CardTypeWeek, CardTypeMonth, CardTypeYear, CardTypePermanent,
}

func (t CardType) Known() bool {
	switch t {
	case CardTypeTest, CardTypeDay, CardTypeWeek, CardTypeMonth, CardTypeYear, CardTypePermanent:
		return true
	}
	return false
}

// ActivationCard is a time-boxed access token. Its type determines how long
// access lasts once the card is redeemed; the expiry clock starts at
// redemption unless ExpiresAt was fixed at creation.
type ActivationCard struct {
	ID          string
	Code        string
	CardType    CardType
	Status      CardStatus
	BoundUserID *string    // Pointer to allow for NULL
	AssignedAt  *time.Time // when the card was bound to a user
	RedeemedAt  *time.Time // Pointer to allow for NULL
	ExpiresAt   *time.Time // Pointer to allow for NULL
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewActivationCard validates and constructs a card. An empty userID leaves
// the card unassigned; a non-empty one pre-binds it (status "assigned").
func NewActivationCard(id, code string, cardType CardType, userID string, expiresAt *time.Time, note string, now time.Time) (*ActivationCard, error) {
	if id == "" || code == "" || !cardType.Known() {
		return nil, domain.ErrInvalidArgument
	}
	c := &ActivationCard{
		ID:        id,
		Code:      code,
		CardType:  cardType,
		Status:    CardStatusUnassigned,
		ExpiresAt: expiresAt,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if userID != "" {
		c.Status = CardStatusAssigned
		c.BoundUserID = &userID
		at := now
		c.AssignedAt = &at
	}
	return c, nil
}

// PastExpiry reports whether the card's deadline has passed at the given
// instant. Cards without a deadline never pass it.
func (c *ActivationCard) PastExpiry(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// BoundTo reports whether the card is bound to exactly this user.
func (c *ActivationCard) BoundTo(userID string) bool {
	return c.BoundUserID != nil && *c.BoundUserID == userID
}
