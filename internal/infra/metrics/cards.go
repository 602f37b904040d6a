package metrics

import (
	"activation-card-service/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		cardsCreatedTotal,
		cardRedemptionsTotal,
		cardsExpiredTotal,
		cardsTotal,
	)
}

var (
	cardsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_cards_created_total",
			Help: "Total number of activation cards minted, by card type.",
		},
		[]string{"card_type"},
	)

	cardRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_card_redemptions_total",
			Help: "Redemption decisions, by outcome.",
		},
		[]string{"outcome"}, // 'redeemed', 'already_active', 'expired', 'conflict'
	)

	cardsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activation_cards_expired_total",
			Help: "Cards recorded as expired, lazily or by the sweep worker.",
		},
	)

	cardsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "activation_cards_total",
			Help: "Current number of activation cards by status.",
		},
		[]string{"status"}, // 'unassigned', 'assigned', 'used', 'expired'
	)
)

func IncCardsCreated(cardType string, count int) {
	cardsCreatedTotal.WithLabelValues(cardType).Add(float64(count))
}

func IncCardRedemption(outcome string) {
	cardRedemptionsTotal.WithLabelValues(outcome).Inc()
}

func IncCardsExpired(count int) {
	cardsExpiredTotal.Add(float64(count))
}

func SetCardsTotal(counts map[model.CardStatus]int) {
	statuses := []model.CardStatus{
		model.CardStatusUnassigned,
		model.CardStatusAssigned,
		model.CardStatusUsed,
		model.CardStatusExpired,
	}
	for _, status := range statuses {
		cardsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
