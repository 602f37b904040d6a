package model

import "time"

// DefaultStatsWindow is used when the caller does not supply one.
const DefaultStatsWindow = 7 * 24 * time.Hour

// CardStats is a derived snapshot: counts by status, counts by type, and
// activity inside [now-window, now].
type CardStats struct {
	Total    int                `json:"total"`
	ByStatus map[CardStatus]int `json:"by_status"`
	ByType   map[CardType]int   `json:"by_type"`
	Recent   RecentActivity     `json:"recent_activity"`
	Window   time.Duration      `json:"-"`
}

type RecentActivity struct {
	Created  int `json:"created"`
	Assigned int `json:"assigned"`
	Redeemed int `json:"redeemed"`
}

// AggregateStats folds a card snapshot into CardStats. Pure: no mutation,
// no clock reads. A zero window falls back to DefaultStatsWindow.
func AggregateStats(cards []*ActivationCard, now time.Time, window time.Duration) CardStats {
	if window <= 0 {
		window = DefaultStatsWindow
	}
	since := now.Add(-window)
	inWindow := func(t *time.Time) bool {
		return t != nil && !t.Before(since) && !t.After(now)
	}

	stats := CardStats{
		ByStatus: make(map[CardStatus]int),
		ByType:   make(map[CardType]int),
		Window:   window,
	}
	for _, c := range cards {
		if c == nil {
			continue
		}
		stats.Total++
		stats.ByStatus[c.Status]++
		stats.ByType[c.CardType]++

		created := c.CreatedAt
		if inWindow(&created) {
			stats.Recent.Created++
		}
		if inWindow(c.AssignedAt) {
			stats.Recent.Assigned++
		}
		if inWindow(c.RedeemedAt) {
			stats.Recent.Redeemed++
		}
	}
	return stats
}
