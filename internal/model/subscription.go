package model

import "time"

// Tier is an access level gating which exams a user may start.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
)

// Satisfies reports whether this tier meets the given required tier.
// FREE content is open to everyone; PRO content requires a PRO tier.
func (t Tier) Satisfies(required Tier) bool {
	if required != TierPro {
		return true
	}
	return t == TierPro
}

// SubscriptionStatus enumerates subscription record states.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a paid-plan record for a user. A user's current tier is
// never stored; it is derived from these records at read time (see
// service.CurrentTier).
type Subscription struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	PlanKey   string             `json:"plan_key"`
	Status    SubscriptionStatus `json:"status"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	CreatedAt time.Time          `json:"created_at"`
}
