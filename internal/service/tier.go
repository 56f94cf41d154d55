package service

import (
	"time"

	"github.com/mockprep/backend/internal/model"
)

// CurrentTier derives a user's access tier from their subscription records
// at the given instant. The tier is never stored on the user row; callers
// compute it fresh against a single clock reading.
func CurrentTier(subs []model.Subscription, now time.Time) model.Tier {
	for _, s := range subs {
		if s.Status != model.SubscriptionActive {
			continue
		}
		if now.Before(s.StartDate) || now.After(s.EndDate) {
			continue
		}
		return model.TierPro
	}
	return model.TierFree
}
