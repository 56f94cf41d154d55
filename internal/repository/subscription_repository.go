package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mockprep/backend/internal/model"
)

// SubscriptionRepository handles paid-plan records.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// ListByUser retrieves all subscription records for a user. Tier derivation
// over these records happens in the service layer, never in SQL, so the
// "current tier" is always computed against a single consistent now.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]model.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, plan_key, status, start_date, end_date, created_at
		 FROM subscriptions
		 WHERE user_id = $1
		 ORDER BY end_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.PlanKey, &s.Status,
			&s.StartDate, &s.EndDate, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
