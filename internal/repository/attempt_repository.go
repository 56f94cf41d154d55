package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mockprep/backend/internal/model"
)

// AttemptRepository handles durable attempt records. It is the only mutator
// of attempt status; timer existence lives in Redis and is managed elsewhere.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, user_id, exam_id, attempt_number, status,
	session_token, started_at, finished_at, score`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.UserID, &a.ExamID, &a.AttemptNumber, &a.Status,
		&a.SessionToken, &a.StartedAt, &a.FinishedAt, &a.Score)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetInProgress retrieves the live attempt for a user/exam pair, if any.
func (r *AttemptRepository) GetInProgress(ctx context.Context, userID, examID int64) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = $1 AND exam_id = $2 AND status = $3`,
		userID, examID, model.AttemptInProgress))
}

// GetInProgressByUser retrieves a user's live attempt across any exam.
// Feeds the single-active-session gate.
func (r *AttemptRepository) GetInProgressByUser(ctx context.Context, userID int64) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = $1 AND status = $2
		 ORDER BY started_at DESC
		 LIMIT 1`,
		userID, model.AttemptInProgress))
}

// NextAttemptNumber returns 1 + the highest attempt number for the pair.
func (r *AttemptRepository) NextAttemptNumber(ctx context.Context, userID, examID int64) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM attempts
		 WHERE user_id = $1 AND exam_id = $2`, userID, examID).Scan(&next)
	return next, err
}

// Create inserts a new in_progress attempt. A partial unique index permits
// only one in_progress row per (user, exam); on a concurrent start the insert
// returns pgx.ErrNoRows and the caller resumes the winner's attempt instead.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, exam_id, attempt_number, status, session_token)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, exam_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING id, started_at`,
		a.UserID, a.ExamID, a.AttemptNumber, model.AttemptInProgress, a.SessionToken,
	).Scan(&a.ID, &a.StartedAt)
}

// Finish transitions an attempt to a terminal status, writing finished_at and
// (optionally) the score. The status guard makes terminal fields write-once:
// if the row is already terminal the update is a no-op and false is returned,
// so a durable submitted result always wins over a late timeout write.
func (r *AttemptRepository) Finish(ctx context.Context, id int64, status model.AttemptStatus, score *int, finishedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, score = COALESCE($2, score), finished_at = $3
		 WHERE id = $4 AND status = $5`,
		status, score, finishedAt, id, model.AttemptInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an attempt row. Only used as the compensating rollback when
// timer creation fails during start; settled attempts are never deleted.
func (r *AttemptRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM attempts WHERE id = $1`, id)
	return err
}

// ListByUser retrieves a user's attempts, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int64) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
