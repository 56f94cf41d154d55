package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mockprep/backend/internal/model"
)

// ScoredAnswer joins a saved answer with its question's marks for scoring.
type ScoredAnswer struct {
	model.AttemptAnswer
	Marks int `json:"marks"`
}

// AnswerRepository handles per-question answers within attempts.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert saves or replaces the answer for (attempt, question).
func (r *AnswerRepository) Upsert(ctx context.Context, ans *model.AttemptAnswer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, selected_option, is_correct)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_id)
		 DO UPDATE SET selected_option = EXCLUDED.selected_option,
		               is_correct = EXCLUDED.is_correct
		 RETURNING id`,
		ans.AttemptID, ans.QuestionID, ans.SelectedOption, ans.IsCorrect,
	).Scan(&ans.ID)
}

// ListByAttempt retrieves all answers saved for an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, selected_option, is_correct
		 FROM attempt_answers
		 WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedOption, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListScoredByAttempt retrieves answers joined with question marks, used by
// the scoring pass at submit time.
func (r *AnswerRepository) ListScoredByAttempt(ctx context.Context, attemptID int64) ([]ScoredAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT aa.id, aa.attempt_id, aa.question_id, aa.selected_option,
		        aa.is_correct, q.marks
		 FROM attempt_answers aa
		 JOIN questions q ON q.id = aa.question_id
		 WHERE aa.attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []ScoredAnswer
	for rows.Next() {
		var a ScoredAnswer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedOption,
			&a.IsCorrect, &a.Marks); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
