package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mockprep/backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetByID retrieves a question with its correct option and marks.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, question_number, text, option_a, option_b,
		        option_c, option_d, correct_option, marks
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.ExamID, &q.Number, &q.Text, &q.OptionA, &q.OptionB,
		&q.OptionC, &q.OptionD, &q.CorrectOption, &q.Marks)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListByExam retrieves an exam's questions in paper order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_number, text, option_a, option_b,
		        option_c, option_d, correct_option, marks
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY question_number ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Number, &q.Text, &q.OptionA,
			&q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectOption, &q.Marks); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
