package model

import "time"

// AttemptStatus enumerates exam attempt states. Submitted and timeout are
// both terminal: no further answer or score mutation is permitted.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptTimeout    AttemptStatus = "timeout"
)

// Terminal reports whether the status permits no further writes.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptTimeout
}

// Attempt is a durable record of one user's run at one exam. The matching
// Redis timer (keyed by attempt ID) is the timing authority; the attempt row
// only records the outcome.
type Attempt struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	ExamID        int64         `json:"exam_id"`
	AttemptNumber int           `json:"attempt_number"`
	Status        AttemptStatus `json:"status"`
	SessionToken  string        `json:"-"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Score         *int          `json:"score,omitempty"`
}

// AttemptAnswer is a single saved answer within an attempt. IsCorrect is
// computed against the question's correct option when the answer is written,
// so result review can show live correctness mid-exam.
type AttemptAnswer struct {
	ID             int64  `json:"id"`
	AttemptID      int64  `json:"attempt_id"`
	QuestionID     int64  `json:"question_id"`
	SelectedOption string `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
}

// SubmitAnswerRequest is the payload for saving an answer.
type SubmitAnswerRequest struct {
	QuestionID     int64  `json:"question_id" binding:"required"`
	SelectedOption string `json:"selected_option" binding:"required,oneof=A B C D"`
}

// ExtendTimerRequest is the payload for the privileged timer extension.
type ExtendTimerRequest struct {
	AdditionalSeconds int `json:"additional_seconds" binding:"required,min=1,max=10800"`
}
