package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/mockprep/backend/internal/model"
	"github.com/mockprep/backend/internal/repository"
	"github.com/mockprep/backend/internal/timer"
)

// Attempt lifecycle errors surfaced to the HTTP layer.
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrExamNotAvailable  = errors.New("exam is not available")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrNotOwner          = errors.New("attempt does not belong to user")
	ErrAlreadyCompleted  = errors.New("attempt is already completed")
	ErrTimeExpired       = errors.New("exam time has expired")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrQuestionNotInExam = errors.New("question does not belong to this exam")
	ErrNotCompleted      = errors.New("attempt is not completed yet")

	// ErrTimerCorrupt means the timer key exists without a TTL. This is an
	// operational alarm, never coerced into running or timeout.
	ErrTimerCorrupt = errors.New("timer state is corrupted")
)

// TierError rejects a start for insufficient subscription tier.
type TierError struct {
	Required model.Tier
}

func (e *TierError) Error() string {
	return fmt.Sprintf("exam requires %s tier", e.Required)
}

// ActiveAttemptError rejects a start because the user already holds a live
// attempt on another exam. It carries enough context for the client to offer
// resuming that attempt instead.
type ActiveAttemptError struct {
	ExamID    int64
	StartedAt time.Time
}

func (e *ActiveAttemptError) Error() string {
	return fmt.Sprintf("active attempt exists for exam %d", e.ExamID)
}

// TimerAuthority is the expiring-store contract the coordinator relies on.
// Implemented by timer.Manager; tests substitute an in-memory fake.
type TimerAuthority interface {
	CreateTimer(ctx context.Context, attemptID int64, duration time.Duration) error
	Remaining(ctx context.Context, attemptID int64) (timer.Remaining, error)
	DeleteTimer(ctx context.Context, attemptID int64) (bool, error)
	ExtendTimer(ctx context.Context, attemptID int64, extra time.Duration) error
}

// AttemptStore is the durable attempt-record contract.
type AttemptStore interface {
	GetByID(ctx context.Context, id int64) (*model.Attempt, error)
	GetInProgress(ctx context.Context, userID, examID int64) (*model.Attempt, error)
	GetInProgressByUser(ctx context.Context, userID int64) (*model.Attempt, error)
	NextAttemptNumber(ctx context.Context, userID, examID int64) (int, error)
	Create(ctx context.Context, a *model.Attempt) error
	Finish(ctx context.Context, id int64, status model.AttemptStatus, score *int, finishedAt time.Time) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// AnswerStore is the per-question answer contract.
type AnswerStore interface {
	Upsert(ctx context.Context, ans *model.AttemptAnswer) error
	ListByAttempt(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error)
	ListScoredByAttempt(ctx context.Context, attemptID int64) ([]repository.ScoredAnswer, error)
}

// ExamStore provides exam metadata reads.
type ExamStore interface {
	GetByID(ctx context.Context, id int64) (*model.Exam, error)
	QuestionCount(ctx context.Context, examID int64) (int, error)
}

// QuestionStore provides question reads.
type QuestionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Question, error)
	ListByExam(ctx context.Context, examID int64) ([]model.Question, error)
}

// SubscriptionStore provides subscription reads for tier derivation.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.Subscription, error)
}

// AttemptService coordinates the attempt lifecycle across the durable store
// and the Redis timer. It holds no state of its own: every decision is
// re-derived from the two stores, and expiry is detected lazily on each
// client interaction rather than by a background sweep.
type AttemptService struct {
	attempts  AttemptStore
	answers   AnswerStore
	exams     ExamStore
	questions QuestionStore
	subs      SubscriptionStore
	timers    TimerAuthority
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	answers AnswerStore,
	exams ExamStore,
	questions QuestionStore,
	subs SubscriptionStore,
	timers TimerAuthority,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:  attempts,
		answers:   answers,
		exams:     exams,
		questions: questions,
		subs:      subs,
		timers:    timers,
		log:       log.With().Str("component", "attempt_service").Logger(),
	}
}

// StartResult describes a started (or resumed) attempt.
type StartResult struct {
	AttemptID        int64  `json:"attempt_id"`
	ExamID           int64  `json:"exam_id"`
	ExamTitle        string `json:"exam_title"`
	AttemptNumber    int    `json:"attempt_number"`
	DurationMinutes  int    `json:"duration_minutes"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	TotalQuestions   int    `json:"total_questions"`
	TotalMarks       int    `json:"total_marks"`
	SessionToken     string `json:"session_token"`
	Resumed          bool   `json:"resumed"`
}

// PollStatus is the unified attempt status reported to polling clients.
type PollStatus string

const (
	PollRunning   PollStatus = "running"
	PollTimeout   PollStatus = "timeout"
	PollCompleted PollStatus = "completed"
)

// PollResult is the answer to "is this attempt still live".
type PollResult struct {
	Status           PollStatus `json:"status"`
	RemainingSeconds int64      `json:"remaining_seconds"`
}

// ScoreResult is the terminal outcome of an attempt.
type ScoreResult struct {
	Status           model.AttemptStatus `json:"status"`
	Score            int                 `json:"score"`
	TotalMarks       int                 `json:"total_marks"`
	Percentage       float64             `json:"percentage"`
	CorrectCount     int                 `json:"correct_answers"`
	TotalQuestions   int                 `json:"total_questions"`
	TimeTakenSeconds int64               `json:"time_taken_seconds"`
}

// Start begins a new attempt for the user on the exam, or resumes the
// existing live one. Preconditions: the exam is published and inside its
// availability window, the user's tier covers the exam, and the user holds
// no live attempt on a different exam (unless the session token matches,
// i.e. the same browser session is retrying).
func (s *AttemptService) Start(ctx context.Context, userID, examID int64, sessionToken string) (*StartResult, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	now := time.Now()
	if !exam.AvailableAt(now) {
		return nil, ErrExamNotAvailable
	}

	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if !CurrentTier(subs, now).Satisfies(exam.AccessTier) {
		return nil, &TierError{Required: exam.AccessTier}
	}

	totalQuestions, err := s.exams.QuestionCount(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	live, err := s.attempts.GetInProgressByUser(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check live attempt: %w", err)
	}

	if live != nil {
		if live.ExamID == examID {
			res, err := s.resumeOrReap(ctx, live, exam, totalQuestions)
			if err != nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
			// The old attempt timed out and was reaped; start fresh below.
		} else {
			rem, err := s.timers.Remaining(ctx, live.ID)
			if err != nil {
				return nil, fmt.Errorf("check live timer: %w", err)
			}
			switch rem.State {
			case timer.StateExpired:
				// The other exam's attempt silently ran out; reconcile it
				// now so it stops blocking the single-session gate.
				if err := s.markTimeout(ctx, live.ID); err != nil {
					return nil, err
				}
			case timer.StateCorrupted:
				return nil, ErrTimerCorrupt
			default:
				if sessionToken == "" || sessionToken != live.SessionToken {
					return nil, &ActiveAttemptError{ExamID: live.ExamID, StartedAt: live.StartedAt}
				}
				// Same browser session retrying: advisory gate lets it pass.
			}
		}
	}

	number, err := s.attempts.NextAttemptNumber(ctx, userID, examID)
	if err != nil {
		return nil, fmt.Errorf("next attempt number: %w", err)
	}

	token := sessionToken
	if token == "" {
		token = uuid.New().String()
	}

	attempt := &model.Attempt{
		UserID:        userID,
		ExamID:        examID,
		AttemptNumber: number,
		Status:        model.AttemptInProgress,
		SessionToken:  token,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a concurrent start race: resume the winner's attempt.
			winner, ferr := s.attempts.GetInProgress(ctx, userID, examID)
			if ferr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", ferr)
			}
			rem, rerr := s.timers.Remaining(ctx, winner.ID)
			if rerr != nil {
				return nil, fmt.Errorf("check winner timer: %w", rerr)
			}
			if rem.State == timer.StateRunning {
				return s.resumedResult(winner, exam, totalQuestions, rem.Seconds), nil
			}
			// The winner's row was committed within this same request's
			// window, so a missing timer here means the winner has not
			// reached timer creation yet, not that time ran out. Report
			// the conflict rather than judging a timer mid-creation.
			return nil, &ActiveAttemptError{ExamID: winner.ExamID, StartedAt: winner.StartedAt}
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	duration := time.Duration(exam.DurationMinutes) * time.Minute
	if err := s.timers.CreateTimer(ctx, attempt.ID, duration); err != nil {
		// Compensating rollback inside the same logical operation: an
		// in_progress attempt without a live timer would block the user's
		// single-session gate forever.
		if derr := s.attempts.Delete(ctx, attempt.ID); derr != nil {
			s.log.Error().Err(derr).
				Int64("attempt_id", attempt.ID).
				Msg("Rollback failed after timer creation error")
		}
		return nil, fmt.Errorf("start timer: %w", err)
	}

	s.log.Info().
		Int64("attempt_id", attempt.ID).
		Int64("user_id", userID).
		Int64("exam_id", examID).
		Int("attempt_number", number).
		Msg("Attempt started")

	return &StartResult{
		AttemptID:        attempt.ID,
		ExamID:           examID,
		ExamTitle:        exam.Title(),
		AttemptNumber:    number,
		DurationMinutes:  exam.DurationMinutes,
		RemainingSeconds: int64(duration / time.Second),
		TotalQuestions:   totalQuestions,
		TotalMarks:       exam.TotalMarks,
		SessionToken:     token,
		Resumed:          false,
	}, nil
}

// resumeOrReap resolves an existing live attempt on the same exam: a running
// timer yields an idempotent resume, an expired one transitions the attempt
// to timeout and returns nil so the caller starts fresh.
func (s *AttemptService) resumeOrReap(ctx context.Context, live *model.Attempt, exam *model.Exam, totalQuestions int) (*StartResult, error) {
	rem, err := s.timers.Remaining(ctx, live.ID)
	if err != nil {
		return nil, fmt.Errorf("check timer: %w", err)
	}

	switch rem.State {
	case timer.StateRunning:
		return s.resumedResult(live, exam, totalQuestions, rem.Seconds), nil
	case timer.StateExpired:
		if err := s.markTimeout(ctx, live.ID); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, ErrTimerCorrupt
	}
}

func (s *AttemptService) resumedResult(live *model.Attempt, exam *model.Exam, totalQuestions int, remainingSeconds int64) *StartResult {
	return &StartResult{
		AttemptID:        live.ID,
		ExamID:           exam.ID,
		ExamTitle:        exam.Title(),
		AttemptNumber:    live.AttemptNumber,
		DurationMinutes:  exam.DurationMinutes,
		RemainingSeconds: remainingSeconds,
		TotalQuestions:   totalQuestions,
		TotalMarks:       exam.TotalMarks,
		SessionToken:     live.SessionToken,
		Resumed:          true,
	}
}

// markTimeout writes the timeout transition for an attempt whose timer is
// gone, scoring whatever answers were saved before the deadline. Only
// in_progress rows transition, so repeated detection is harmless.
func (s *AttemptService) markTimeout(ctx context.Context, attemptID int64) error {
	score, _, err := s.computeScore(ctx, attemptID)
	if err != nil {
		return err
	}
	updated, err := s.attempts.Finish(ctx, attemptID, model.AttemptTimeout, &score, time.Now())
	if err != nil {
		return fmt.Errorf("mark timeout: %w", err)
	}
	if updated {
		s.log.Info().Int64("attempt_id", attemptID).Msg("Attempt timed out")
	}
	return nil
}

// Poll reconciles durable status against the live timer and returns the
// unified status. Terminal attempts short-circuit without a timer lookup.
func (s *AttemptService) Poll(ctx context.Context, attemptID, userID int64) (*PollResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	switch attempt.Status {
	case model.AttemptSubmitted:
		return &PollResult{Status: PollCompleted}, nil
	case model.AttemptTimeout:
		return &PollResult{Status: PollTimeout}, nil
	}

	rem, err := s.timers.Remaining(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("check timer: %w", err)
	}

	switch rem.State {
	case timer.StateRunning:
		return &PollResult{Status: PollRunning, RemainingSeconds: rem.Seconds}, nil
	case timer.StateExpired:
		if err := s.markTimeout(ctx, attempt.ID); err != nil {
			return nil, err
		}
		return &PollResult{Status: PollTimeout}, nil
	default:
		return nil, ErrTimerCorrupt
	}
}

// SubmitAnswer saves or replaces the answer for one question, computing its
// correctness at write time. A found-expired timer both rejects the write
// and transitions the attempt to timeout in the same call.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, userID, questionID int64, option string) (*model.AttemptAnswer, error) {
	if !model.ValidOption(option) {
		return nil, fmt.Errorf("invalid option %q", option)
	}

	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.Terminal() {
		return nil, ErrAlreadyCompleted
	}

	rem, err := s.timers.Remaining(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("check timer: %w", err)
	}
	switch rem.State {
	case timer.StateExpired:
		if err := s.markTimeout(ctx, attempt.ID); err != nil {
			return nil, err
		}
		return nil, ErrTimeExpired
	case timer.StateCorrupted:
		return nil, ErrTimerCorrupt
	}

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	if question.ExamID != attempt.ExamID {
		return nil, ErrQuestionNotInExam
	}

	ans := &model.AttemptAnswer{
		AttemptID:      attempt.ID,
		QuestionID:     questionID,
		SelectedOption: option,
		IsCorrect:      option == question.CorrectOption,
	}
	if err := s.answers.Upsert(ctx, ans); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	return ans, nil
}

// Submit finalizes the attempt. A still-running timer means a normal
// submission (and the timer is deleted so no dangling expiry fires later);
// an absent timer means the deadline passed and the attempt is recorded as
// timeout — the timer store's state decides, not request arrival order.
// Either way the score is computed exactly once; calling Submit on an
// already-terminal attempt returns the stored result unchanged.
func (s *AttemptService) Submit(ctx context.Context, attemptID, userID int64) (*ScoreResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if attempt.Status.Terminal() {
		return s.storedResult(ctx, attempt, exam)
	}

	rem, err := s.timers.Remaining(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("check timer: %w", err)
	}

	var final model.AttemptStatus
	switch rem.State {
	case timer.StateExpired:
		final = model.AttemptTimeout
	case timer.StateCorrupted:
		return nil, ErrTimerCorrupt
	default:
		final = model.AttemptSubmitted
		// A failed delete leaves only a harmless dangling expiry: the
		// attempt is terminal by then, so the late expiry has no effect.
		if _, err := s.timers.DeleteTimer(ctx, attempt.ID); err != nil {
			s.log.Warn().Err(err).
				Int64("attempt_id", attempt.ID).
				Msg("Timer delete failed on submit")
		}
	}

	score, correct, err := s.computeScore(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updated, err := s.attempts.Finish(ctx, attempt.ID, final, &score, now)
	if err != nil {
		return nil, fmt.Errorf("finish attempt: %w", err)
	}
	if !updated {
		// Another request settled the attempt first; its stored result wins.
		settled, gerr := s.attempts.GetByID(ctx, attempt.ID)
		if gerr != nil {
			return nil, fmt.Errorf("reload settled attempt: %w", gerr)
		}
		return s.storedResult(ctx, settled, exam)
	}

	totalQuestions, err := s.exams.QuestionCount(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	s.log.Info().
		Int64("attempt_id", attempt.ID).
		Str("status", string(final)).
		Int("score", score).
		Msg("Attempt submitted")

	return &ScoreResult{
		Status:           final,
		Score:            score,
		TotalMarks:       exam.TotalMarks,
		Percentage:       percentage(score, exam.TotalMarks),
		CorrectCount:     correct,
		TotalQuestions:   totalQuestions,
		TimeTakenSeconds: int64(now.Sub(attempt.StartedAt) / time.Second),
	}, nil
}

// Extend adds extra time to a live attempt's timer. Privileged operation for
// accommodations; an expired timer is never resurrected.
func (s *AttemptService) Extend(ctx context.Context, attemptID int64, extra time.Duration) error {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status.Terminal() {
		return ErrAlreadyCompleted
	}
	return s.timers.ExtendTimer(ctx, attemptID, extra)
}

// QuestionsResult is the paper payload for an attempt, stripped of correct
// options, with the user's saved answers overlaid.
type QuestionsResult struct {
	AttemptID    int64                      `json:"attempt_id"`
	ExamTitle    string                     `json:"exam_title"`
	Questions    []model.QuestionForStudent `json:"questions"`
	SavedAnswers map[int64]string           `json:"saved_answers"`
}

// Questions returns the attempt's paper. On a live attempt the timer is
// checked first: a found-expired timer transitions the attempt and rejects.
func (s *AttemptService) Questions(ctx context.Context, attemptID, userID int64) (*QuestionsResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == model.AttemptInProgress {
		rem, err := s.timers.Remaining(ctx, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("check timer: %w", err)
		}
		switch rem.State {
		case timer.StateExpired:
			if err := s.markTimeout(ctx, attempt.ID); err != nil {
				return nil, err
			}
			return nil, ErrTimeExpired
		case timer.StateCorrupted:
			return nil, ErrTimerCorrupt
		}
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	questions, err := s.questions.ListByExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	answers, err := s.answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	res := &QuestionsResult{
		AttemptID:    attempt.ID,
		ExamTitle:    exam.Title(),
		Questions:    make([]model.QuestionForStudent, 0, len(questions)),
		SavedAnswers: make(map[int64]string, len(answers)),
	}
	for i := range questions {
		res.Questions = append(res.Questions, questions[i].ForStudent())
	}
	for _, a := range answers {
		res.SavedAnswers[a.QuestionID] = a.SelectedOption
	}
	return res, nil
}

// ReviewResult combines the stored outcome with per-question correctness.
type ReviewResult struct {
	Attempt *model.Attempt            `json:"attempt"`
	Result  *ScoreResult              `json:"result"`
	Answers []repository.ScoredAnswer `json:"answers"`
}

// Review returns the stored result for a terminal attempt. A timed-out exam
// reviews exactly like a submitted one, with whatever answers were saved.
func (s *AttemptService) Review(ctx context.Context, attemptID, userID int64) (*ReviewResult, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if !attempt.Status.Terminal() {
		return nil, ErrNotCompleted
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	result, err := s.storedResult(ctx, attempt, exam)
	if err != nil {
		return nil, err
	}

	answers, err := s.answers.ListScoredByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	return &ReviewResult{Attempt: attempt, Result: result, Answers: answers}, nil
}

// ownedAttempt loads an attempt and enforces ownership.
func (s *AttemptService) ownedAttempt(ctx context.Context, attemptID, userID int64) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, ErrNotOwner
	}
	return attempt, nil
}

// computeScore sums the marks of every answer flagged correct.
func (s *AttemptService) computeScore(ctx context.Context, attemptID int64) (score, correct int, err error) {
	answers, err := s.answers.ListScoredByAttempt(ctx, attemptID)
	if err != nil {
		return 0, 0, fmt.Errorf("list answers: %w", err)
	}
	for _, a := range answers {
		if a.IsCorrect {
			score += a.Marks
			correct++
		}
	}
	return score, correct, nil
}

// storedResult rebuilds a ScoreResult from the persisted attempt without
// re-running the scoring pass, so a second Submit cannot drift even if
// grading data changed in between.
func (s *AttemptService) storedResult(ctx context.Context, attempt *model.Attempt, exam *model.Exam) (*ScoreResult, error) {
	score := 0
	if attempt.Score != nil {
		score = *attempt.Score
	}

	correct := 0
	answers, err := s.answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}

	totalQuestions, err := s.exams.QuestionCount(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	var elapsed int64
	if attempt.FinishedAt != nil {
		elapsed = int64(attempt.FinishedAt.Sub(attempt.StartedAt) / time.Second)
	}

	return &ScoreResult{
		Status:           attempt.Status,
		Score:            score,
		TotalMarks:       exam.TotalMarks,
		Percentage:       percentage(score, exam.TotalMarks),
		CorrectCount:     correct,
		TotalQuestions:   totalQuestions,
		TimeTakenSeconds: elapsed,
	}, nil
}

func percentage(score, totalMarks int) float64 {
	if totalMarks <= 0 {
		return 0
	}
	return float64(score) / float64(totalMarks) * 100
}
