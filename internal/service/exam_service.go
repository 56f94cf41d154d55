package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mockprep/backend/internal/model"
	"github.com/mockprep/backend/internal/timer"
)

// ExamLister provides published exam reads for the lobby.
type ExamLister interface {
	GetByID(ctx context.Context, id int64) (*model.Exam, error)
	ListPublished(ctx context.Context) ([]model.Exam, error)
	QuestionCount(ctx context.Context, examID int64) (int, error)
}

// AttemptLister provides read-only attempt history.
type AttemptLister interface {
	ListByUser(ctx context.Context, userID int64) ([]model.Attempt, error)
}

// ExamService assembles the exam lobby: published exams annotated with the
// caller's access and any live attempt they could resume.
type ExamService struct {
	exams    ExamLister
	attempts AttemptStore
	subs     SubscriptionStore
	timers   TimerAuthority
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamLister, attempts AttemptStore, subs SubscriptionStore, timers TimerAuthority) *ExamService {
	return &ExamService{exams: exams, attempts: attempts, subs: subs, timers: timers}
}

// ExamListing is one lobby row.
type ExamListing struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Year            int        `json:"year"`
	TotalMarks      int        `json:"total_marks"`
	DurationMinutes int        `json:"duration_minutes"`
	QuestionCount   int        `json:"question_count"`
	AccessTier      model.Tier `json:"access_tier"`
	Accessible      bool       `json:"accessible"`
	Available       bool       `json:"available"`
	LiveAttemptID   *int64     `json:"live_attempt_id,omitempty"`
}

// List returns the lobby for a user. A live attempt is only reported when
// its timer is actually still running, so the lobby never offers resuming a
// silently expired attempt.
func (s *ExamService) List(ctx context.Context, userID int64) ([]ExamListing, error) {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	now := time.Now()
	tier := CurrentTier(subs, now)

	live, err := s.attempts.GetInProgressByUser(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check live attempt: %w", err)
	}
	var liveExamID, liveAttemptID int64
	if live != nil {
		rem, err := s.timers.Remaining(ctx, live.ID)
		if err != nil {
			return nil, fmt.Errorf("check timer: %w", err)
		}
		if rem.State == timer.StateRunning {
			liveExamID = live.ExamID
			liveAttemptID = live.ID
		}
	}

	out := make([]ExamListing, 0, len(exams))
	for i := range exams {
		e := &exams[i]
		count, err := s.exams.QuestionCount(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("count questions: %w", err)
		}
		row := ExamListing{
			ID:              e.ID,
			Title:           e.Title(),
			Year:            e.Year,
			TotalMarks:      e.TotalMarks,
			DurationMinutes: e.DurationMinutes,
			QuestionCount:   count,
			AccessTier:      e.AccessTier,
			Accessible:      tier.Satisfies(e.AccessTier),
			Available:       e.AvailableAt(now),
		}
		if e.ID == liveExamID {
			id := liveAttemptID
			row.LiveAttemptID = &id
		}
		out = append(out, row)
	}
	return out, nil
}
