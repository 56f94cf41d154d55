package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockprep/backend/internal/model"
	"github.com/mockprep/backend/internal/repository"
	"github.com/mockprep/backend/internal/timer"
)

// fakeTimers is an in-memory TimerAuthority. Remaining is driven by the
// states map rather than a clock, so tests control expiry directly.
type fakeTimers struct {
	states    map[int64]timer.Remaining
	createErr error
	failAll   bool
	deleted   []int64
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{states: make(map[int64]timer.Remaining)}
}

func (f *fakeTimers) CreateTimer(_ context.Context, attemptID int64, duration time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.states[attemptID] = timer.Remaining{State: timer.StateRunning, Seconds: int64(duration / time.Second)}
	return nil
}

func (f *fakeTimers) Remaining(_ context.Context, attemptID int64) (timer.Remaining, error) {
	if f.failAll {
		return timer.Remaining{}, errors.New("connection refused")
	}
	if r, ok := f.states[attemptID]; ok {
		return r, nil
	}
	return timer.Remaining{State: timer.StateExpired}, nil
}

func (f *fakeTimers) DeleteTimer(_ context.Context, attemptID int64) (bool, error) {
	f.deleted = append(f.deleted, attemptID)
	_, ok := f.states[attemptID]
	delete(f.states, attemptID)
	return ok, nil
}

func (f *fakeTimers) ExtendTimer(_ context.Context, attemptID int64, extra time.Duration) error {
	r, ok := f.states[attemptID]
	if !ok || r.State != timer.StateRunning {
		return timer.ErrTimerGone
	}
	r.Seconds += int64(extra / time.Second)
	f.states[attemptID] = r
	return nil
}

func (f *fakeTimers) expire(attemptID int64) {
	delete(f.states, attemptID)
}

type fakeAttempts struct {
	nextID    int64
	rows      map[int64]*model.Attempt
	createErr error

	// hideLiveOnce makes the next GetInProgressByUser miss, simulating a
	// competing start that commits its row after this caller's check.
	hideLiveOnce bool
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{rows: make(map[int64]*model.Attempt)}
}

func (f *fakeAttempts) GetByID(_ context.Context, id int64) (*model.Attempt, error) {
	a, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttempts) GetInProgress(_ context.Context, userID, examID int64) (*model.Attempt, error) {
	for _, a := range f.rows {
		if a.UserID == userID && a.ExamID == examID && a.Status == model.AttemptInProgress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttempts) GetInProgressByUser(_ context.Context, userID int64) (*model.Attempt, error) {
	if f.hideLiveOnce {
		f.hideLiveOnce = false
		return nil, pgx.ErrNoRows
	}
	for _, a := range f.rows {
		if a.UserID == userID && a.Status == model.AttemptInProgress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttempts) NextAttemptNumber(_ context.Context, userID, examID int64) (int, error) {
	max := 0
	for _, a := range f.rows {
		if a.UserID == userID && a.ExamID == examID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max + 1, nil
}

func (f *fakeAttempts) Create(_ context.Context, a *model.Attempt) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, row := range f.rows {
		if row.UserID == a.UserID && row.ExamID == a.ExamID && row.Status == model.AttemptInProgress {
			// Mirrors the partial unique index on live attempts.
			return pgx.ErrNoRows
		}
	}
	f.nextID++
	a.ID = f.nextID
	a.StartedAt = time.Now()
	cp := *a
	f.rows[a.ID] = &cp
	return nil
}

func (f *fakeAttempts) Finish(_ context.Context, id int64, status model.AttemptStatus, score *int, finishedAt time.Time) (bool, error) {
	a, ok := f.rows[id]
	if !ok || a.Status != model.AttemptInProgress {
		return false, nil
	}
	a.Status = status
	if score != nil {
		a.Score = score
	}
	a.FinishedAt = &finishedAt
	return true, nil
}

func (f *fakeAttempts) Delete(_ context.Context, id int64) error {
	delete(f.rows, id)
	return nil
}

type fakeAnswers struct {
	rows      map[int64]map[int64]*model.AttemptAnswer
	questions *fakeQuestions
}

func newFakeAnswers(q *fakeQuestions) *fakeAnswers {
	return &fakeAnswers{rows: make(map[int64]map[int64]*model.AttemptAnswer), questions: q}
}

func (f *fakeAnswers) Upsert(_ context.Context, ans *model.AttemptAnswer) error {
	if f.rows[ans.AttemptID] == nil {
		f.rows[ans.AttemptID] = make(map[int64]*model.AttemptAnswer)
	}
	cp := *ans
	f.rows[ans.AttemptID][ans.QuestionID] = &cp
	return nil
}

func (f *fakeAnswers) ListByAttempt(_ context.Context, attemptID int64) ([]model.AttemptAnswer, error) {
	var out []model.AttemptAnswer
	for _, a := range f.rows[attemptID] {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAnswers) ListScoredByAttempt(_ context.Context, attemptID int64) ([]repository.ScoredAnswer, error) {
	var out []repository.ScoredAnswer
	for _, a := range f.rows[attemptID] {
		marks := 0
		if q, ok := f.questions.rows[a.QuestionID]; ok {
			marks = q.Marks
		}
		out = append(out, repository.ScoredAnswer{AttemptAnswer: *a, Marks: marks})
	}
	return out, nil
}

type fakeExams struct {
	rows   map[int64]*model.Exam
	counts map[int64]int
}

func (f *fakeExams) GetByID(_ context.Context, id int64) (*model.Exam, error) {
	e, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExams) QuestionCount(_ context.Context, examID int64) (int, error) {
	return f.counts[examID], nil
}

type fakeQuestions struct {
	rows map[int64]*model.Question
}

func (f *fakeQuestions) GetByID(_ context.Context, id int64) (*model.Question, error) {
	q, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuestions) ListByExam(_ context.Context, examID int64) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.rows {
		if q.ExamID == examID {
			out = append(out, *q)
		}
	}
	return out, nil
}

type fakeSubs struct {
	rows map[int64][]model.Subscription
}

func (f *fakeSubs) ListByUser(_ context.Context, userID int64) ([]model.Subscription, error) {
	return f.rows[userID], nil
}

type fixture struct {
	svc       *AttemptService
	attempts  *fakeAttempts
	answers   *fakeAnswers
	timers    *fakeTimers
	exams     *fakeExams
	questions *fakeQuestions
	subs      *fakeSubs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	questions := &fakeQuestions{rows: map[int64]*model.Question{
		101: {ID: 101, ExamID: 1, CorrectOption: "B", Marks: 4},
		102: {ID: 102, ExamID: 1, CorrectOption: "A", Marks: 4},
		103: {ID: 103, ExamID: 1, CorrectOption: "D", Marks: 2},
		201: {ID: 201, ExamID: 2, CorrectOption: "C", Marks: 4},
	}}
	exams := &fakeExams{
		rows: map[int64]*model.Exam{
			1: {ID: 1, Name: "Physics Mock", Year: 2026, TotalMarks: 10, DurationMinutes: 60, AccessTier: model.TierFree, IsPublished: true},
			2: {ID: 2, Name: "Chemistry Mock", Year: 2026, TotalMarks: 4, DurationMinutes: 30, AccessTier: model.TierPro, IsPublished: true},
		},
		counts: map[int64]int{1: 3, 2: 1},
	}
	attempts := newFakeAttempts()
	answers := newFakeAnswers(questions)
	timers := newFakeTimers()
	subs := &fakeSubs{rows: make(map[int64][]model.Subscription)}

	svc := NewAttemptService(attempts, answers, exams, questions, subs, timers, zerolog.Nop())
	return &fixture{svc: svc, attempts: attempts, answers: answers, timers: timers, exams: exams, questions: questions, subs: subs}
}

func TestStartCreatesAttemptAndTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	assert.False(t, res.Resumed)
	assert.Equal(t, 1, res.AttemptNumber)
	assert.Equal(t, int64(3600), res.RemainingSeconds)
	assert.Equal(t, 3, res.TotalQuestions)
	assert.NotEmpty(t, res.SessionToken)

	rem, err := f.timers.Remaining(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, timer.StateRunning, rem.State)
}

func TestStartResumesLiveAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	second, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.AttemptID, second.AttemptID)
	assert.Equal(t, first.SessionToken, second.SessionToken)
}

func TestConcurrentStartLoserResumesWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The winner has committed its row and created its timer.
	winner, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	// The loser checked for a live attempt before the winner committed,
	// so its insert trips the partial unique index instead.
	f.attempts.hideLiveOnce = true
	loser, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	assert.True(t, loser.Resumed)
	assert.Equal(t, winner.AttemptID, loser.AttemptID)
	assert.Equal(t, winner.SessionToken, loser.SessionToken)

	live, err := f.attempts.GetInProgressByUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, winner.AttemptID, live.ID)
}

func TestConcurrentStartWinnerWithoutTimerIsNotReaped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The winner's row is committed but it has not reached timer
	// creation yet.
	winner := &model.Attempt{UserID: 7, ExamID: 1, AttemptNumber: 1, Status: model.AttemptInProgress, SessionToken: "winner-session"}
	require.NoError(t, f.attempts.Create(ctx, winner))

	f.attempts.hideLiveOnce = true
	_, err := f.svc.Start(ctx, 7, 1, "")
	var active *ActiveAttemptError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, int64(1), active.ExamID)

	// The winner's fresh row must not be flipped to timeout just because
	// its timer is not visible yet.
	stored, err := f.attempts.GetByID(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.Status)
	assert.Nil(t, stored.FinishedAt)
}

func TestStartRollsBackAttemptWhenTimerFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.timers.createErr = errors.New("redis down")

	_, err := f.svc.Start(ctx, 7, 1, "")
	require.Error(t, err)

	// No orphaned in_progress row left behind to block future starts.
	_, err = f.attempts.GetInProgressByUser(ctx, 7)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	f.timers.createErr = nil
	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)
	assert.False(t, res.Resumed)
}

func TestStartBlockedByOtherExamAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subs.rows[7] = proSubs()

	first, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, 7, 2, "")
	var active *ActiveAttemptError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, int64(1), active.ExamID)

	// The same browser session passes the advisory gate.
	res, err := f.svc.Start(ctx, 7, 2, first.SessionToken)
	require.NoError(t, err)
	assert.False(t, res.Resumed)
}

func TestStartAfterOtherExamExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subs.rows[7] = proSubs()

	first, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	f.timers.expire(first.AttemptID)

	res, err := f.svc.Start(ctx, 7, 2, "")
	require.NoError(t, err)
	assert.False(t, res.Resumed)

	old, err := f.attempts.GetByID(ctx, first.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptTimeout, old.Status)
}

func TestStartTierGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, 7, 2, "")
	var tierErr *TierError
	require.ErrorAs(t, err, &tierErr)
	assert.Equal(t, model.TierPro, tierErr.Required)

	f.subs.rows[7] = proSubs()
	_, err = f.svc.Start(ctx, 7, 2, "")
	require.NoError(t, err)
}

func TestStartUnpublishedExam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.exams.rows[1].IsPublished = false

	_, err := f.svc.Start(ctx, 7, 1, "")
	assert.ErrorIs(t, err, ErrExamNotAvailable)
}

func TestPollTransitionsExpiredToTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	poll, err := f.svc.Poll(ctx, res.AttemptID, 7)
	require.NoError(t, err)
	assert.Equal(t, PollRunning, poll.Status)
	assert.Equal(t, int64(3600), poll.RemainingSeconds)

	f.timers.expire(res.AttemptID)

	poll, err = f.svc.Poll(ctx, res.AttemptID, 7)
	require.NoError(t, err)
	assert.Equal(t, PollTimeout, poll.Status)

	stored, err := f.attempts.GetByID(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptTimeout, stored.Status)

	// Terminal fast path: no timer lookup, status sticks.
	f.timers.failAll = true
	poll, err = f.svc.Poll(ctx, res.AttemptID, 7)
	require.NoError(t, err)
	assert.Equal(t, PollTimeout, poll.Status)
}

func TestPollTransportFailureIsNotTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	f.timers.failAll = true

	_, err = f.svc.Poll(ctx, res.AttemptID, 7)
	require.Error(t, err)

	// The attempt must stay live: a Redis outage is not an expiry.
	f.timers.failAll = false
	stored, err := f.attempts.GetByID(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.Status)
}

func TestPollOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.Poll(ctx, res.AttemptID, 8)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestSubmitAnswerGradesAtWriteTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	ans, err := f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B")
	require.NoError(t, err)
	assert.True(t, ans.IsCorrect)

	// Replacing the answer re-grades it.
	ans, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "C")
	require.NoError(t, err)
	assert.False(t, ans.IsCorrect)

	saved, err := f.answers.ListByAttempt(ctx, res.AttemptID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "C", saved[0].SelectedOption)
}

func TestSubmitAnswerRejectsForeignQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 201, "C")
	assert.ErrorIs(t, err, ErrQuestionNotInExam)
}

func TestSubmitAnswerAfterExpiryTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	f.timers.expire(res.AttemptID)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B")
	assert.ErrorIs(t, err, ErrTimeExpired)

	// The rejected write also settled the attempt.
	stored, err := f.attempts.GetByID(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptTimeout, stored.Status)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestSubmitScoresAndDeletesTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B") // correct, 4
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 102, "C") // wrong
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 103, "D") // correct, 2
	require.NoError(t, err)

	result, err := f.svc.Submit(ctx, res.AttemptID, 7)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptSubmitted, result.Status)
	assert.Equal(t, 6, result.Score)
	assert.Equal(t, 10, result.TotalMarks)
	assert.InDelta(t, 60.0, result.Percentage, 0.01)
	assert.Equal(t, 2, result.CorrectCount)
	assert.Equal(t, 3, result.TotalQuestions)

	assert.Contains(t, f.timers.deleted, res.AttemptID)
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B")
	require.NoError(t, err)

	first, err := f.svc.Submit(ctx, res.AttemptID, 7)
	require.NoError(t, err)

	// Grading data changing afterwards must not alter the stored result.
	f.questions.rows[101].CorrectOption = "A"

	second, err := f.svc.Submit(ctx, res.AttemptID, 7)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Status, second.Status)
}

func TestSubmitAfterExpiryRecordsTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B")
	require.NoError(t, err)

	f.timers.expire(res.AttemptID)

	result, err := f.svc.Submit(ctx, res.AttemptID, 7)
	require.NoError(t, err)

	// The timer store decides: deadline passed, so the outcome is timeout,
	// but answers saved in time still count.
	assert.Equal(t, model.AttemptTimeout, result.Status)
	assert.Equal(t, 4, result.Score)
}

func TestExtendTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Extend(ctx, res.AttemptID, 10*time.Minute))

	poll, err := f.svc.Poll(ctx, res.AttemptID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), poll.RemainingSeconds)
}

func TestExtendExpiredFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	f.timers.expire(res.AttemptID)

	err = f.svc.Extend(ctx, res.AttemptID, 10*time.Minute)
	assert.ErrorIs(t, err, timer.ErrTimerGone)
}

func TestQuestionsHideCorrectOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B")
	require.NoError(t, err)

	paper, err := f.svc.Questions(ctx, res.AttemptID, 7)
	require.NoError(t, err)

	assert.Len(t, paper.Questions, 3)
	assert.Equal(t, "B", paper.SavedAnswers[101])
}

func TestReviewRequiresTerminalAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, 7, 1, "")
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, res.AttemptID, 7)
	assert.ErrorIs(t, err, ErrNotCompleted)

	_, err = f.svc.SubmitAnswer(ctx, res.AttemptID, 7, 101, "B")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, res.AttemptID, 7)
	require.NoError(t, err)

	review, err := f.svc.Review(ctx, res.AttemptID, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, review.Result.Score)
	require.Len(t, review.Answers, 1)
	assert.True(t, review.Answers[0].IsCorrect)
}

func proSubs() []model.Subscription {
	now := time.Now()
	return []model.Subscription{{
		PlanKey:   "pro_monthly",
		Status:    model.SubscriptionActive,
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}}
}
