package worker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mockprep/backend/internal/model"
	"github.com/mockprep/backend/internal/service"
	"github.com/mockprep/backend/internal/timer"
)

// ExpiryWorker listens for Redis keyspace expiry notifications on timer keys
// and settles the matching attempts as timed out. It is an optimization on
// top of lazy detection: attempts still settle correctly on the next client
// interaction if the worker is down or a notification is dropped.
type ExpiryWorker struct {
	rdb      *redis.Client
	attempts service.AttemptStore
	answers  service.AnswerStore
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(rdb *redis.Client, attempts service.AttemptStore, answers service.AnswerStore, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		rdb:      rdb,
		attempts: attempts,
		answers:  answers,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start subscribes to expiry events and processes them until ctx is done.
func (w *ExpiryWorker) Start(ctx context.Context) {
	// Expired-key events are off by default. Best effort: managed Redis may
	// refuse CONFIG SET, in which case the operator sets it server-side.
	if err := w.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		w.log.Warn().Err(err).Msg("Could not enable keyspace notifications")
	}

	sub := w.rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer sub.Close()

	w.log.Info().Msg("ExpiryWorker started")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				w.log.Warn().Msg("Notification channel closed")
				return
			}
			w.handleExpiredKey(ctx, msg.Payload)
		}
	}
}

func (w *ExpiryWorker) handleExpiredKey(ctx context.Context, key string) {
	if !strings.HasPrefix(key, timer.KeyPrefix) {
		return
	}

	attemptID, err := strconv.ParseInt(key[len(timer.KeyPrefix):], 10, 64)
	if err != nil {
		w.log.Warn().Str("key", key).Msg("Unparseable timer key")
		return
	}

	score := 0
	answers, err := w.answers.ListScoredByAttempt(ctx, attemptID)
	if err != nil {
		w.log.Error().Err(err).Int64("attempt_id", attemptID).Msg("Score lookup failed")
		return
	}
	for _, a := range answers {
		if a.IsCorrect {
			score += a.Marks
		}
	}

	// The status guard makes this a no-op when the attempt was already
	// submitted, so a late notification cannot overwrite a submission.
	updated, err := w.attempts.Finish(ctx, attemptID, model.AttemptTimeout, &score, time.Now())
	if err != nil {
		w.log.Error().Err(err).Int64("attempt_id", attemptID).Msg("Timeout settle failed")
		return
	}
	if updated {
		w.log.Info().Int64("attempt_id", attemptID).Int("score", score).Msg("Attempt settled after expiry")
	}
}
