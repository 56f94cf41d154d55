package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// KeyPrefix namespaces timer keys away from unrelated entries sharing the
// same Redis instance.
const KeyPrefix = "exam:timer:"

// Sentinel TTL durations surfaced by go-redis for the raw Redis replies.
const (
	ttlMissing  = time.Duration(-2) // key does not exist
	ttlNoExpiry = time.Duration(-1) // key exists but carries no expiry
)

// ErrTimerGone is returned by ExtendTimer when the timer has already expired
// or was never created. An expired timer is never resurrected.
var ErrTimerGone = errors.New("timer expired or missing")

// State classifies a timer read.
type State int

const (
	// StateRunning means the timer exists and has time left.
	StateRunning State = iota
	// StateExpired means the key is absent: the timer ran out, was deleted,
	// or was never created. Absence is the expiry signal.
	StateExpired
	// StateCorrupted means the key exists without a TTL. This must never
	// happen in normal operation; it is an operational alarm, never
	// interpreted as running or as a normal timeout.
	StateCorrupted
)

// String returns a log-friendly name for the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExpired:
		return "expired"
	case StateCorrupted:
		return "corrupted"
	}
	return "unknown"
}

// Remaining is the three-way business result of a timer read. Transport
// failures are reported separately as errors; they never collapse into
// StateExpired, since that would time out a live exam on a network blip.
type Remaining struct {
	State   State
	Seconds int64
}

// Key returns the Redis key for an attempt's timer.
func Key(attemptID int64) string {
	return fmt.Sprintf("%s%d", KeyPrefix, attemptID)
}

// Manager owns all Redis timer operations. It is a stateless mediator: the
// TTL clock inside Redis is the single source of truth for remaining time,
// and the manager only translates between attempt IDs and timer keys.
type Manager struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewManager creates a timer Manager on the given Redis client.
func NewManager(rdb *redis.Client, log zerolog.Logger) *Manager {
	return &Manager{
		rdb: rdb,
		log: log.With().Str("component", "timer").Logger(),
	}
}

// CreateTimer atomically sets the timer key with an expiry of exactly
// duration. The stored value is an informational snapshot of the duration in
// seconds; authoritative timing comes from the key's TTL, not the value.
func (m *Manager) CreateTimer(ctx context.Context, attemptID int64, duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("create timer %d: non-positive duration %s", attemptID, duration)
	}

	// SET with EX sets value and expiry in one round trip, so a timer can
	// never exist without a TTL.
	if err := m.rdb.Set(ctx, Key(attemptID), int64(duration.Seconds()), duration).Err(); err != nil {
		return fmt.Errorf("create timer %d: %w", attemptID, err)
	}

	m.log.Info().
		Int64("attempt_id", attemptID).
		Dur("duration", duration).
		Msg("Timer created")
	return nil
}

// Remaining reads the timer's TTL and classifies it. A transport failure is
// returned as the error with a zero Remaining; callers must not treat it as
// any business state.
func (m *Manager) Remaining(ctx context.Context, attemptID int64) (Remaining, error) {
	ttl, err := m.rdb.TTL(ctx, Key(attemptID)).Result()
	if err != nil {
		return Remaining{}, fmt.Errorf("read timer %d: %w", attemptID, err)
	}

	switch ttl {
	case ttlMissing:
		return Remaining{State: StateExpired}, nil
	case ttlNoExpiry:
		m.log.Error().
			Int64("attempt_id", attemptID).
			Msg("Timer key exists without TTL")
		return Remaining{State: StateCorrupted}, nil
	}

	return Remaining{State: StateRunning, Seconds: int64(ttl / time.Second)}, nil
}

// IsExpired reports whether the timer is in the expired state. It is true
// only for StateExpired: a corrupted timer is not expired, and a transport
// failure propagates as the error, never as a boolean.
func (m *Manager) IsExpired(ctx context.Context, attemptID int64) (bool, error) {
	r, err := m.Remaining(ctx, attemptID)
	if err != nil {
		return false, err
	}
	return r.State == StateExpired, nil
}

// DeleteTimer removes the timer key. Deleting an already-gone timer is not
// an error; the false return is kept for observability.
func (m *Manager) DeleteTimer(ctx context.Context, attemptID int64) (bool, error) {
	n, err := m.rdb.Del(ctx, Key(attemptID)).Result()
	if err != nil {
		return false, fmt.Errorf("delete timer %d: %w", attemptID, err)
	}
	if n == 0 {
		m.log.Warn().
			Int64("attempt_id", attemptID).
			Msg("Timer already gone on delete")
		return false, nil
	}

	m.log.Info().Int64("attempt_id", attemptID).Msg("Timer deleted")
	return true, nil
}

// ExtendTimer adds extra time to a running timer, e.g. for accommodations.
// It fails with ErrTimerGone if the timer is absent or has non-positive
// remaining time, and never creates a new key.
func (m *Manager) ExtendTimer(ctx context.Context, attemptID int64, extra time.Duration) error {
	if extra <= 0 {
		return fmt.Errorf("extend timer %d: non-positive extension %s", attemptID, extra)
	}

	key := Key(attemptID)
	ttl, err := m.rdb.TTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("extend timer %d: %w", attemptID, err)
	}
	if ttl <= 0 {
		// Missing, corrupted, or already at zero: refuse rather than
		// resurrect.
		m.log.Warn().
			Int64("attempt_id", attemptID).
			Msg("Refusing to extend absent or exhausted timer")
		return ErrTimerGone
	}

	newTTL := ttl + extra
	ok, err := m.rdb.Expire(ctx, key, newTTL).Result()
	if err != nil {
		return fmt.Errorf("extend timer %d: %w", attemptID, err)
	}
	if !ok {
		// The key vanished between TTL and EXPIRE.
		return ErrTimerGone
	}

	m.log.Info().
		Int64("attempt_id", attemptID).
		Dur("extra", extra).
		Dur("new_ttl", newTTL).
		Msg("Timer extended")
	return nil
}
