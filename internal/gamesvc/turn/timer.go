// Package turn owns the per-session turn deadline and current-player pointer.
//
// Entries live in the ephemeral cache:
//
//	turn:{sid}       hash {player, deadline (unix ms), seq}, TTL = turn + grace
//	turn:{sid}:seq   INCR counter identifying each started turn
//	turn:deadlines   sorted set sid -> deadline, scanned by the maintenance sweep
//
// Absence of an entry means no active turn. The timer never applies game
// penalties; that is the engine's job.
package turn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
)

const deadlinesKey = "turn:deadlines"

// Turn is the cached view of a running turn.
type Turn struct {
	Player   string
	Deadline time.Time
	Seq      int64
}

type Timer struct {
	cache cache.Cache
	grace time.Duration
	now   func() time.Time
}

// NewTimer builds a Timer. Grace is added to the turn length when computing
// the cache TTL so an uncleared entry expires on its own.
func NewTimer(c cache.Cache, grace time.Duration, now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Timer{cache: c, grace: grace, now: now}
}

func turnKey(sid int64) string {
	return "turn:" + strconv.FormatInt(sid, 10)
}

func seqKey(sid int64) string {
	return turnKey(sid) + ":seq"
}

func member(sid int64) string {
	return strconv.FormatInt(sid, 10)
}

// StartTurn overwrites any prior turn for the session and returns the new deadline.
func (t *Timer) StartTurn(ctx context.Context, sid int64, userID string, seconds int) (time.Time, error) {
	return t.startAt(ctx, sid, userID, t.now().Add(time.Duration(seconds)*time.Second))
}

// Sync brings the cached turn in line with a durable turn pointer. A fresh
// turn always gets a new seq. Otherwise, when the cache already holds a turn
// for the same player, the seq is kept and only the deadline moves.
func (t *Timer) Sync(ctx context.Context, sid int64, userID string, deadline time.Time, fresh bool) error {
	if !fresh {
		cur, ok, err := t.Current(ctx, sid)
		if err != nil {
			return err
		}
		if ok && cur.Player == userID {
			if cur.Deadline.UnixMilli() == deadline.UnixMilli() {
				return nil
			}
			return t.setDeadline(ctx, sid, deadline)
		}
	}
	_, err := t.startAt(ctx, sid, userID, deadline)
	return err
}

func (t *Timer) startAt(ctx context.Context, sid int64, userID string, deadline time.Time) (time.Time, error) {
	seq, err := t.cache.Incr(ctx, seqKey(sid), 24*time.Hour)
	if err != nil {
		return time.Time{}, fmt.Errorf("turn seq for session %d: %w", sid, err)
	}

	// drop any stale fields before writing the new turn
	if err := t.cache.Delete(ctx, turnKey(sid)); err != nil {
		return time.Time{}, fmt.Errorf("clear turn for session %d: %w", sid, err)
	}

	fields := map[string]string{
		"player":   userID,
		"deadline": strconv.FormatInt(deadline.UnixMilli(), 10),
		"seq":      strconv.FormatInt(seq, 10),
	}
	if err := t.cache.HSet(ctx, turnKey(sid), fields, t.ttl(deadline)); err != nil {
		return time.Time{}, fmt.Errorf("start turn for session %d: %w", sid, err)
	}
	if err := t.cache.ZAdd(ctx, deadlinesKey, member(sid), float64(deadline.UnixMilli())); err != nil {
		return time.Time{}, fmt.Errorf("index turn for session %d: %w", sid, err)
	}

	return time.UnixMilli(deadline.UnixMilli()), nil
}

// ttl keeps the entry alive a little past its deadline.
func (t *Timer) ttl(deadline time.Time) time.Duration {
	ttl := deadline.Sub(t.now()) + t.grace
	if ttl < t.grace {
		ttl = t.grace
	}
	return ttl
}

// Current returns the running turn. ok is false when no turn is recorded.
func (t *Timer) Current(ctx context.Context, sid int64) (Turn, bool, error) {
	fields, err := t.cache.HGetAll(ctx, turnKey(sid))
	if errors.Is(err, cache.ErrMiss) {
		return Turn{}, false, nil
	}
	if err != nil {
		return Turn{}, false, fmt.Errorf("read turn for session %d: %w", sid, err)
	}

	ms, err := strconv.ParseInt(fields["deadline"], 10, 64)
	if err != nil || fields["player"] == "" {
		return Turn{}, false, nil
	}
	seq, _ := strconv.ParseInt(fields["seq"], 10, 64)

	return Turn{Player: fields["player"], Deadline: time.UnixMilli(ms), Seq: seq}, true, nil
}

// GetRemainingTime returns the time left in the turn, zero once expired.
func (t *Timer) GetRemainingTime(ctx context.Context, sid int64) (time.Duration, bool, error) {
	cur, ok, err := t.Current(ctx, sid)
	if err != nil || !ok {
		return 0, false, err
	}
	left := cur.Deadline.Sub(t.now())
	if left < 0 {
		left = 0
	}
	return left, true, nil
}

// IsExpired compares the stored deadline with the clock. It does not mutate state.
func (t *Timer) IsExpired(ctx context.Context, sid int64) (bool, error) {
	cur, ok, err := t.Current(ctx, sid)
	if err != nil || !ok {
		return false, err
	}
	return !t.now().Before(cur.Deadline), nil
}

func (t *Timer) GetCurrentPlayer(ctx context.Context, sid int64) (string, bool, error) {
	cur, ok, err := t.Current(ctx, sid)
	if err != nil || !ok {
		return "", false, err
	}
	return cur.Player, true, nil
}

// ExtendTurn pushes the deadline back by extra seconds, keeping the turn's
// seq. ok is false when no turn is running.
func (t *Timer) ExtendTurn(ctx context.Context, sid int64, extraSeconds int) (time.Time, bool, error) {
	cur, ok, err := t.Current(ctx, sid)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	deadline := cur.Deadline.Add(time.Duration(extraSeconds) * time.Second)
	if err := t.setDeadline(ctx, sid, deadline); err != nil {
		return time.Time{}, false, err
	}
	return deadline, true, nil
}

func (t *Timer) setDeadline(ctx context.Context, sid int64, deadline time.Time) error {
	fields := map[string]string{"deadline": strconv.FormatInt(deadline.UnixMilli(), 10)}
	if err := t.cache.HSet(ctx, turnKey(sid), fields, t.ttl(deadline)); err != nil {
		return fmt.Errorf("extend turn for session %d: %w", sid, err)
	}
	if err := t.cache.ZAdd(ctx, deadlinesKey, member(sid), float64(deadline.UnixMilli())); err != nil {
		return fmt.Errorf("index turn for session %d: %w", sid, err)
	}
	return nil
}

// EndTurn clears the turn for the session.
func (t *Timer) EndTurn(ctx context.Context, sid int64) error {
	if err := t.cache.Delete(ctx, turnKey(sid)); err != nil {
		return fmt.Errorf("end turn for session %d: %w", sid, err)
	}
	if err := t.cache.ZRem(ctx, deadlinesKey, member(sid)); err != nil {
		return fmt.Errorf("unindex turn for session %d: %w", sid, err)
	}
	return nil
}

// Expired lists sessions whose indexed deadline has passed, without touching them.
func (t *Timer) Expired(ctx context.Context) ([]int64, error) {
	members, err := t.cache.ZRangeByScore(ctx, deadlinesKey, math.Inf(-1), float64(t.now().UnixMilli()), 0)
	if err != nil {
		return nil, fmt.Errorf("scan expired turns: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CleanupExpired clears every turn whose deadline has passed and returns how
// many were cleared. Entries re-started since the scan are left alone.
func (t *Timer) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := t.Expired(ctx)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, sid := range ids {
		cur, ok, err := t.Current(ctx, sid)
		if err != nil {
			return cleared, err
		}
		if ok && t.now().Before(cur.Deadline) {
			continue
		}
		if err := t.EndTurn(ctx, sid); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}
