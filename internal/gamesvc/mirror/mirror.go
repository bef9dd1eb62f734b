// Package mirror keeps a denormalized, read-optimized snapshot of each session
// in the ephemeral cache. The snapshot is rebuilt from the session store
// whenever it is missing.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
)

const indexKey = "game:sessions"

// MemberView is a member as shown to clients.
type MemberView struct {
	UserID    string `json:"user_id"`
	Lives     int    `json:"lives"`
	Active    bool   `json:"active"`
	JoinOrder int    `json:"join_order"`
	Left      bool   `json:"left,omitempty"`
}

// TeamView is a team with its members in join order.
type TeamView struct {
	ID          int64        `json:"id"`
	Slot        int          `json:"slot"`
	Name        string       `json:"name"`
	Color       string       `json:"color"`
	RoundsWon   int          `json:"rounds_won"`
	RevivalUsed bool         `json:"revival_used"`
	Members     []MemberView `json:"members"`
}

// Snapshot is the cached state of one session. The secret word is never included.
type Snapshot struct {
	SessionID     int64        `json:"session_id"`
	Language      string       `json:"language"`
	Phase         models.Phase `json:"phase"`
	Round         int          `json:"round"`
	RoundsToWin   int          `json:"rounds_to_win"`
	MaxLives      int          `json:"max_lives"`
	TurnSeconds   int          `json:"turn_seconds"`
	WinningTeamID *int64       `json:"winning_team_id,omitempty"`
	CurrentPlayer string       `json:"current_player,omitempty"`
	TurnDeadline  *time.Time   `json:"turn_deadline,omitempty"`
	Teams         []TeamView   `json:"teams"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// FromGraph builds a snapshot from a loaded session graph.
func FromGraph(g *models.SessionGraph) Snapshot {
	s := g.Session
	snap := Snapshot{
		SessionID:     s.ID,
		Language:      s.Language,
		Phase:         s.Phase,
		Round:         s.Round,
		RoundsToWin:   s.RoundsToWin,
		MaxLives:      s.MaxLives,
		TurnSeconds:   s.TurnSeconds,
		WinningTeamID: s.WinningTeamID,
		CurrentPlayer: s.CurrentPlayer,
		UpdatedAt:     s.UpdatedAt,
	}
	if !s.TurnDeadline.IsZero() {
		d := s.TurnDeadline
		snap.TurnDeadline = &d
	}
	for _, t := range g.Teams {
		tv := TeamView{
			ID:          t.ID,
			Slot:        t.Slot,
			Name:        t.Name,
			Color:       t.Color,
			RoundsWon:   t.RoundsWon,
			RevivalUsed: t.RevivalUsed,
			Members:     []MemberView{},
		}
		for _, m := range g.MembersOf(t.ID) {
			tv.Members = append(tv.Members, MemberView{
				UserID:    m.UserID,
				Lives:     m.Lives,
				Active:    m.Active,
				JoinOrder: m.JoinOrder,
				Left:      m.Left,
			})
		}
		snap.Teams = append(snap.Teams, tv)
	}
	return snap
}

type Mirror struct {
	cache cache.Cache
	ttl   time.Duration
}

func New(c cache.Cache, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Mirror{cache: c, ttl: ttl}
}

func stateKey(sid int64) string {
	return "game:" + strconv.FormatInt(sid, 10)
}

// Refresh replaces the snapshot for the graph's session.
func (m *Mirror) Refresh(ctx context.Context, g *models.SessionGraph) error {
	snap := FromGraph(g)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %d: %w", snap.SessionID, err)
	}

	fields := map[string]string{"state": string(data)}
	if err := m.cache.HSet(ctx, stateKey(snap.SessionID), fields, m.ttl); err != nil {
		return fmt.Errorf("write snapshot %d: %w", snap.SessionID, err)
	}
	if err := m.cache.SAdd(ctx, indexKey, strconv.FormatInt(snap.SessionID, 10)); err != nil {
		return fmt.Errorf("index snapshot %d: %w", snap.SessionID, err)
	}
	return nil
}

// Get returns the cached snapshot; ok is false when it is not mirrored.
func (m *Mirror) Get(ctx context.Context, sid int64) (Snapshot, bool, error) {
	fields, err := m.cache.HGetAll(ctx, stateKey(sid))
	if errors.Is(err, cache.ErrMiss) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}

	raw, ok := fields["state"]
	if !ok {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot %d: %w", sid, err)
	}
	return snap, true, nil
}

func (m *Mirror) Delete(ctx context.Context, sid int64) error {
	if err := m.cache.Delete(ctx, stateKey(sid)); err != nil {
		return err
	}
	return m.cache.SRem(ctx, indexKey, strconv.FormatInt(sid, 10))
}

// Reconcile removes snapshots whose session no longer exists in the store, and
// index entries whose snapshot has already expired. It returns how many
// sessions were dropped.
func (m *Mirror) Reconcile(ctx context.Context, exists func(context.Context, int64) (bool, error)) (int, error) {
	ids, err := m.cache.SMembers(ctx, indexKey)
	if err != nil {
		return 0, fmt.Errorf("list mirrored sessions: %w", err)
	}

	removed := 0
	for _, raw := range ids {
		sid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			if err := m.cache.SRem(ctx, indexKey, raw); err != nil {
				return removed, fmt.Errorf("drop bad index entry %q: %w", raw, err)
			}
			continue
		}

		ok, err := exists(ctx, sid)
		if err != nil {
			return removed, fmt.Errorf("check session %d: %w", sid, err)
		}
		if ok {
			_, err := m.cache.HGet(ctx, stateKey(sid), "state")
			if errors.Is(err, cache.ErrMiss) {
				if err := m.cache.SRem(ctx, indexKey, raw); err != nil {
					return removed, fmt.Errorf("unindex expired snapshot %d: %w", sid, err)
				}
			} else if err != nil {
				return removed, fmt.Errorf("read snapshot %d: %w", sid, err)
			}
			continue
		}

		if err := m.Delete(ctx, sid); err != nil {
			return removed, fmt.Errorf("drop orphan %d: %w", sid, err)
		}
		removed++
	}
	return removed, nil
}
