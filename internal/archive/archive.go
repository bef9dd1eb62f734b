// Package archive keeps a summary of every finished match in MongoDB.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/db"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "match_archive"

type TeamSummary struct {
	TeamID      int64    `bson:"team_id" json:"team_id"`
	Slot        int      `bson:"slot" json:"slot"`
	Name        string   `bson:"name" json:"name"`
	RoundsWon   int      `bson:"rounds_won" json:"rounds_won"`
	RevivalUsed bool     `bson:"revival_used" json:"revival_used"`
	Players     []string `bson:"players" json:"players"`
}

type RoundSummary struct {
	Round         int       `bson:"round" json:"round"`
	WinningTeamID int64     `bson:"winning_team_id" json:"winning_team_id"`
	Guesses       int       `bson:"guesses" json:"guesses"`
	CompletedAt   time.Time `bson:"completed_at" json:"completed_at"`
}

// MatchSummary is the archived record of one finished match.
type MatchSummary struct {
	SessionID        int64          `bson:"session_id" json:"session_id"`
	Outcome          models.Phase   `bson:"outcome" json:"outcome"`
	WinningTeamID    *int64         `bson:"winning_team_id,omitempty" json:"winning_team_id,omitempty"`
	Language         string         `bson:"language" json:"language"`
	RoundsPlayed     int            `bson:"rounds_played" json:"rounds_played"`
	Teams            []TeamSummary  `bson:"teams" json:"teams"`
	Rounds           []RoundSummary `bson:"rounds" json:"rounds"`
	TotalGuesses     int            `bson:"total_guesses" json:"total_guesses"`
	CorrectGuesses   int            `bson:"correct_guesses" json:"correct_guesses"`
	HeuristicGuesses int            `bson:"heuristic_guesses" json:"heuristic_guesses"`
	StartedAt        time.Time      `bson:"started_at" json:"started_at"`
	FinishedAt       time.Time      `bson:"finished_at" json:"finished_at"`
	ArchivedAt       time.Time      `bson:"archived_at" json:"archived_at"`
	ExpiresAt        *time.Time     `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// Source is the read side of the session store.
type Source interface {
	LoadGraph(ctx context.Context, id int64) (*models.SessionGraph, error)
	ListGuesses(ctx context.Context, sessionID int64, round int) ([]*models.WordGuess, error)
	ListRounds(ctx context.Context, sessionID int64) ([]*models.RoundResult, error)
}

// Sink persists summaries. Saving the same session twice replaces the record.
type Sink interface {
	Save(ctx context.Context, s *MatchSummary) error
}

type Archiver struct {
	source    Source
	sink      Sink
	retention time.Duration
	now       func() time.Time
}

// NewArchiver builds an archiver. A zero retention keeps summaries forever.
func NewArchiver(src Source, sink Sink, retention time.Duration) *Archiver {
	return &Archiver{source: src, sink: sink, retention: retention, now: time.Now}
}

// Summarize builds the summary of a finished session from the store.
func (a *Archiver) Summarize(ctx context.Context, sid int64) (*MatchSummary, error) {
	g, err := a.source.LoadGraph(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", sid, err)
	}
	if !g.Session.Phase.Terminal() {
		return nil, fmt.Errorf("session %d is still %s", sid, g.Session.Phase)
	}
	rounds, err := a.source.ListRounds(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("list rounds of session %d: %w", sid, err)
	}
	guesses, err := a.source.ListGuesses(ctx, sid, 0)
	if err != nil {
		return nil, fmt.Errorf("list guesses of session %d: %w", sid, err)
	}

	s := g.Session
	sum := &MatchSummary{
		SessionID:     s.ID,
		Outcome:       s.Phase,
		WinningTeamID: s.WinningTeamID,
		Language:      s.Language,
		RoundsPlayed:  s.Round,
		StartedAt:     s.CreatedAt,
		FinishedAt:    s.UpdatedAt,
		ArchivedAt:    a.now().UTC(),
	}
	if a.retention > 0 {
		exp := sum.ArchivedAt.Add(a.retention)
		sum.ExpiresAt = &exp
	}

	for _, t := range g.Teams {
		ts := TeamSummary{TeamID: t.ID, Slot: t.Slot, Name: t.Name, RoundsWon: t.RoundsWon, RevivalUsed: t.RevivalUsed}
		for _, m := range g.MembersOf(t.ID) {
			ts.Players = append(ts.Players, m.UserID)
		}
		sum.Teams = append(sum.Teams, ts)
	}

	perRound := make(map[int]int)
	for _, gs := range guesses {
		sum.TotalGuesses++
		perRound[gs.Round]++
		if gs.Correct {
			sum.CorrectGuesses++
		}
		if gs.Heuristic {
			sum.HeuristicGuesses++
		}
	}
	for _, r := range rounds {
		sum.Rounds = append(sum.Rounds, RoundSummary{
			Round:         r.Round,
			WinningTeamID: r.WinningTeamID,
			Guesses:       perRound[r.Round],
			CompletedAt:   r.CompletedAt,
		})
	}
	return sum, nil
}

// Handle archives the session of a match-ending event and ignores the rest.
func (a *Archiver) Handle(ctx context.Context, ev comm.GameEvent) (bool, error) {
	if ev.Type != comm.EventMatchCompleted && ev.Type != comm.EventMatchAbandoned {
		return false, nil
	}
	sum, err := a.Summarize(ctx, ev.SessionID)
	if err != nil {
		return false, err
	}
	if err := a.sink.Save(ctx, sum); err != nil {
		return false, fmt.Errorf("save summary of session %d: %w", ev.SessionID, err)
	}
	return true, nil
}

// QueueSubscribe consumes game events; archive instances share the queue.
func (a *Archiver) QueueSubscribe(conn *nats.Conn, topic, queueGroup string) (*nats.Subscription, error) {
	return conn.QueueSubscribe(topic, queueGroup, func(msg *nats.Msg) {
		var ev comm.GameEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Errorf("archive: bad event: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		done, err := a.Handle(ctx, ev)
		if err != nil {
			log.WithFields(log.Fields{"session": ev.SessionID, "event": ev.Type}).Errorf("archive: %s", err)
			return
		}
		if done {
			log.Infof("archive: session %d archived (%s)", ev.SessionID, ev.Type)
		}
	})
}

// MongoSink upserts summaries keyed by session id.
type MongoSink struct {
	coll *mongo.Collection
}

func NewMongoSink(coll *mongo.Collection) *MongoSink {
	return &MongoSink{coll: coll}
}

// EnsureIndexes creates the session id and expiry indexes.
func (m *MongoSink) EnsureIndexes(ctx context.Context) error {
	if err := db.CreateUniqueIndex(ctx, m.coll, "session_id"); err != nil {
		return fmt.Errorf("session_id index: %w", err)
	}
	if err := db.CreateTTLIndexForCollection(ctx, m.coll); err != nil {
		return fmt.Errorf("expires_at index: %w", err)
	}
	return nil
}

func (m *MongoSink) Save(ctx context.Context, s *MatchSummary) error {
	_, err := m.coll.ReplaceOne(ctx,
		bson.M{"session_id": s.SessionID},
		s,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Get returns the archived summary of a session.
func (m *MongoSink) Get(ctx context.Context, sid int64) (*MatchSummary, error) {
	var s MatchSummary
	if err := m.coll.FindOne(ctx, bson.M{"session_id": sid}).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
