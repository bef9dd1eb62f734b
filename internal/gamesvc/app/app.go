// Package app assembles the game engine and its dependencies from config.
package app

import (
	"context"
	"fmt"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/config"
	"github.com/avvvet/wordclash-services/internal/gamesvc/db"
	"github.com/avvvet/wordclash-services/internal/gamesvc/engine"
	"github.com/avvvet/wordclash-services/internal/gamesvc/lock"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	"github.com/avvvet/wordclash-services/internal/gamesvc/turn"
	"github.com/avvvet/wordclash-services/internal/gamesvc/words"
	natscli "github.com/avvvet/wordclash-services/internal/nats"
	"github.com/avvvet/wordclash-services/internal/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type App struct {
	Pool   *pgxpool.Pool
	Cache  *cache.Redis
	Store  *store.PgStore
	Timer  *turn.Timer
	Mirror *mirror.Mirror
	Engine *engine.Engine
}

// New connects Postgres and Redis, migrates the schema and builds the engine.
func New(ctx context.Context, cfg config.Config, notifier engine.Notifier) (*App, error) {
	pool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		db.ClosePool()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Printf("pg connection established successfully")

	c, err := cache.NewRedis(cfg.RedisURL)
	if err != nil {
		db.ClosePool()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Printf("redis connection established successfully")

	bank, err := words.Default()
	if err != nil {
		db.ClosePool()
		c.Close()
		return nil, fmt.Errorf("load word bank: %w", err)
	}

	a := &App{
		Pool:   pool,
		Cache:  c,
		Store:  store.NewPgStore(pool),
		Timer:  turn.NewTimer(c, cfg.TurnGrace, nil),
		Mirror: mirror.New(c, cfg.MirrorTTL),
	}
	a.Engine = engine.New(engine.Options{
		Store:     a.Store,
		Timer:     a.Timer,
		Mirror:    a.Mirror,
		Validator: validator.NewFallback(validator.NewClient(cfg.ValidatorURL, c)),
		Words:     bank,
		Locker:    lock.NewCached(c, cfg.LockTTL, cfg.LockWait),
		Notifier:  notifier,
		Threshold: cfg.Threshold,
	})
	return a, nil
}

func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		log.Warnf("close redis: %s", err)
	}
	db.ClosePool()
}

// EventPublisher publishes engine events on the game events topic.
func EventPublisher(conn *nats.Conn) engine.NotifierFunc {
	return func(_ context.Context, ev comm.GameEvent) {
		if err := natscli.PublishJSON(conn, comm.TopicGameEvents, ev); err != nil {
			log.Errorf("publish %s for session %d: %s", ev.Type, ev.SessionID, err)
		}
	}
}
