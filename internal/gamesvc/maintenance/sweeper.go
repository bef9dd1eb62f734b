// Package maintenance runs the periodic sweep that applies turn timeouts no
// request triggered and drops mirror entries for sessions that are gone.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/wordclash-services/internal/gamesvc/engine"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	"github.com/avvvet/wordclash-services/internal/gamesvc/turn"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// TimeoutHandler applies the timeout penalty for one session.
type TimeoutHandler interface {
	HandleTimeout(ctx context.Context, sid int64) (bool, error)
}

type Sweeper struct {
	handler TimeoutHandler
	timer   *turn.Timer
	mirror  *mirror.Mirror
	store   store.SessionStore
	now     func() time.Time

	// Concurrency bounds how many sessions are handled at once.
	Concurrency int
}

// Report summarizes one sweep.
type Report struct {
	Expired   int
	Penalized int
	Failed    int
	Cleared   int
	Orphans   int
}

func NewSweeper(h TimeoutHandler, timer *turn.Timer, m *mirror.Mirror, s store.SessionStore, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{handler: h, timer: timer, mirror: m, store: s, now: now, Concurrency: 8}
}

// expired merges sessions whose cached deadline passed with those whose
// stored deadline passed, so a lost cache entry still gets its penalty.
func (s *Sweeper) expired(ctx context.Context) ([]int64, error) {
	seen := make(map[int64]struct{})

	cached, cacheErr := s.timer.Expired(ctx)
	if cacheErr != nil {
		log.Warnf("sweep: scan cached deadlines: %s", cacheErr)
	}
	for _, id := range cached {
		seen[id] = struct{}{}
	}

	stored, err := s.store.ListOverdueTurns(ctx, s.now())
	if err != nil {
		if cacheErr != nil {
			return nil, errors.Join(cacheErr, err)
		}
		log.Warnf("sweep: list overdue turns: %s", err)
	}
	for _, id := range stored {
		seen[id] = struct{}{}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Sweep applies pending timeouts, prunes the timer, then reconciles the mirror.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var rep Report

	ids, err := s.expired(ctx)
	if err != nil {
		return rep, fmt.Errorf("find expired turns: %w", err)
	}
	rep.Expired = len(ids)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(max(s.Concurrency, 1))
	for _, sid := range ids {
		sid := sid
		g.Go(func() error {
			applied, err := s.handler.HandleTimeout(ctx, sid)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if applied {
					rep.Penalized++
				}
				return nil
			case engine.Expected(err):
				log.Debugf("sweep: session %d: %s", sid, err)
				return nil
			}
			rep.Failed++
			log.WithFields(log.Fields{"session": sid}).Errorf("sweep: handle timeout: %s", err)
			return fmt.Errorf("session %d: %w", sid, err)
		})
	}
	handleErr := g.Wait()

	cleared, err := s.timer.CleanupExpired(ctx)
	if err != nil {
		log.Warnf("sweep: cleanup expired turns: %s", err)
	}
	rep.Cleared = cleared

	orphans, err := s.mirror.Reconcile(ctx, s.store.Exists)
	if err != nil {
		log.Warnf("sweep: reconcile mirror: %s", err)
	}
	rep.Orphans = orphans

	return rep, handleErr
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweep: stopped")
			return
		case <-ticker.C:
			rep, err := s.Sweep(ctx)
			if err != nil {
				log.Errorf("sweep: %s", err)
			}
			if rep.Expired > 0 || rep.Cleared > 0 || rep.Orphans > 0 {
				log.Infof("sweep: expired=%d penalized=%d failed=%d cleared=%d orphans=%d",
					rep.Expired, rep.Penalized, rep.Failed, rep.Cleared, rep.Orphans)
			}
		}
	}
}
