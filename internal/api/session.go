package api

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/glefebvre/housou/internal/items"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/metadata"
	"github.com/glefebvre/housou/internal/selection"
)

// session is the state one browser keeps between page views
type session struct {
	id         string
	store      *selection.Store
	tracker    *items.Tracker
	prefetcher *metadata.Prefetcher

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *session) close() {
	s.tracker.Close()
	s.prefetcher.Close()
}

// sessions holds the live sessions by client id and drops the ones left idle.
// Each sweep also purges the stored selections not read within retention.
type sessions struct {
	db        *gorm.DB
	backend   Backend
	idle      time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger

	mu        sync.Mutex
	byID      map[string]*session
	lastSweep time.Time
	wg        sync.WaitGroup
}

func newSessions(db *gorm.DB, backend Backend, idle, retention time.Duration, now func() time.Time) *sessions {
	return &sessions{
		db:        db,
		backend:   backend,
		idle:      idle,
		retention: retention,
		now:       now,
		logger:    logger.AppLogger(),
		byID:      make(map[string]*session),
	}
}

func (r *sessions) newSession(clientID string) *session {
	return &session{
		id:         clientID,
		store:      selection.NewStore(r.db, clientID),
		tracker:    items.NewTracker(r.backend),
		prefetcher: metadata.NewPrefetcher(r.backend),
	}
}

// get returns the session of clientID, creating it on first use
func (r *sessions) get(clientID string) *session {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked(now)
	s, ok := r.byID[clientID]
	if !ok {
		s = r.newSession(clientID)
		r.byID[clientID] = s
	}
	s.touch(now)
	return s
}

// transient returns a session that is not kept. The caller closes it once the
// request is served. It serves clients that have not sent a cookie back yet.
func (r *sessions) transient(clientID string) *session {
	s := r.newSession(clientID)
	s.touch(r.now())
	return s
}

func (r *sessions) sweepLocked(now time.Time) {
	if r.idle <= 0 || now.Sub(r.lastSweep) < r.idle/2 {
		return
	}
	r.lastSweep = now

	if r.retention > 0 {
		cutoff := now.Add(-r.retention)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			n, err := selection.PurgeStale(context.Background(), r.db, cutoff)
			if err != nil {
				r.logger.Error("Failed to purge stale selections", err)
				return
			}
			if n > 0 {
				r.logger.WithFields(map[string]interface{}{"removed": n}).Info("Purged stale selections")
			}
		}()
	}

	for id, s := range r.byID {
		if s.idleSince(now) < r.idle {
			continue
		}
		delete(r.byID, id)
		r.wg.Add(1)
		s := s
		go func() {
			defer r.wg.Done()
			s.close()
		}()
	}
}

func (r *sessions) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// closeAll stops every session and waits for their background work
func (r *sessions) closeAll() {
	r.mu.Lock()
	all := r.byID
	r.byID = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	r.wg.Wait()
}
