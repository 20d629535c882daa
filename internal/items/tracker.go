package items

import (
	"context"
	"sync"

	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/models"
)

// Fetcher loads the items of a year/season pair
type Fetcher interface {
	FetchItems(ctx context.Context, year, season string) ([]models.AnimeItem, error)
}

// State is a snapshot of the tracker
type State struct {
	Items   []models.AnimeItem
	Loading bool
	Err     error
	Year    string
	Season  string
}

// Tracker keeps the items of the most recently requested year/season pair.
// A request superseded by a newer one is cancelled and its result is dropped.
type Tracker struct {
	fetcher Fetcher
	logger  *logger.Logger

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
	// changed is closed and replaced on every state update
	changed chan struct{}
	closed  bool
}

// NewTracker creates a tracker backed by fetcher
func NewTracker(fetcher Fetcher) *Tracker {
	base, stop := context.WithCancel(context.Background())
	return &Tracker{
		fetcher: fetcher,
		logger:  logger.AppLogger(),
		base:    base,
		stop:    stop,
		changed: make(chan struct{}),
	}
}

// Request asks for the items of year and season. An empty year is ignored and
// the previous state is held. Requesting the pair that is already loading or
// loaded does not issue a new fetch; a pair whose last fetch failed is retried.
func (t *Tracker) Request(ctx context.Context, year, season string) {
	if year == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	samePair := t.gen > 0 && t.state.Year == year && t.state.Season == season
	if samePair && (t.state.Loading || t.state.Err == nil) {
		return
	}

	if t.cancel != nil {
		t.cancel()
	}

	t.gen++
	gen := t.gen
	reqCtx, cancel := context.WithCancel(t.base)
	t.cancel = cancel

	t.state.Year = year
	t.state.Season = season
	t.state.Loading = true
	t.notifyLocked()

	log := t.logger.WithFields(map[string]interface{}{
		"year":       year,
		"season":     season,
		"generation": gen,
	})
	log.DebugContext(ctx, "Requesting items")

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()

		items, err := t.fetcher.FetchItems(reqCtx, year, season)

		t.mu.Lock()
		defer t.mu.Unlock()

		if gen != t.gen || reqCtx.Err() != nil || apperrors.IsCancelled(err) {
			log.DebugContext(ctx, "Dropping superseded items response")
			return
		}

		t.state.Loading = false
		if err != nil {
			// last known items stay visible next to the error
			t.state.Err = err
			log.ErrorContext(ctx, "Items fetch failed", err)
		} else {
			t.state.Items = items
			t.state.Err = nil
			log.WithFields(map[string]interface{}{"count": len(items)}).
				InfoContext(ctx, "Items loaded")
		}
		t.notifyLocked()
	}()
}

func (t *Tracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// State returns the current snapshot
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() State {
	s := t.state
	s.Items = append([]models.AnimeItem(nil), t.state.Items...)
	return s
}

// Wait blocks until no request is loading or ctx is done, then returns the snapshot
func (t *Tracker) Wait(ctx context.Context) (State, error) {
	for {
		t.mu.Lock()
		if !t.state.Loading || t.closed {
			s := t.snapshotLocked()
			t.mu.Unlock()
			return s, nil
		}
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			t.mu.Lock()
			s := t.snapshotLocked()
			t.mu.Unlock()
			return s, apperrors.FromContext(ctx, ctx.Err())
		}
	}
}

// Close cancels any in-flight request and waits for it to return.
// The state is left untouched.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.stop()
	t.notifyLocked()
	t.mu.Unlock()

	t.wg.Wait()
}
