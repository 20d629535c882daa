package metadata

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/glefebvre/housou/internal/circuitbreaker"
	"github.com/glefebvre/housou/internal/client"
	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/models"
)

// DefaultConcurrency bounds Prefetch when no limit is given
const DefaultConcurrency = 4

// Resolver looks up extended metadata for a title
type Resolver interface {
	FetchMetadata(ctx context.Context, q client.MetadataQuery) (*models.UnifiedMetadata, error)
}

// QueryFor builds the lookup hints of an item: its title, the id of its "tmdb"
// site entry and its begin timestamp.
func QueryFor(item models.AnimeItem) client.MetadataQuery {
	return client.MetadataQuery{
		Title:  item.Title,
		TMDBID: item.TMDBID(),
		Begin:  item.Begin,
	}
}

type entry struct {
	done chan struct{}
	md   *models.UnifiedMetadata
}

// Prefetcher fetches metadata at most once per title and remembers the result.
// A failed lookup is logged and remembered as "no metadata". Cancelled lookups
// and lookups rejected by an open breaker are forgotten instead.
type Prefetcher struct {
	resolver Resolver
	logger   *logger.Logger

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
}

// NewPrefetcher creates a prefetcher backed by resolver
func NewPrefetcher(resolver Resolver) *Prefetcher {
	base, stop := context.WithCancel(context.Background())
	return &Prefetcher{
		resolver: resolver,
		logger:   logger.AppLogger(),
		base:     base,
		stop:     stop,
		entries:  make(map[string]*entry),
	}
}

// claim returns the entry of title and whether the caller must resolve it
func (p *Prefetcher) claim(title string) (*entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[title]; ok {
		return e, false
	}
	if p.base.Err() != nil {
		return nil, false
	}
	e := &entry{done: make(chan struct{})}
	p.entries[title] = e
	return e, true
}

func (p *Prefetcher) resolve(ctx context.Context, item models.AnimeItem, e *entry) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unregister := context.AfterFunc(p.base, cancel)
	defer unregister()

	md, err := p.resolver.FetchMetadata(ctx, QueryFor(item))
	if err != nil {
		if forget(err) {
			// a later trigger can try again
			p.mu.Lock()
			delete(p.entries, item.Title)
			p.mu.Unlock()
			close(e.done)
			return
		}
		p.logger.WithFields(map[string]interface{}{
			"title": item.Title,
			"code":  string(apperrors.GetErrorCode(err)),
		}).WarnContext(ctx, "Metadata lookup failed")
		md = nil
	}

	e.md = md
	close(e.done)
}

// forget reports whether err says nothing about the title itself
func forget(err error) bool {
	return apperrors.IsCancelled(err) ||
		errors.Is(err, circuitbreaker.ErrOpenState) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests)
}

// Trigger starts a background lookup for item unless one was already started.
// It reports whether a lookup was started.
func (p *Prefetcher) Trigger(ctx context.Context, item models.AnimeItem) bool {
	e, started := p.claim(item.Title)
	if !started {
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.resolve(context.WithoutCancel(ctx), item, e)
	}()
	return true
}

// Fetch returns the metadata of item, resolving it first if needed.
// It returns nil when nothing is known or ctx ends first.
func (p *Prefetcher) Fetch(ctx context.Context, item models.AnimeItem) *models.UnifiedMetadata {
	e, started := p.claim(item.Title)
	if e == nil {
		return nil
	}
	if started {
		p.resolve(ctx, item, e)
	}

	select {
	case <-e.done:
		return e.md
	case <-ctx.Done():
		return nil
	}
}

// Get returns the metadata of title and whether its lookup has finished
func (p *Prefetcher) Get(title string) (*models.UnifiedMetadata, bool) {
	p.mu.Lock()
	e, ok := p.entries[title]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}

	select {
	case <-e.done:
		return e.md, true
	default:
		return nil, false
	}
}

// Prefetch resolves every item with at most limit lookups in flight and waits
// for them. Lookup failures never fail the batch; only ctx ending does.
func (p *Prefetcher) Prefetch(ctx context.Context, items []models.AnimeItem, limit int) error {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		item := item
		g.Go(func() error {
			p.Fetch(gctx, item)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := apperrors.FromContext(ctx, err); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Close cancels outstanding lookups and waits for background ones to return
func (p *Prefetcher) Close() {
	p.stop()
	p.wg.Wait()
}

// Window returns the items of the first rows rows of a column layout, row by row.
// These are the cards close enough to the viewport to be prefetched.
func Window(columns [][]models.AnimeItem, rows int) []models.AnimeItem {
	var out []models.AnimeItem
	for r := 0; r < rows; r++ {
		for _, col := range columns {
			if r < len(col) {
				out = append(out, col[r])
			}
		}
	}
	return out
}
