package metadata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/housou/internal/circuitbreaker"
	"github.com/glefebvre/housou/internal/client"
	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/testutil"
)

type fakeResolver struct {
	mu       sync.Mutex
	calls    map[string]int
	queries  []client.MetadataQuery
	results  map[string]*models.UnifiedMetadata
	failures map[string]error
	block    chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		calls:    map[string]int{},
		results:  map[string]*models.UnifiedMetadata{},
		failures: map[string]error{},
	}
}

func (f *fakeResolver) FetchMetadata(ctx context.Context, q client.MetadataQuery) (*models.UnifiedMetadata, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[q.Title]++
	f.queries = append(f.queries, q)
	block := f.block
	md, err := f.results[q.Title], f.failures[q.Title]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, apperrors.FromContext(ctx, ctx.Err())
		}
	}
	return md, err
}

func (f *fakeResolver) Calls(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[title]
}

func TestQueryFor(t *testing.T) {
	item := testutil.NewItem("Frieren", testutil.WithSites(
		models.SiteRef{Site: "abema", ID: "26-100"},
		models.SiteRef{Site: "tmdb", ID: "tv/209867"},
	))

	q := QueryFor(item)
	assert.Equal(t, "Frieren", q.Title)
	assert.Equal(t, "tv/209867", q.TMDBID)
	assert.Equal(t, "2023-10-01T09:30:00Z", q.Begin)

	bare := QueryFor(testutil.NewItem("Other", testutil.WithBegin("")))
	assert.Empty(t, bare.TMDBID)
	assert.Empty(t, bare.Begin)
}

func TestPrefetcher_TriggerOnce(t *testing.T) {
	resolver := newFakeResolver()
	resolver.results["Frieren"] = testutil.NewMetadata()
	p := NewPrefetcher(resolver)
	defer p.Close()

	item := testutil.NewItem("Frieren")
	assert.True(t, p.Trigger(context.Background(), item))
	assert.False(t, p.Trigger(context.Background(), item))

	require.Eventually(t, func() bool {
		_, done := p.Get("Frieren")
		return done
	}, time.Second, 5*time.Millisecond)

	md, _ := p.Get("Frieren")
	require.NotNil(t, md)
	assert.Equal(t, 91, md.Score())

	assert.False(t, p.Trigger(context.Background(), item))
	assert.Equal(t, 1, resolver.Calls("Frieren"))
}

func TestPrefetcher_FailureIsSwallowedAndRemembered(t *testing.T) {
	resolver := newFakeResolver()
	resolver.failures["Broken"] = apperrors.New(apperrors.CodeExternalService, "fetch failed")
	p := NewPrefetcher(resolver)
	defer p.Close()

	item := testutil.NewItem("Broken")
	assert.Nil(t, p.Fetch(context.Background(), item))
	assert.Nil(t, p.Fetch(context.Background(), item))

	md, done := p.Get("Broken")
	assert.True(t, done)
	assert.Nil(t, md)
	assert.Equal(t, 1, resolver.Calls("Broken"))
}

func TestPrefetcher_BreakerRejectionCanBeRetried(t *testing.T) {
	for _, cause := range []error{circuitbreaker.ErrOpenState, circuitbreaker.ErrTooManyRequests} {
		t.Run(cause.Error(), func(t *testing.T) {
			resolver := newFakeResolver()
			resolver.failures["Frieren"] = apperrors.Wrap(cause, apperrors.CodeServiceUnavailable, "metadata service unavailable")
			p := NewPrefetcher(resolver)
			defer p.Close()

			item := testutil.NewItem("Frieren")
			assert.Nil(t, p.Fetch(context.Background(), item))
			_, done := p.Get("Frieren")
			assert.False(t, done)

			resolver.mu.Lock()
			delete(resolver.failures, "Frieren")
			resolver.results["Frieren"] = testutil.NewMetadata()
			resolver.mu.Unlock()

			assert.NotNil(t, p.Fetch(context.Background(), item))
			md, done := p.Get("Frieren")
			assert.True(t, done)
			assert.NotNil(t, md)
			assert.Equal(t, 2, resolver.Calls("Frieren"))
		})
	}
}

func TestPrefetcher_UnknownTitle(t *testing.T) {
	p := NewPrefetcher(newFakeResolver())
	defer p.Close()

	md, done := p.Get("never requested")
	assert.Nil(t, md)
	assert.False(t, done)
}

func TestPrefetcher_CancelledLookupCanBeRetried(t *testing.T) {
	resolver := newFakeResolver()
	resolver.block = make(chan struct{})
	p := NewPrefetcher(resolver)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, p.Fetch(ctx, testutil.NewItem("Frieren")))

	_, done := p.Get("Frieren")
	assert.False(t, done, "a cancelled lookup is forgotten")

	close(resolver.block)
	resolver.mu.Lock()
	resolver.block = nil
	resolver.results["Frieren"] = testutil.NewMetadata()
	resolver.mu.Unlock()

	assert.NotNil(t, p.Fetch(context.Background(), testutil.NewItem("Frieren")))
	assert.Equal(t, 2, resolver.Calls("Frieren"))
}

func TestPrefetcher_PrefetchBoundsConcurrency(t *testing.T) {
	resolver := newFakeResolver()
	p := NewPrefetcher(resolver)
	defer p.Close()

	var batch []models.AnimeItem
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		resolver.results[title] = testutil.NewMetadata()
		batch = append(batch, testutil.NewItem(title))
	}
	// duplicates share one lookup
	batch = append(batch, testutil.NewItem("a"))

	require.NoError(t, p.Prefetch(context.Background(), batch, 2))

	assert.LessOrEqual(t, resolver.maxInFlight.Load(), int32(2))
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		md, done := p.Get(title)
		assert.True(t, done, title)
		assert.NotNil(t, md, title)
		assert.Equal(t, 1, resolver.Calls(title), title)
	}
}

func TestPrefetcher_PrefetchStopsWithContext(t *testing.T) {
	resolver := newFakeResolver()
	resolver.block = make(chan struct{})
	p := NewPrefetcher(resolver)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Prefetch(ctx, []models.AnimeItem{testutil.NewItem("a"), testutil.NewItem("b")}, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
}

func TestPrefetcher_CloseCancelsBackgroundLookups(t *testing.T) {
	resolver := newFakeResolver()
	resolver.block = make(chan struct{})
	p := NewPrefetcher(resolver)

	assert.True(t, p.Trigger(context.Background(), testutil.NewItem("slow")))
	p.Close()

	assert.False(t, p.Trigger(context.Background(), testutil.NewItem("late")))
	assert.Nil(t, p.Fetch(context.Background(), testutil.NewItem("late")))
}

func TestWindow(t *testing.T) {
	col := func(titles ...string) []models.AnimeItem {
		out := make([]models.AnimeItem, 0, len(titles))
		for _, title := range titles {
			out = append(out, testutil.NewItem(title))
		}
		return out
	}
	columns := [][]models.AnimeItem{col("a", "d", "g"), col("b", "e"), col("c", "f")}

	var got []string
	for _, item := range Window(columns, 2) {
		got = append(got, item.Title)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)
	assert.Empty(t, Window(columns, 0))
	assert.Empty(t, Window(nil, 3))
}

func TestPrefetcher_ResolverErrorTypes(t *testing.T) {
	resolver := newFakeResolver()
	resolver.failures["plain"] = errors.New("boom")
	p := NewPrefetcher(resolver)
	defer p.Close()

	assert.Nil(t, p.Fetch(context.Background(), testutil.NewItem("plain")))
	_, done := p.Get("plain")
	assert.True(t, done)
}
