package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"constituency-streets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeClock advances its own time whenever something sleeps on it, so
// backoff and limiter waits resolve instantly and deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// MockAddressClient is a mock implementation of AddressClient
type MockAddressClient struct {
	mock.Mock
}

func (m *MockAddressClient) Query(ctx context.Context, fragment string) ([]byte, error) {
	args := m.Called(ctx, fragment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string]models.CacheEntry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]models.CacheEntry)}
}

func (s *memStore) GetCacheEntry(_ context.Context, key string) (models.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *memStore) PutCacheEntry(_ context.Context, entry models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.Key]; !exists {
		s.entries[entry.Key] = entry
	}
	return nil
}

func newTestCache(t *testing.T, client AddressClient, store Store, opts Options) *Cache {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = newFakeClock()
	}
	c := New(store, client, opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c.Start(ctx)
	return c
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "oak road petersfield", expected: "OAK ROAD PETERSFIELD"},
		{name: "extra spaces", input: "  Oak   Road  ", expected: "OAK ROAD"},
		{name: "already canonical", input: "OAK ROAD", expected: "OAK ROAD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.input))
		})
	}
}

func TestFetch_AtMostOncePerKey(t *testing.T) {
	client := new(MockAddressClient)
	client.On("Query", mock.Anything, "OAK ROAD").Return([]byte(`{"suggestions":[]}`), nil).Once()

	c := newTestCache(t, client, newMemStore(), Options{})

	first, err := c.Fetch(context.Background(), "Oak Road")
	require.NoError(t, err)

	// Second call for an equivalent fragment is served from the store.
	second, err := c.Fetch(context.Background(), "  oak   road ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	client.AssertNumberOfCalls(t, "Query", 1)
}

func TestFetch_ConcurrentCallersShareOneRequest(t *testing.T) {
	client := new(MockAddressClient)
	client.On("Query", mock.Anything, "OAK ROAD").Return([]byte(`ok`), nil).Once()

	c := newTestCache(t, client, newMemStore(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := c.Fetch(context.Background(), "Oak Road")
			assert.NoError(t, err)
			assert.Equal(t, []byte(`ok`), payload)
		}()
	}
	wg.Wait()

	client.AssertNumberOfCalls(t, "Query", 1)
}

func TestFetch_JoinerSurvivesCreatorCancel(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	client := new(MockAddressClient)
	client.On("Query", mock.Anything, "SLOW KEY").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]byte(`slow`), nil).Once()
	client.On("Query", mock.Anything, "QUEUED KEY").Return([]byte(`queued`), nil).Once()
	client.On("Query", mock.Anything, "SHARED KEY").Return([]byte(`shared`), nil).Once()

	c := newTestCache(t, client, newMemStore(), Options{QueueSize: 1})

	background := make(chan error, 2)

	// Occupy the dispatcher, then fill the one-slot queue.
	go func() {
		_, err := c.Fetch(context.Background(), "slow key")
		background <- err
	}()
	<-started
	go func() {
		_, err := c.Fetch(context.Background(), "queued key")
		background <- err
	}()
	require.Eventually(t, func() bool { return len(c.queue) == 1 }, time.Second, 5*time.Millisecond)

	// The creating caller now blocks on the full queue.
	ctxCreator, cancelCreator := context.WithCancel(context.Background())
	creatorErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxCreator, "shared key")
		creatorErr <- err
	}()
	sharedWaiters := func(n int) func() bool {
		return func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return len(c.waiters["SHARED KEY"]) == n
		}
	}
	require.Eventually(t, sharedWaiters(1), time.Second, 5*time.Millisecond)

	// A second caller joins the in-flight key, then the creator cancels.
	joinerPayload := make(chan []byte, 1)
	joinerErr := make(chan error, 1)
	go func() {
		payload, err := c.Fetch(context.Background(), "shared key")
		joinerPayload <- payload
		joinerErr <- err
	}()
	require.Eventually(t, sharedWaiters(2), time.Second, 5*time.Millisecond)

	cancelCreator()
	require.ErrorIs(t, <-creatorErr, context.Canceled)

	// Once the dispatcher drains, the joiner still gets the result.
	close(release)
	select {
	case payload := <-joinerPayload:
		assert.Equal(t, []byte(`shared`), payload)
		assert.NoError(t, <-joinerErr)
	case <-time.After(2 * time.Second):
		t.Fatal("joined caller never received the shared result")
	}

	assert.NoError(t, <-background)
	assert.NoError(t, <-background)
	client.AssertExpectations(t)
}

func TestFetch_StoreHitSkipsNetwork(t *testing.T) {
	store := newMemStore()
	store.entries["OAK ROAD"] = models.CacheEntry{Key: "OAK ROAD", Payload: []byte(`persisted`)}

	client := new(MockAddressClient)
	c := newTestCache(t, client, store, Options{})

	payload, err := c.Fetch(context.Background(), "Oak Road")
	require.NoError(t, err)
	assert.Equal(t, []byte(`persisted`), payload)
	client.AssertNumberOfCalls(t, "Query", 0)
}

func TestFetch_RetriesRateLimitThenSucceeds(t *testing.T) {
	client := new(MockAddressClient)
	client.On("Query", mock.Anything, "OAK ROAD").Return(nil, ErrRateLimited).Twice()
	client.On("Query", mock.Anything, "OAK ROAD").Return([]byte(`ok`), nil).Once()

	c := newTestCache(t, client, newMemStore(), Options{MaxAttempts: 5})

	payload, err := c.Fetch(context.Background(), "Oak Road")
	require.NoError(t, err)
	assert.Equal(t, []byte(`ok`), payload)
	client.AssertNumberOfCalls(t, "Query", 3)
}

func TestFetch_FailsAfterRetryBudget(t *testing.T) {
	client := new(MockAddressClient)
	client.On("Query", mock.Anything, "OAK ROAD").Return(nil, ErrRateLimited)

	c := newTestCache(t, client, newMemStore(), Options{MaxAttempts: 3})

	_, err := c.Fetch(context.Background(), "Oak Road")
	assert.ErrorIs(t, err, ErrEnrichmentFailed)
	client.AssertNumberOfCalls(t, "Query", 3)
}

func TestFetch_NonRateLimitErrorDoesNotRetry(t *testing.T) {
	client := new(MockAddressClient)
	client.On("Query", mock.Anything, "OAK ROAD").Return(nil, errors.New("boom"))

	c := newTestCache(t, client, newMemStore(), Options{MaxAttempts: 5})

	_, err := c.Fetch(context.Background(), "Oak Road")
	assert.ErrorIs(t, err, ErrEnrichmentFailed)
	client.AssertNumberOfCalls(t, "Query", 1)
}

func TestFetch_DailyBudgetExhausted(t *testing.T) {
	client := new(MockAddressClient)
	client.On("Query", mock.Anything, mock.Anything).Return([]byte(`ok`), nil)

	c := newTestCache(t, client, newMemStore(), Options{DailyBudget: 1})

	_, err := c.Fetch(context.Background(), "Oak Road")
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "Elm Avenue")
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	client.AssertNumberOfCalls(t, "Query", 1)
}

func TestLookup_TriState(t *testing.T) {
	store := newMemStore()
	store.entries["CACHED KEY"] = models.CacheEntry{Key: "CACHED KEY", Payload: []byte(`x`)}

	client := new(MockAddressClient)
	c := newTestCache(t, client, store, Options{})

	state, payload, err := c.Lookup(context.Background(), "cached key")
	require.NoError(t, err)
	assert.Equal(t, Cached, state)
	assert.Equal(t, []byte(`x`), payload)

	state, _, err = c.Lookup(context.Background(), "never seen")
	require.NoError(t, err)
	assert.Equal(t, Miss, state)

	// An in-flight key probes as Pending.
	c.mu.Lock()
	c.waiters["INFLIGHT KEY"] = []chan result{make(chan result, 1)}
	c.mu.Unlock()
	state, _, err = c.Lookup(context.Background(), "inflight key")
	require.NoError(t, err)
	assert.Equal(t, Pending, state)
}

func TestRecord_PersistsForLaterRuns(t *testing.T) {
	store := newMemStore()
	client := new(MockAddressClient)
	c := newTestCache(t, client, store, Options{})

	require.NoError(t, c.Record(context.Background(), " oak road ", []byte(`manual`)))

	payload, err := c.Fetch(context.Background(), "Oak Road")
	require.NoError(t, err)
	assert.Equal(t, []byte(`manual`), payload)
	client.AssertNumberOfCalls(t, "Query", 0)
}

func TestTokenBucket_RefillsPerSecond(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(2, clock)

	assert.True(t, tb.allow())
	assert.True(t, tb.allow())
	assert.False(t, tb.allow(), "bucket drained within the same second")

	// Sleeping past the second boundary refills the bucket.
	require.NoError(t, tb.wait(context.Background()))
	assert.True(t, tb.allow())
}
