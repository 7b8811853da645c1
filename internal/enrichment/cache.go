// Package enrichment wraps the external address-lookup API behind a
// persisted read-through cache, a token-bucket rate limiter and a single
// dispatcher goroutine. Every outbound call funnels through the
// dispatcher, which is the only synchronisation point in the pipeline:
// that keeps the rate-limit and at-most-once-per-key invariants
// enforceable in one place and testable with a fake clock.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"constituency-streets/internal/models"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEnrichmentFailed marks a key whose lookup exhausted its retry
	// budget. The record is left enrichment-incomplete; core resolution
	// never depends on enrichment succeeding.
	ErrEnrichmentFailed = errors.New("enrichment: lookup failed after retries")

	// ErrRateLimited is returned by clients on a quota response. It is
	// always retried with backoff inside the dispatcher and only escapes
	// wrapped in ErrEnrichmentFailed once retries are exhausted.
	ErrRateLimited = errors.New("enrichment: rate limited by provider")

	// ErrQuotaExhausted means the daily request budget is spent; further
	// keys fail fast until the next run.
	ErrQuotaExhausted = errors.New("enrichment: daily quota exhausted")
)

// State is the tri-state answer of a cache probe.
type State int

const (
	Miss State = iota
	Pending
	Cached
)

// AddressClient is the already-credentialed HTTP client for the geocoding
// API. The cache wraps it, not vice versa.
type AddressClient interface {
	Query(ctx context.Context, fragment string) ([]byte, error)
}

// Store is the slice of the persistence layer holding cache entries.
// Entries are append-only; Put must be an idempotent upsert.
type Store interface {
	GetCacheEntry(ctx context.Context, key string) (models.CacheEntry, bool, error)
	PutCacheEntry(ctx context.Context, entry models.CacheEntry) error
}

// Clock abstracts time for the limiter and backoff so tests can drive
// them deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options sizes the limiter and retry policy to the API's documented
// quota.
type Options struct {
	RequestsPerSecond int
	DailyBudget       int
	MaxAttempts       int
	BackoffBase       time.Duration
	QueueSize         int
	Clock             Clock
}

func (o *Options) withDefaults() {
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 3
	}
	if o.DailyBudget <= 0 {
		o.DailyBudget = 5000
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 500 * time.Millisecond
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
}

type result struct {
	payload []byte
	err     error
}

type request struct {
	key string
}

// Cache is the enrichment front. Construct with New, call Start once,
// then Fetch from any number of workers.
type Cache struct {
	store  Store
	client AddressClient
	opts   Options

	queue chan request

	mu      sync.Mutex
	waiters map[string][]chan result

	bucket *tokenBucket
	spent  int // outbound calls this run, counted against the daily budget

	done chan struct{}
}

// New builds a cache over the persisted store and the API client.
func New(store Store, client AddressClient, opts Options) *Cache {
	opts.withDefaults()
	return &Cache{
		store:   store,
		client:  client,
		opts:    opts,
		queue:   make(chan request, opts.QueueSize),
		waiters: make(map[string][]chan result),
		bucket:  newTokenBucket(opts.RequestsPerSecond, opts.Clock),
		done:    make(chan struct{}),
	}
}

// Start launches the dispatcher. It exits when ctx is cancelled or Close
// is called.
func (c *Cache) Start(ctx context.Context) {
	go c.dispatch(ctx)
}

// Close stops accepting work and lets the dispatcher drain.
func (c *Cache) Close() {
	close(c.done)
}

// NormalizeKey canonicalises an address-lookup fragment so equivalent
// queries share one cache entry.
func NormalizeKey(fragment string) string {
	return strings.Join(strings.Fields(strings.ToUpper(strings.TrimSpace(fragment))), " ")
}

// Lookup probes the cache without triggering any network activity:
// Cached with the payload, Pending when an in-flight request already
// covers the key, or Miss.
func (c *Cache) Lookup(ctx context.Context, key string) (State, []byte, error) {
	key = NormalizeKey(key)
	entry, found, err := c.store.GetCacheEntry(ctx, key)
	if err != nil {
		return Miss, nil, fmt.Errorf("enrichment: cache read: %w", err)
	}
	if found {
		return Cached, entry.Payload, nil
	}
	c.mu.Lock()
	_, inflight := c.waiters[key]
	c.mu.Unlock()
	if inflight {
		return Pending, nil, nil
	}
	return Miss, nil, nil
}

// Record persists a payload for a key without going to the network.
// Used by tests and by manual backfills; entries are append-only.
func (c *Cache) Record(ctx context.Context, key string, payload []byte) error {
	key = NormalizeKey(key)
	err := c.store.PutCacheEntry(ctx, models.CacheEntry{Key: key, Payload: payload, FetchedAt: c.opts.Clock.Now()})
	if err != nil {
		return fmt.Errorf("enrichment: cache write: %w", err)
	}
	return nil
}

// Fetch returns the payload for a key, consulting the persisted store
// first and going to the network at most once per key across the run.
// Concurrent callers for the same key share one outbound request.
func (c *Cache) Fetch(ctx context.Context, key string) ([]byte, error) {
	key = NormalizeKey(key)

	entry, found, err := c.store.GetCacheEntry(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("enrichment: cache read: %w", err)
	}
	if found {
		return entry.Payload, nil
	}

	ch := make(chan result, 1)
	c.mu.Lock()
	if existing, inflight := c.waiters[key]; inflight {
		c.waiters[key] = append(existing, ch)
		c.mu.Unlock()
	} else {
		c.waiters[key] = []chan result{ch}
		c.mu.Unlock()
		select {
		case c.queue <- request{key: key}:
		case <-ctx.Done():
			// Other callers may have joined the key while this one was
			// blocked on a full queue. Remove only this caller's slot and
			// hand the enqueue off so the joiners are not stranded.
			if c.abandonWaiter(key, ch) {
				go c.enqueue(key)
			}
			return nil, ctx.Err()
		}
	}

	select {
	case res := <-ch:
		return res.payload, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case req := <-c.queue:
			payload, err := c.fetchOne(ctx, req.key)
			c.deliver(req.key, result{payload: payload, err: err})
		}
	}
}

// fetchOne performs the actual lookup with rate limiting and bounded
// exponential backoff. The store is re-checked first in case a previous
// run, or a parallel process, already recorded the key.
func (c *Cache) fetchOne(ctx context.Context, key string) ([]byte, error) {
	entry, found, err := c.store.GetCacheEntry(ctx, key)
	if err == nil && found {
		return entry.Payload, nil
	}

	if c.spent >= c.opts.DailyBudget {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExhausted, key)
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if err := c.bucket.wait(ctx); err != nil {
			return nil, err
		}
		c.spent++

		payload, err := c.client.Query(ctx, key)
		if err == nil {
			if perr := c.Record(ctx, key, payload); perr != nil {
				log.Warn().Err(perr).Str("key", key).Msg("fetched but failed to persist cache entry")
			}
			return payload, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			break
		}
		backoff := c.opts.BackoffBase * (1 << attempt)
		log.Debug().Str("key", key).Dur("backoff", backoff).Msg("rate limited, backing off")
		select {
		case <-c.opts.Clock.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrEnrichmentFailed, key, lastErr)
}

func (c *Cache) deliver(key string, res result) {
	c.mu.Lock()
	chans := c.waiters[key]
	delete(c.waiters, key)
	c.mu.Unlock()
	for _, ch := range chans {
		ch <- res
	}
}

// abandonWaiter removes one caller's slot from the in-flight list and
// reports whether other callers are still waiting on the key. The key
// leaves the waiter map only when the list empties, so joiners keep
// deduplicating against it.
func (c *Cache) abandonWaiter(key string, ch chan result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	chans := c.waiters[key]
	kept := chans[:0]
	for _, w := range chans {
		if w != ch {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		delete(c.waiters, key)
		return false
	}
	c.waiters[key] = kept
	return true
}

// enqueue hands a request to the dispatcher on behalf of waiters whose
// creating caller went away. It is bounded by Close, not by any one
// caller's context; if the cache shuts down first the remaining waiters
// are failed rather than left blocked.
func (c *Cache) enqueue(key string) {
	select {
	case c.queue <- request{key: key}:
	case <-c.done:
		c.deliver(key, result{err: fmt.Errorf("%w: %s: cache closed", ErrEnrichmentFailed, key)})
	}
}
