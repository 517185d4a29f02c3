// Package cache provides process-lifetime memoization of expensive loads
// (reference datasets, persisted models) keyed by an unchanging descriptor
// such as a file path or URL.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var lookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hydrosim_cache_lookups_total",
		Help: "Memo cache lookups by cache name and result.",
	},
	[]string{"cache", "result"},
)

func init() {
	prometheus.MustRegister(lookupsTotal)
}

// DefaultLoadTimeout bounds a single load when no other limit is set.
const DefaultLoadTimeout = 2 * time.Minute

// Loader produces the value for a descriptor on a cache miss.
type Loader[T any] func(ctx context.Context, key string) (T, error)

// Memo caches loaded values for the lifetime of the process. A hit returns
// the same value (the same pointer for pointer types) to every caller.
// Failed loads are not cached. There is no invalidation: entries live until
// the process exits.
type Memo[T any] struct {
	name    string
	load    Loader[T]
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	entries map[string]T
	hits    int
	misses  int

	group singleflight.Group
}

// NewMemo creates a memo cache. name labels metrics and log lines.
func NewMemo[T any](name string, load Loader[T], logger *zap.Logger) *Memo[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memo[T]{
		name:    name,
		load:    load,
		logger:  logger,
		timeout: DefaultLoadTimeout,
		entries: make(map[string]T),
	}
}

// SetLoadTimeout bounds each load. Call it before the first Get.
func (m *Memo[T]) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

// Get returns the cached value for key, loading it on first use.
// Concurrent misses for the same key share a single load. The load runs
// detached from ctx, bounded by the load timeout; ctx only limits how long
// this caller waits for it.
func (m *Memo[T]) Get(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	v, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		m.mu.Lock()
		m.hits++
		m.mu.Unlock()
		lookupsTotal.WithLabelValues(m.name, "hit").Inc()
		return v, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		// Re-check under the flight: an earlier flight may have populated it.
		m.mu.RLock()
		cached, ok := m.entries[key]
		m.mu.RUnlock()
		if ok {
			return cached, nil
		}

		m.mu.Lock()
		m.misses++
		m.mu.Unlock()
		lookupsTotal.WithLabelValues(m.name, "miss").Inc()

		// The load is shared by every waiter, so it must outlive the caller
		// that happened to start it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		loaded, err := m.load(loadCtx, key)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[key] = loaded
		m.mu.Unlock()
		m.logger.Info("cache entry loaded",
			zap.String("cache", m.name),
			zap.String("key", key),
		)
		return loaded, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%s cache load %q: %w", m.name, key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, fmt.Errorf("%s cache load %q: %w", m.name, key, res.Err)
		}
		if res.Shared {
			m.logger.Debug("cache load shared", zap.String("cache", m.name), zap.String("key", key))
		}
		return res.Val.(T), nil
	}
}

// Len returns the number of cached entries.
func (m *Memo[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns hit and miss counts.
func (m *Memo[T]) Stats() (hits, misses int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}
