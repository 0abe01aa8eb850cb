package inmet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	mu    sync.Mutex
	calls int
	city  domain.City
	err   error
}

func (r *countingResolver) LookupCity(_ context.Context, code string) (domain.City, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return domain.City{}, r.err
	}
	city := r.city
	city.Code = code
	return city, nil
}

func TestCachedCityResolver_Hit(t *testing.T) {
	inner := &countingResolver{city: domain.City{Name: "Campinas - SP", Latitude: -22.9, Longitude: -47.06}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedCityResolver(inner, 10, metrics)

	c1, err := cached.LookupCity(context.Background(), campinasCode)
	require.NoError(t, err)
	c2, err := cached.LookupCity(context.Background(), campinasCode)
	require.NoError(t, err)

	assert.Equal(t, c1, c2)
	assert.Equal(t, 1, inner.calls, "second lookup served from cache")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CityCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CityCache.WithLabelValues("miss")), 0)
}

func TestCachedCityResolver_DifferentCodesMiss(t *testing.T) {
	inner := &countingResolver{city: domain.City{Name: "Somewhere"}}
	cached := NewCachedCityResolver(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.LookupCity(context.Background(), "3509502")
	_, _ = cached.LookupCity(context.Background(), "3550308")

	assert.Equal(t, 2, inner.calls)
}

func TestCachedCityResolver_ErrorsNotCached(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unknown city", domain.ErrUnknownCity},
		{"transient", &domain.FetchError{Kind: domain.FetchNetwork, Err: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &countingResolver{err: tt.err}
			cached := NewCachedCityResolver(inner, 10, observability.NewMetricsForTesting())

			_, err := cached.LookupCity(context.Background(), campinasCode)
			require.ErrorIs(t, err, tt.err)
			_, err = cached.LookupCity(context.Background(), campinasCode)
			require.ErrorIs(t, err, tt.err)

			assert.Equal(t, 2, inner.calls)
			assert.Equal(t, 0, cached.cache.len())
		})
	}
}

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", domain.City{Code: "a"})
	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Code)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.City{Code: "a"})
	c.put("b", domain.City{Code: "b"})
	_, _ = c.get("a") // a is now most recent
	c.put("c", domain.City{Code: "c"})

	_, ok := c.get("b")
	assert.False(t, ok, "b should be evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.City{Code: "a", Name: "old"})
	c.put("a", domain.City{Code: "a", Name: "new"})

	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_MinimumCapacity(t *testing.T) {
	c := newLRUCache(0)

	c.put("a", domain.City{Code: "a"})
	c.put("b", domain.City{Code: "b"})

	assert.Equal(t, 1, c.len())
	_, ok := c.get("b")
	assert.True(t, ok)
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	c := newLRUCache(50)
	codes := []string{"3509502", "3550308", "3304557", "4106902"}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				code := codes[(i+j)%len(codes)]
				c.put(code, domain.City{Code: code})
				_, _ = c.get(code)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(codes), c.len())
}
