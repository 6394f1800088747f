package proxy

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediacrawl/pkg/errors"
)

// countingProvider wraps a StaticProvider and counts FetchLeases calls.
type countingProvider struct {
	inner Provider
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) FetchLeases(ctx context.Context, count int) ([]*Lease, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.inner.FetchLeases(ctx, count)
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func staticLeases(n int) []*Lease {
	leases := make([]*Lease, 0, n)
	for i := 0; i < n; i++ {
		leases = append(leases, &Lease{
			IP:       "10.0.0.1",
			Port:     8000 + i,
			Protocol: "http",
		})
	}
	return leases
}

func newTestPool(t *testing.T, size int, provider Provider) *Pool {
	t.Helper()
	return NewPool(size, false, provider, "",
		WithRandSource(rand.NewSource(1)))
}

func TestAcquireDistinctLeases(t *testing.T) {
	provider := &countingProvider{inner: &StaticProvider{Leases: staticLeases(5)}}
	pool := newTestPool(t, 5, provider)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		lease, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[lease.Addr()], "lease %s handed out twice", lease.Addr())
		seen[lease.Addr()] = true
	}

	// All five came from a single provider round trip.
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, 0, pool.Len())
}

func TestAcquireReloadsWhenDrained(t *testing.T) {
	provider := &countingProvider{inner: &StaticProvider{Leases: staticLeases(2)}}
	pool := newTestPool(t, 2, provider)

	for i := 0; i < 2; i++ {
		_, err := pool.Acquire(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 1, provider.callCount())

	// Third acquire drains into a reload.
	_, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, provider.callCount())
}

func TestAcquireNeverDoubleIssuesConcurrently(t *testing.T) {
	const size = 8
	provider := &countingProvider{inner: &StaticProvider{Leases: staticLeases(size)}}
	pool := newTestPool(t, size, provider)

	var (
		mu     sync.Mutex
		seen   = make(map[string]int)
		wg     sync.WaitGroup
		errors int
	)

	for i := 0; i < size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := pool.Acquire(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errors++
				return
			}
			seen[lease.Addr()]++
		}()
	}
	wg.Wait()

	require.Zero(t, errors)
	for addr, count := range seen {
		assert.Equal(t, 1, count, "lease %s issued %d times", addr, count)
	}
	assert.Len(t, seen, size)
}

func TestAcquireDiscardsLeasesFailingValidation(t *testing.T) {
	provider := &countingProvider{inner: &StaticProvider{Leases: staticLeases(3)}}

	var probed []string
	pool := NewPool(3, true, provider, "",
		WithRandSource(rand.NewSource(1)),
		WithProbe(func(ctx context.Context, lease *Lease) error {
			probed = append(probed, lease.Addr())
			if len(probed) == 1 {
				return assert.AnError
			}
			return nil
		}))

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	// First probed lease was discarded; the handed-out one is different.
	require.Len(t, probed, 2)
	assert.NotEqual(t, probed[0], lease.Addr())
	// Discarded lease never returns to the pool.
	assert.Equal(t, 1, pool.Len())
}

func TestAcquireExhaustionError(t *testing.T) {
	pool := newTestPool(t, 2, &StaticProvider{})

	_, err := pool.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypePoolExhausted, errs.TypeOf(err))
}

func TestAcquireDropsExpiredLeases(t *testing.T) {
	leases := staticLeases(2)
	leases[0].ExpireAt = time.Now().Add(-time.Minute)
	provider := &countingProvider{inner: &StaticProvider{Leases: leases}}
	pool := newTestPool(t, 2, provider)

	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, leases[1].Addr(), lease.Addr())
}

func TestLeaseURL(t *testing.T) {
	lease := &Lease{IP: "10.1.2.3", Port: 8080, User: "u", Password: "p", Protocol: "http"}
	u := lease.URL()
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "10.1.2.3:8080", u.Host)
	pw, _ := u.User.Password()
	assert.Equal(t, "u", u.User.Username())
	assert.Equal(t, "p", pw)
}
