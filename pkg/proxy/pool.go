package proxy

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

// acquireAttempts bounds the acquire loop: each attempt may trigger a reload,
// so a dead provider fails within three round trips instead of spinning.
const acquireAttempts = 3

// ProbeFunc checks that a lease actually routes traffic. The default probe
// issues a GET through the lease against a fixed echo endpoint.
type ProbeFunc func(ctx context.Context, lease *Lease) error

// Pool is a process-wide cache of single-use proxy leases.
//
// Retention policy: a lease returned by Acquire is removed from the pool and
// never comes back; there is no release operation. The pool shrinks with use
// and reloads from the provider only when it is empty. Whether the
// shrink-to-empty behaviour is rate limiting or an accident of the original
// design is unknown; it is kept as-is.
type Pool struct {
	size     int
	validate bool
	provider Provider

	mu     sync.Mutex
	leases []*Lease

	probe  ProbeFunc
	rng    *rand.Rand
	logger logger.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithProbe overrides the lease validation probe.
func WithProbe(probe ProbeFunc) Option {
	return func(p *Pool) {
		p.probe = probe
	}
}

// WithLogger sets the pool logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Pool) {
		p.logger = log
	}
}

// WithRandSource seeds lease selection, for deterministic tests.
func WithRandSource(src rand.Source) Option {
	return func(p *Pool) {
		p.rng = rand.New(src)
	}
}

// NewPool creates a proxy pool of the given target size. When validate is
// true every acquired lease is probed before being handed out; a lease that
// fails the probe is discarded permanently and the acquire is retried.
func NewPool(size int, validate bool, provider Provider, echoURL string, opts ...Option) *Pool {
	p := &Pool{
		size:     size,
		validate: validate,
		provider: provider,
		probe:    defaultProbe(echoURL),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Len returns the number of leases currently held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leases)
}

// Acquire hands out one lease, reloading from the provider when the pool is
// empty. Selection among available leases is uniform-random rather than FIFO
// so the provider cannot correlate sequential use. The returned lease is the
// caller's exclusive property; it must not be shared across concurrent tasks.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	var lastErr error

	for attempt := 1; attempt <= acquireAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lease, err := p.takeOne(ctx)
		if err != nil {
			lastErr = err
			p.logger.WarnWithFields("proxy acquire attempt failed", map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": acquireAttempts,
				"error":        err.Error(),
			})
			continue
		}

		if p.validate {
			if err := p.probe(ctx, lease); err != nil {
				// The bad lease was already popped; it is gone for good.
				lastErr = errs.Newf(errs.ErrorTypeTransient, "lease %s failed validation: %v", lease.Addr(), err)
				p.logger.WarnWithFields("discarding invalid proxy lease", map[string]interface{}{
					"lease":   lease.Addr(),
					"attempt": attempt,
				})
				continue
			}
		}

		p.logger.DebugWithFields("proxy lease acquired", map[string]interface{}{
			"lease":     lease.Addr(),
			"remaining": p.Len(),
		})
		return lease, nil
	}

	return nil, errs.Newf(errs.ErrorTypePoolExhausted,
		"no usable proxy lease after %d attempts: %v", acquireAttempts, lastErr)
}

// takeOne pops a random lease, reloading first if the pool is drained.
// Expired leases found during selection are dropped on the spot.
func (p *Pool) takeOne(ctx context.Context) (*Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dropExpiredLocked(time.Now())

	if len(p.leases) == 0 {
		if err := p.reloadLocked(ctx); err != nil {
			return nil, err
		}
		p.dropExpiredLocked(time.Now())
		if len(p.leases) == 0 {
			return nil, errs.New(errs.ErrorTypeTransient, "provider returned no usable leases")
		}
	}

	idx := p.rng.Intn(len(p.leases))
	lease := p.leases[idx]
	p.leases = append(p.leases[:idx], p.leases[idx+1:]...)
	return lease, nil
}

// reloadLocked refills the pool from the provider. Callers hold p.mu.
func (p *Pool) reloadLocked(ctx context.Context) error {
	p.logger.InfoWithFields("proxy pool drained, reloading", map[string]interface{}{
		"target_size": p.size,
	})

	leases, err := p.provider.FetchLeases(ctx, p.size)
	if err != nil {
		return fmt.Errorf("reloading proxy pool: %w", err)
	}

	p.leases = leases
	return nil
}

func (p *Pool) dropExpiredLocked(now time.Time) {
	kept := p.leases[:0]
	for _, l := range p.leases {
		if l.Expired(now) {
			p.logger.DebugWithFields("dropping expired proxy lease", map[string]interface{}{
				"lease": l.Addr(),
			})
			continue
		}
		kept = append(kept, l)
	}
	p.leases = kept
}

// defaultProbe builds the echo-endpoint validation probe.
func defaultProbe(echoURL string) ProbeFunc {
	return func(ctx context.Context, lease *Lease) error {
		client := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(lease.URL()),
			},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, echoURL, nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("echo endpoint returned status %d", resp.StatusCode)
		}
		return nil
	}
}
