package spf

import (
	"context"
	"math"
	"math/rand"
	"net"
	"time"
)

// retryResolver retries transient failures against a ring of upstream
// resolvers with exponential backoff. Retry policy lives here, outside the
// evaluator, which performs no retries of its own.
type retryResolver struct {
	min    time.Duration
	max    time.Duration
	factor float64
	jitter bool
	rr     []Resolver
}

type RetryResolverOption func(r *retryResolver)

func BackoffDelayMin(d time.Duration) RetryResolverOption {
	return func(r *retryResolver) {
		if d <= 0 {
			return
		}
		r.min = d
	}
}

func BackoffFactor(f float64) RetryResolverOption {
	return func(r *retryResolver) {
		if f <= 0 {
			return
		}
		r.factor = f
	}
}

func BackoffJitter(b bool) RetryResolverOption {
	return func(r *retryResolver) {
		r.jitter = b
	}
}

func BackoffTimeout(d time.Duration) RetryResolverOption {
	return func(r *retryResolver) {
		if d <= 0 {
			d = 2 * time.Second
		}
		r.max = d
	}
}

// NewRetryResolver implements round-robin retry with backoff delay over rr.
func NewRetryResolver(rr []Resolver, opts ...RetryResolverOption) Resolver {
	resolver := &retryResolver{
		min:    100 * time.Millisecond,
		max:    2 * time.Second,
		factor: 2,
		jitter: true,
		rr:     rr,
	}

	for _, opt := range opts {
		opt(resolver)
	}
	return resolver
}

// retry runs f against each upstream until it returns anything other than
// ErrDNSTemperror, backing off between full rounds. The context deadline
// and the configured timeout both bound the attempts.
func (r *retryResolver) retry(ctx context.Context, f func(Resolver) error) error {
	start := time.Now()
	expired := func() bool {
		return time.Since(start) > r.max || ctx.Err() != nil
	}
	for attempt := 0; ; attempt++ {
		for _, next := range r.rr {
			err := f(next)
			if err != ErrDNSTemperror || expired() {
				return err
			}
		}
		time.Sleep(r.backoff(attempt))
	}
}

func (r *retryResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	var v []string
	err := r.retry(ctx, func(next Resolver) (err error) {
		v, err = next.LookupTXT(ctx, name)
		return
	})
	return v, err
}

func (r *retryResolver) LookupA(ctx context.Context, name string) ([]net.IP, error) {
	var v []net.IP
	err := r.retry(ctx, func(next Resolver) (err error) {
		v, err = next.LookupA(ctx, name)
		return
	})
	return v, err
}

func (r *retryResolver) LookupAAAA(ctx context.Context, name string) ([]net.IP, error) {
	var v []net.IP
	err := r.retry(ctx, func(next Resolver) (err error) {
		v, err = next.LookupAAAA(ctx, name)
		return
	})
	return v, err
}

func (r *retryResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	var v []*net.MX
	err := r.retry(ctx, func(next Resolver) (err error) {
		v, err = next.LookupMX(ctx, name)
		return
	})
	return v, err
}

func (r *retryResolver) LookupPTR(ctx context.Context, ip net.IP) ([]string, error) {
	var v []string
	err := r.retry(ctx, func(next Resolver) (err error) {
		v, err = next.LookupPTR(ctx, ip)
		return
	})
	return v, err
}

// backoff calculates the delay before the next attempt. attempt is zero
// based. Adapted from https://github.com/jpillora/backoff/blob/master/backoff.go
func (r *retryResolver) backoff(attempt int) time.Duration {
	if r.min >= r.max {
		// short-circuit
		return r.max
	}
	const maxInt64 = float64(math.MaxInt64 - 512)

	minf := float64(r.min)
	durf := minf * math.Pow(r.factor, float64(attempt))
	if r.jitter {
		durf = rand.Float64()*(durf-minf) + minf
	}
	// ensure float64 won't overflow int64
	if durf > maxInt64 {
		return r.max
	}
	dur := time.Duration(durf)
	if dur < r.min {
		return r.min
	}
	if dur > r.max {
		return r.max
	}
	return dur
}
