package embedding

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"docchat-go/internal/apperr"
	"docchat-go/pkg/aierr"
	"docchat-go/pkg/log"
)

const defaultInitialBackoff = 500 * time.Millisecond

// ResilientOptions configures the Resilient wrapper. Zero values fall back to defaults.
type ResilientOptions struct {
	Timeout        time.Duration // per call, default 30s
	MaxRetries     int           // retries after the first attempt for transient upstream errors
	InitialBackoff time.Duration
	RatePerSecond  float64 // <= 0 disables the client-side limiter
	Burst          int
	Dimensions     int // expected vector size; 0 lets the first vector decide
}

// Resilient adds a per-call timeout, a client-side rate limit, bounded exponential
// backoff and a dimension guard to any Client.
type Resilient struct {
	inner   Client
	opts    ResilientOptions
	limiter *rate.Limiter

	mu  sync.Mutex
	dim int
}

// NewResilient wraps inner.
func NewResilient(inner Client, opts ResilientOptions) *Resilient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &Resilient{inner: inner, opts: opts, limiter: limiter, dim: opts.Dimensions}
}

func (r *Resilient) Model() string { return r.inner.Model() }

// Dimension returns the vector size this client is locked to, 0 before the first call.
func (r *Resilient) Dimension() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dim
}

// CreateEmbedding implements Client.
func (r *Resilient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	attempt := 0
	op := func() ([]float32, error) {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		vec, err := r.inner.CreateEmbedding(callCtx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			err = aierr.Classify(err)
			if apperr.IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return vec, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.opts.InitialBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.opts.MaxRetries)), ctx)

	vec, err := backoff.RetryNotifyWithData(op, policy, func(err error, wait time.Duration) {
		log.Warnf("[EmbeddingClient] 第 %d 次调用失败, %s 后重试: %v", attempt, wait, err)
	})
	if err != nil {
		return nil, err
	}
	if err := r.checkDimension(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (r *Resilient) checkDimension(vec []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dim == 0 {
		r.dim = len(vec)
		return nil
	}
	if len(vec) != r.dim {
		return fmt.Errorf("model %s returned %d dimensions, expected %d: %w", r.inner.Model(), len(vec), r.dim, apperr.ErrDimensionMismatch)
	}
	return nil
}

// Close closes the wrapped client if it holds a connection.
func (r *Resilient) Close() error {
	if c, ok := r.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
