package llm

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"docchat-go/internal/apperr"
	"docchat-go/pkg/aierr"
	"docchat-go/pkg/log"
)

// Resilient 为 Client 增加单次调用超时，并对 Chat 的瞬时失败做有限次数的指数退避重试。
// 流式调用一旦开始输出就不再重试。
type Resilient struct {
	inner          Client
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
}

// NewResilient wraps inner. timeout <= 0 means 30s.
func NewResilient(inner Client, timeout time.Duration, maxRetries int) *Resilient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Resilient{inner: inner, timeout: timeout, maxRetries: maxRetries, initialBackoff: 500 * time.Millisecond}
}

func (r *Resilient) Model() string { return r.inner.Model() }

func (r *Resilient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	op := func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		out, err := r.inner.Chat(callCtx, messages, gen)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		err = aierr.Classify(err)
		if !apperr.IsTransient(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initialBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.maxRetries)), ctx)
	return backoff.RetryNotifyWithData(op, policy, func(err error, wait time.Duration) {
		log.Warnf("[LLMClient] 调用失败, %s 后重试: %v", wait, err)
	})
}

func (r *Resilient) StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err := r.inner.StreamChatMessages(callCtx, messages, gen, writer)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return aierr.Classify(err)
}

// Close closes the wrapped client if it holds a connection.
func (r *Resilient) Close() error {
	if c, ok := r.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
