// Package ratelimit wraps a modelclient.Client with a process-local
// tokens-per-minute budget, so a single shared model connection can be
// reused across concurrent runs without exceeding a provider's rate
// limit.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/loopforge/agentrun/modelclient"
)

// Limiter applies a token-bucket budget, expressed in tokens per minute,
// in front of a modelclient.Client. Requests block until enough budget
// is available for their estimated cost.
type Limiter struct {
	next    modelclient.Client
	limiter *rate.Limiter
}

// New wraps next with a limiter budgeted at tokensPerMinute. A
// tokensPerMinute of zero or less disables limiting (the wrapper becomes
// a pass-through).
func New(next modelclient.Client, tokensPerMinute float64) *Limiter {
	if tokensPerMinute <= 0 {
		return &Limiter{next: next, limiter: rate.NewLimiter(rate.Inf, math.MaxInt32)}
	}
	perSecond := tokensPerMinute / 60
	burst := int(tokensPerMinute)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Complete estimates the request's token cost via CountTokens, waits for
// that much budget, then delegates to the wrapped client.
func (l *Limiter) Complete(ctx context.Context, req modelclient.Request) (modelclient.Response, error) {
	if err := l.wait(ctx, req); err != nil {
		return modelclient.Response{}, err
	}
	return l.next.Complete(ctx, req)
}

// Stream estimates the request's token cost, waits for budget, then
// delegates to the wrapped client's Stream.
func (l *Limiter) Stream(ctx context.Context, req modelclient.Request) (modelclient.Streamer, error) {
	if err := l.wait(ctx, req); err != nil {
		return nil, err
	}
	return l.next.Stream(ctx, req)
}

// CountTokens delegates directly; estimating does not itself consume budget.
func (l *Limiter) CountTokens(ctx context.Context, req modelclient.Request) (int, error) {
	return l.next.CountTokens(ctx, req)
}

func (l *Limiter) wait(ctx context.Context, req modelclient.Request) error {
	n, err := l.next.CountTokens(ctx, req)
	if err != nil {
		return err
	}
	if n < 1 {
		n = 1
	}
	r := l.limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return fmt.Errorf("ratelimit: request cost of %d tokens exceeds the limiter's burst", n)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
