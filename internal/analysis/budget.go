package analysis

import (
	"context"
	"sync"
	"time"

	apperr "github.com/docshield/redactor/internal/errors"
)

// TokenBudget is a counting semaphore over an estimated token allowance
// shared by concurrent analysis calls. Acquire blocks until enough tokens are
// free or the timeout elapses; every acquire must be paired with a release of
// the same amount on every exit path.
type TokenBudget struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tokens  int
	timeout time.Duration
}

func NewTokenBudget(maxTokens int, timeout time.Duration) *TokenBudget {
	b := &TokenBudget{tokens: maxTokens, timeout: timeout}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Acquire removes n tokens from the budget, waiting for releases if the
// budget cannot currently satisfy the request.
func (b *TokenBudget) Acquire(n int) error {
	deadline := time.Now().Add(b.timeout)

	// sync.Cond has no timed wait; a timer broadcast wakes the waiter so the
	// deadline check below can fire.
	timer := time.AfterFunc(b.timeout, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer timer.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for n > b.tokens {
		if !time.Now().Before(deadline) {
			return apperr.ErrTokenTimeout
		}
		b.cond.Wait()
	}
	b.tokens -= n
	return nil
}

// Release returns n tokens to the budget and wakes all waiters.
func (b *TokenBudget) Release(n int) {
	b.mu.Lock()
	b.tokens += n
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Available returns the current free token count.
func (b *TokenBudget) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// RequestBudget bounds the number of in-flight analysis requests.
type RequestBudget struct {
	slots   chan struct{}
	timeout time.Duration
}

func NewRequestBudget(maxConcurrent int, timeout time.Duration) *RequestBudget {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RequestBudget{
		slots:   make(chan struct{}, maxConcurrent),
		timeout: timeout,
	}
}

// Acquire claims a request slot, failing if none frees up before the timeout
// or the context is cancelled.
func (b *RequestBudget) Acquire(ctx context.Context) error {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return apperr.ErrRequestTimeout
	case <-ctx.Done():
		return apperr.Wrap(ctx.Err(), apperr.ErrRequestTimeout.Code, apperr.ErrRequestTimeout.Message)
	}
}

// Release frees a previously acquired slot.
func (b *RequestBudget) Release() {
	select {
	case <-b.slots:
	default:
	}
}

// InFlight returns the number of currently held slots.
func (b *RequestBudget) InFlight() int {
	return len(b.slots)
}
