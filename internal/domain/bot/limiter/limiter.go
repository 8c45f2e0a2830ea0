// Package limiter bounds the number of downloads running at once
package limiter

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

// Limiter hands out at most Capacity permits and never blocks
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    atomic.Int64
	onChange func(inUse int)
}

// Option configures a Limiter
type Option func(*Limiter)

// WithOnChange registers a callback invoked with the new count after every acquire and release
func WithOnChange(fn func(inUse int)) Option {
	return func(l *Limiter) {
		l.onChange = fn
	}
}

// New creates a limiter with the given capacity; values below 1 are raised to 1
func New(capacity int, opts ...Option) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	l := &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes a permit, or returns a CapacityError when none is free
func (l *Limiter) Acquire() (*Permit, error) {
	if !l.sem.TryAcquire(1) {
		return nil, pkgerrors.NewCapacityError(l.capacity)
	}
	l.notify(l.inUse.Add(1))
	return &Permit{l: l}, nil
}

// InUse returns the number of held permits
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Capacity returns the configured number of permits
func (l *Limiter) Capacity() int {
	return l.capacity
}

func (l *Limiter) release() {
	l.notify(l.inUse.Add(-1))
	l.sem.Release(1)
}

func (l *Limiter) notify(n int64) {
	if l.onChange != nil {
		l.onChange(int(n))
	}
}

// Permit is one held slot
type Permit struct {
	l    *Limiter
	once sync.Once
}

// Release returns the slot; calls after the first are no-ops
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(p.l.release)
}
