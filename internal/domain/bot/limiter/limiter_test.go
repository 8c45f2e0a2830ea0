package limiter

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/alex-away/tg-ytdl-gofile/pkg/errors"
)

func TestLimiter_CapacityOne(t *testing.T) {
	l := New(1)

	first, err := l.Acquire()
	require.NoError(t, err)

	_, err = l.Acquire()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCapacityError(err))
	assert.Equal(t, 1, l.InUse())

	first.Release()
	assert.Equal(t, 0, l.InUse())

	second, err := l.Acquire()
	require.NoError(t, err)
	second.Release()
}

func TestLimiter_ReleaseIdempotent(t *testing.T) {
	l := New(2)

	p, err := l.Acquire()
	require.NoError(t, err)
	other, err := l.Acquire()
	require.NoError(t, err)

	p.Release()
	p.Release()
	p.Release()

	assert.Equal(t, 1, l.InUse())
	other.Release()
	assert.Equal(t, 0, l.InUse())

	var nilPermit *Permit
	nilPermit.Release()
}

func TestLimiter_NeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	var peak atomic.Int64
	l := New(capacity, WithOnChange(func(n int) {
		for {
			cur := peak.Load()
			if int64(n) <= cur || peak.CompareAndSwap(cur, int64(n)) {
				return
			}
		}
	}))

	var wg sync.WaitGroup
	var granted atomic.Int64
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p, err := l.Acquire()
				if err != nil {
					continue
				}
				granted.Add(1)
				p.Release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.Positive(t, granted.Load())
	assert.Equal(t, 0, l.InUse())
	assert.Equal(t, capacity, l.Capacity())
}

func TestNew_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, New(0).Capacity())
}
