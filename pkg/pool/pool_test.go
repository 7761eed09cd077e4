package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 3
	const tasks = 20

	p := New(size)
	defer p.Close()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() error {
				current := atomic.AddInt32(&active, 1)
				for {
					observed := atomic.LoadInt32(&peak)
					if current <= observed || atomic.CompareAndSwapInt32(&peak, observed, current) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(size))
	assert.Positive(t, atomic.LoadInt32(&peak))
}

func TestDoPropagatesError(t *testing.T) {
	p := New(2)
	defer p.Close()

	sentinel := errors.New("fetch failed")
	err := p.Do(context.Background(), func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestDoReturnsOnContextExpiry(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	err := p.Do(ctx, func() error {
		<-release
		return nil
	})
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitFailsWhenNoWorkerFree(t *testing.T) {
	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	close(block)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoConvertsPanicToError(t *testing.T) {
	p := New(1)
	defer p.Close()

	err := p.Do(context.Background(), func() error {
		panic("driver blew up")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver blew up")

	// The worker survives and keeps serving tasks.
	assert.NoError(t, p.Do(context.Background(), func() error { return nil }))
}

func TestSubmittedPanicDoesNotKillWorker(t *testing.T) {
	p := New(1)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))
	assert.NoError(t, p.Do(context.Background(), func() error { return nil }))
}

func TestNonPositiveSizeFallsBack(t *testing.T) {
	p := New(0)
	defer p.Close()
	assert.Equal(t, 10, p.Size())
}
