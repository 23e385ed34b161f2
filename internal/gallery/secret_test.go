package gallery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_AcquireWaitsForSupply(t *testing.T) {
	var prompts atomic.Int32
	prompted := make(chan struct{}, 4)
	s := NewSecret(func() {
		prompts.Add(1)
		prompted <- struct{}{}
	}, nil)

	var wg sync.WaitGroup
	results := make(chan string, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pw, err := s.Acquire(context.Background())
			assert.NoError(t, err)
			results <- pw
		}()
	}

	<-prompted
	<-prompted
	require.True(t, s.Pending())
	s.Supply("hunter2")
	wg.Wait()
	close(results)

	for pw := range results {
		assert.Equal(t, "hunter2", pw)
	}
	assert.Equal(t, int32(2), prompts.Load())
	assert.False(t, s.Pending())
	assert.True(t, s.HasPassword())
}

func TestSecret_DeclineAndReset(t *testing.T) {
	s := NewSecret(nil, nil)
	s.Decline()

	_, err := s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrDeclined)

	s.ResetDecline()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSecret_EmptySupplyDeclines(t *testing.T) {
	s := NewSecret(func() {}, nil)
	done := make(chan error, 1)
	go func() {
		_, err := s.Acquire(context.Background())
		done <- err
	}()

	require.Eventually(t, s.Pending, time.Second, 5*time.Millisecond)
	s.Supply("")
	assert.ErrorIs(t, <-done, ErrDeclined)
}

func TestSecret_RevokeForcesNewPrompt(t *testing.T) {
	var prompts, revokes atomic.Int32
	var s *Secret
	s = NewSecret(func() {
		prompts.Add(1)
		go s.Supply("second")
	}, func() { revokes.Add(1) })

	s.Supply("first")
	pw, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", pw)

	s.Revoke()
	assert.False(t, s.HasPassword())
	assert.Equal(t, int32(1), revokes.Load())

	pw, err = s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", pw)
	assert.Equal(t, int32(1), prompts.Load())

	// revoking nothing is silent
	s.Revoke()
	s.Revoke()
	assert.Equal(t, int32(2), revokes.Load())
}

func TestSecret_CancelledWait(t *testing.T) {
	s := NewSecret(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSecret_CancelledWaiterWithdrawsPrompt(t *testing.T) {
	prompted := make(chan struct{}, 4)
	s := NewSecret(func() { prompted <- struct{}{} }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Acquire(ctx)
		done <- err
	}()
	<-prompted
	assert.True(t, s.Pending())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, s.Pending())

	results := make(chan string, 1)
	go func() {
		pw, _ := s.Acquire(context.Background())
		results <- pw
	}()
	select {
	case <-prompted:
	case <-time.After(time.Second):
		t.Fatal("second waiter was not prompted")
	}
	s.Supply("again")
	assert.Equal(t, "again", <-results)
}

func TestSecret_NewWaiterPromptsWhileStaleWaiterLingers(t *testing.T) {
	prompted := make(chan struct{}, 4)
	s := NewSecret(func() { prompted <- struct{}{} }, nil)

	staleCtx, cancelStale := context.WithCancel(context.Background())
	defer cancelStale()
	go func() { _, _ = s.Acquire(staleCtx) }()
	<-prompted

	results := make(chan string, 1)
	go func() {
		pw, _ := s.Acquire(context.Background())
		results <- pw
	}()
	select {
	case <-prompted:
	case <-time.After(time.Second):
		t.Fatal("new waiter was not prompted")
	}

	cancelStale()
	s.Supply("fresh")
	assert.Equal(t, "fresh", <-results)
}
