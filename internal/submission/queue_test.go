package submission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

func waitForState(t *testing.T, q *Queue, session string, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return q.State(session) == want }, time.Second, time.Millisecond)
}

func TestQueueRunsSessionSubmissionsInOrder(t *testing.T) {
	q := NewQueue(time.Second)
	ctx := context.Background()

	release := make(chan struct{})
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = q.Do(ctx, "s1", func(context.Context) error {
			<-release
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	waitForState(t, q, "s1", StateProcessing)

	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(ctx, "s1", func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// enqueue one at a time so arrival order is fixed
		require.Eventually(t, func() bool {
			q.mu.Lock()
			defer q.mu.Unlock()
			return len(q.slots["s1"].waiters) == i
		}, time.Second, time.Millisecond)
	}
	assert.Equal(t, StateQueued, q.State("s1"))

	close(release)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3}, order)
	assert.Equal(t, StateIdle, q.State("s1"))
}

func TestQueueSessionsAreIndependent(t *testing.T) {
	q := NewQueue(time.Second)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "a", func(context.Context) error {
			<-release
			return nil
		})
		close(done)
	}()
	waitForState(t, q, "a", StateProcessing)

	ran := false
	require.NoError(t, q.Do(context.Background(), "b", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	close(release)
	<-done
}

func TestQueueWaiterTimesOut(t *testing.T) {
	q := NewQueue(20 * time.Millisecond)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "s1", func(context.Context) error {
			<-release
			return nil
		})
		close(done)
	}()
	waitForState(t, q, "s1", StateProcessing)

	err := q.Do(context.Background(), "s1", func(context.Context) error {
		t.Fatal("must not run")
		return nil
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSubmissionBusy))
	assert.Equal(t, StateProcessing, q.State("s1"))

	close(release)
	<-done
	assert.Equal(t, StateIdle, q.State("s1"))
}

func TestQueueWaiterHonoursContext(t *testing.T) {
	q := NewQueue(0)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), "s1", func(context.Context) error {
			<-release
			return nil
		})
		close(done)
	}()
	waitForState(t, q, "s1", StateProcessing)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Do(ctx, "s1", func(context.Context) error { return nil })
	}()
	waitForState(t, q, "s1", StateQueued)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-done
	assert.Equal(t, StateIdle, q.State("s1"))
}

func TestQueuePropagatesResult(t *testing.T) {
	q := NewQueue(time.Second)
	want := pkgerrors.New(pkgerrors.CodeInsufficientStock, "short")
	err := q.Do(context.Background(), "s1", func(context.Context) error { return want })
	assert.Same(t, want, err)
	assert.Equal(t, StateIdle, q.State("s1"))
}
