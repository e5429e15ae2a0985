// Package submission admits at most one order submission per session at a
// time. It only cuts down on needless reservation retries; stock correctness
// comes from the reservation transaction alone.
package submission

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

// State is what a session's UI should show.
type State string

const (
	StateIdle       State = "idle"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
)

type slot struct {
	busy    bool
	waiters []chan struct{}
}

// Queue runs submissions of the same session one after another in arrival
// order. A waiter gives up after the configured wait or when its context ends.
type Queue struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// NewQueue builds a queue. A non-positive wait means waiters only stop on
// context cancellation.
func NewQueue(wait time.Duration) *Queue {
	return &Queue{slots: make(map[string]*slot), wait: wait}
}

// Do runs fn once the session's slot is free.
func (q *Queue) Do(ctx context.Context, session string, fn func(ctx context.Context) error) error {
	if err := q.acquire(ctx, session); err != nil {
		return err
	}
	defer q.release(session)
	return fn(ctx)
}

// State reports the session's current position.
func (q *Queue) State(session string) State {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[session]
	switch {
	case !ok || !s.busy:
		return StateIdle
	case len(s.waiters) > 0:
		return StateQueued
	default:
		return StateProcessing
	}
}

func (q *Queue) acquire(ctx context.Context, session string) error {
	q.mu.Lock()
	s, ok := q.slots[session]
	if !ok {
		s = &slot{}
		q.slots[session] = s
	}
	if !s.busy {
		s.busy = true
		q.mu.Unlock()
		return nil
	}
	turn := make(chan struct{})
	s.waiters = append(s.waiters, turn)
	q.mu.Unlock()

	var timeout <-chan time.Time
	if q.wait > 0 {
		timer := time.NewTimer(q.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	var err error
	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-timeout:
		err = busyError(session)
	}
	if !q.abandon(session, turn) {
		// the slot was handed over while we were giving up
		q.release(session)
	}
	return err
}

// abandon drops turn from the wait list. It returns false when turn was
// already granted the slot.
func (q *Queue) abandon(session string, turn chan struct{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[session]
	if !ok {
		return false
	}
	for i, w := range s.waiters {
		if w == turn {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// release hands the slot to the oldest waiter or frees it.
func (q *Queue) release(session string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[session]
	if !ok {
		return
	}
	if len(s.waiters) > 0 {
		next := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(next)
		return
	}
	delete(q.slots, session)
}

func busyError(session string) error {
	return pkgerrors.New(pkgerrors.CodeSubmissionBusy, "previous order is still being processed").
		WithDetails(map[string]any{"session": session})
}
