package submission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

const defaultGateTTL = time.Minute

type gateStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	SubmissionKey(session string) string
}

// Gate rejects a second concurrent submission of a session across API
// instances. The TTL frees slots left behind by crashed holders.
type Gate struct {
	store gateStore
	ttl   time.Duration
}

// NewGate builds a redis-backed gate.
func NewGate(store gateStore, ttl time.Duration) (*Gate, error) {
	if store == nil {
		return nil, errors.New("redis client required for submission gate")
	}
	if ttl <= 0 {
		ttl = defaultGateTTL
	}
	return &Gate{store: store, ttl: ttl}, nil
}

// Do runs fn while holding the session slot, or fails with
// SUBMISSION_IN_PROGRESS when another submission holds it.
func (g *Gate) Do(ctx context.Context, session string, fn func(ctx context.Context) error) error {
	key := g.store.SubmissionKey(session)
	owner := uuid.NewString()
	ok, err := g.store.SetNX(ctx, key, owner, g.ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire submission slot")
	}
	if !ok {
		return busyError(session)
	}
	// a slot whose TTL lapsed mid-submission may already belong to the next
	// caller, so only our own token is released.
	defer func() {
		_, _ = g.store.ReleaseIfOwner(context.WithoutCancel(ctx), key, owner)
	}()
	return fn(ctx)
}

// State reports processing while any instance holds the session slot.
func (g *Gate) State(ctx context.Context, session string) (State, error) {
	_, err := g.store.Get(ctx, g.store.SubmissionKey(session))
	if errors.Is(err, redis.Nil) {
		return StateIdle, nil
	}
	if err != nil {
		return StateIdle, err
	}
	return StateProcessing, nil
}
