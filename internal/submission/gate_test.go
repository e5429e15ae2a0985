package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryStore) SubmissionKey(session string) string {
	return "vs:submission:" + session
}

func TestGateRejectsConcurrentSubmission(t *testing.T) {
	store := newMemoryStore()
	gate, err := NewGate(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	err = gate.Do(ctx, "s1", func(ctx context.Context) error {
		state, err := gate.State(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, StateProcessing, state)

		inner := gate.Do(ctx, "s1", func(context.Context) error { return nil })
		assert.True(t, pkgerrors.HasCode(inner, pkgerrors.CodeSubmissionBusy))

		return gate.Do(ctx, "s2", func(context.Context) error { return nil })
	})
	require.NoError(t, err)

	state, err := gate.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
}

func TestGateOnlyOwnerReleases(t *testing.T) {
	store := newMemoryStore()
	gate, err := NewGate(store, time.Minute)
	require.NoError(t, err)

	err = gate.Do(context.Background(), "s1", func(context.Context) error {
		// the slot expired and another instance took it over
		store.values["vs:submission:s1"] = "someone-else"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "someone-else", store.values["vs:submission:s1"])
}

func TestGateSurfacesStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	gate, err := NewGate(store, 0)
	require.NoError(t, err)

	err = gate.Do(context.Background(), "s1", func(context.Context) error { return nil })
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestNewAdmitter(t *testing.T) {
	q := NewQueue(time.Second)
	gate, err := NewGate(newMemoryStore(), time.Minute)
	require.NoError(t, err)

	a, err := NewAdmitter("queue", q, nil)
	require.NoError(t, err)
	assert.Same(t, q, a)

	a, err = NewAdmitter("REJECT", nil, gate)
	require.NoError(t, err)
	assert.Same(t, gate, a)

	_, err = NewAdmitter("reject", q, nil)
	require.Error(t, err)
	_, err = NewAdmitter("lottery", q, gate)
	require.Error(t, err)
}
