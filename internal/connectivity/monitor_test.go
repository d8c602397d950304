package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) handle(_ context.Context, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, online)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestMonitor_Set(t *testing.T) {
	ctx := context.Background()
	m := NewMonitor(nil, time.Second, false, nil)
	rec := &recorder{}
	m.OnChange(rec.handle)

	assert.False(t, m.Set(ctx, false), "same state is not a transition")
	assert.True(t, m.Set(ctx, true))
	assert.True(t, m.IsOnline())
	assert.False(t, m.Set(ctx, true))
	assert.True(t, m.Set(ctx, false))
	assert.True(t, m.Set(ctx, true))

	assert.Equal(t, []bool{true, false, true}, rec.get())
}

func TestMonitor_HandlersInOrder(t *testing.T) {
	m := NewMonitor(nil, time.Second, false, nil)
	var order []string
	m.OnChange(func(context.Context, bool) { order = append(order, "resync") })
	m.OnChange(func(context.Context, bool) { order = append(order, "status") })

	m.Set(context.Background(), true)
	assert.Equal(t, []string{"resync", "status"}, order)
}

func TestMonitor_Check(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	m := NewMonitor(HealthCheckFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("connection refused")
		}
		return nil
	}), time.Second, false, nil)

	assert.True(t, m.Check(ctx))
	assert.True(t, m.IsOnline())

	fail.Store(true)
	assert.True(t, m.Check(ctx))
	assert.False(t, m.IsOnline())
	assert.False(t, m.Check(ctx))
}

func TestMonitor_Run(t *testing.T) {
	var checks atomic.Int32
	m := NewMonitor(HealthCheckFunc(func(context.Context) error {
		checks.Add(1)
		return nil
	}), 10*time.Millisecond, false, nil)

	transitions := make(chan bool, 4)
	m.OnChange(func(_ context.Context, online bool) { transitions <- online })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case online := <-transitions:
		assert.True(t, online)
	case <-time.After(2 * time.Second):
		t.Fatal("no transition observed")
	}

	require.Eventually(t, func() bool { return checks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// Repeated successful checks produce a single transition.
	assert.Len(t, transitions, 0)
}
