package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
)

func pendingTestContext(id string) *Context {
	opts := Options{ID: id, Logger: logging.NewNop()}
	opts.defaults()
	return build(nil, nil, false, opts)
}

func TestPendingTakeClaimsExactlyOnce(t *testing.T) {
	s := NewPendingStore(time.Minute, logging.NewNop(), nil)
	s.Add(pendingTestContext("sess_a"))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take("sess_a"); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, 0, s.Size())
}

func TestPendingExpiryTearsDownUnclaimed(t *testing.T) {
	s := NewPendingStore(10*time.Millisecond, logging.NewNop(), nil)
	ctx := pendingTestContext("sess_b")
	s.Add(ctx)

	require.Eventually(t, func() bool {
		return s.Size() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := s.Take("sess_b")
	assert.False(t, ok, "expired session must not be claimable")

	require.Eventually(t, func() bool {
		ctx.mu.Lock()
		defer ctx.mu.Unlock()
		return ctx.closed
	}, time.Second, 5*time.Millisecond, "expired session must be torn down")
}

func TestPendingTakeBeforeExpiryWins(t *testing.T) {
	s := NewPendingStore(50*time.Millisecond, logging.NewNop(), nil)
	ctx := pendingTestContext("sess_c")
	s.Add(ctx)

	got, ok := s.Take("sess_c")
	require.True(t, ok)
	assert.Same(t, ctx, got)

	// The disarmed timer must not tear the claimed session down later.
	time.Sleep(80 * time.Millisecond)
	ctx.mu.Lock()
	closed := ctx.closed
	ctx.mu.Unlock()
	assert.False(t, closed)
}

func TestPendingUnknownID(t *testing.T) {
	s := NewPendingStore(time.Minute, logging.NewNop(), nil)
	_, ok := s.Take("sess_missing")
	assert.False(t, ok)
}

func TestPendingReAddReplacesEarlierEntry(t *testing.T) {
	s := NewPendingStore(time.Minute, logging.NewNop(), nil)
	first := pendingTestContext("sess_d")
	second := pendingTestContext("sess_d")
	s.Add(first)
	s.Add(second)

	assert.Equal(t, 1, s.Size())
	got, ok := s.Take("sess_d")
	require.True(t, ok)
	assert.Same(t, second, got)

	require.Eventually(t, func() bool {
		first.mu.Lock()
		defer first.mu.Unlock()
		return first.closed
	}, time.Second, 5*time.Millisecond)
}

func TestPendingDrain(t *testing.T) {
	s := NewPendingStore(time.Minute, logging.NewNop(), nil)
	a := pendingTestContext("sess_e")
	b := pendingTestContext("sess_f")
	s.Add(a)
	s.Add(b)

	s.Drain()

	assert.Equal(t, 0, s.Size())
	for _, ctx := range []*Context{a, b} {
		ctx.mu.Lock()
		closed := ctx.closed
		ctx.mu.Unlock()
		assert.True(t, closed)
	}
}

func TestPendingReAddRestartsCountdown(t *testing.T) {
	s := NewPendingStore(60*time.Millisecond, logging.NewNop(), nil)
	ctx := pendingTestContext("sess_g")
	s.Add(ctx)

	time.Sleep(30 * time.Millisecond)
	s.Add(ctx)

	// Past the original deadline but within the restarted one: the session
	// must still be parked and untouched.
	time.Sleep(40 * time.Millisecond)
	ctx.mu.Lock()
	closed := ctx.closed
	ctx.mu.Unlock()
	assert.False(t, closed, "re-adding the same session must not tear it down")
	assert.Equal(t, 1, s.Size())

	got, ok := s.Take("sess_g")
	require.True(t, ok)
	assert.Same(t, ctx, got)
}
