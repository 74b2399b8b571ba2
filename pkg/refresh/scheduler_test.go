package refresh

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

// blockingFunc counts calls and blocks each one until release is closed.
type blockingFunc struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingFunc() *blockingFunc {
	return &blockingFunc{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (b *blockingFunc) run(ctx context.Context) error {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return nil
}

func TestTickInactiveIsNoop(t *testing.T) {
	s := New(nil)
	var calls int
	s.Register(Modules, time.Second, func(context.Context) error { calls++; return nil })
	s.Register(Dashboard, time.Second, func(context.Context) error { return nil })
	require.NoError(t, s.SetActive(Dashboard))

	outcome, err := s.Tick(context.Background(), Modules)
	require.NoError(t, err)
	assert.Equal(t, Inactive, outcome)
	assert.Zero(t, calls)
}

func TestTickGated(t *testing.T) {
	s := New(nil)
	open := false
	var calls int
	s.Register(Dashboard, time.Second, func(context.Context) error { calls++; return nil },
		WithGate(func() bool { return open }))
	require.NoError(t, s.SetActive(Dashboard))

	outcome, _ := s.Tick(context.Background(), Dashboard)
	assert.Equal(t, Gated, outcome)

	require.NoError(t, s.Run(context.Background(), Dashboard), "manual refresh ignores the gate")
	assert.Equal(t, 1, calls)

	open = true
	outcome, _ = s.Tick(context.Background(), Dashboard)
	assert.Equal(t, Ran, outcome)
	assert.Equal(t, 2, calls)
}

func TestTickSkippedWhileInFlight(t *testing.T) {
	s := New(nil)
	fn := newBlockingFunc()
	s.Register(Modules, time.Second, fn.run)
	require.NoError(t, s.SetActive(Modules))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Tick(context.Background(), Modules)
	}()
	<-fn.started

	outcome, err := s.Tick(context.Background(), Modules)
	require.NoError(t, err)
	assert.Equal(t, Busy, outcome)

	close(fn.release)
	<-done
	assert.Equal(t, int32(1), fn.calls.Load())
}

func TestManualRefreshBlocksTicks(t *testing.T) {
	s := New(nil)
	fn := newBlockingFunc()
	s.Register(Modules, time.Second, fn.run)
	require.NoError(t, s.SetActive(Modules))

	done := make(chan error)
	go func() { done <- s.Run(context.Background(), Modules) }()
	<-fn.started

	outcome, _ := s.Tick(context.Background(), Modules)
	assert.Equal(t, Busy, outcome)

	close(fn.release)
	require.NoError(t, <-done)
}

func TestRunWaitsForInFlightTick(t *testing.T) {
	s := New(nil)
	var mu sync.Mutex
	var running, maxRunning int
	s.Register(Modules, time.Second, func(context.Context) error {
		mu.Lock()
		running++
		maxRunning = max(maxRunning, running)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})
	require.NoError(t, s.SetActive(Modules))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(2)
		go func() { defer wg.Done(); _ = s.Run(context.Background(), Modules) }()
		go func() { defer wg.Done(); _, _ = s.Tick(context.Background(), Modules) }()
	}
	wg.Wait()
	assert.Equal(t, 1, maxRunning)
}

func TestSurfacesAreIndependent(t *testing.T) {
	s := New(nil)
	fn := newBlockingFunc()
	var dashCalls atomic.Int32
	s.Register(Modules, time.Second, fn.run)
	s.Register(Dashboard, time.Second, func(context.Context) error { dashCalls.Add(1); return nil })
	require.NoError(t, s.SetActive(Modules))

	go func() { _ = s.Run(context.Background(), Modules) }()
	<-fn.started

	require.NoError(t, s.Run(context.Background(), Dashboard))
	assert.Equal(t, int32(1), dashCalls.Load())
	close(fn.release)
}

func TestRunCanceledWhileWaiting(t *testing.T) {
	s := New(nil)
	fn := newBlockingFunc()
	s.Register(Modules, time.Second, fn.run)

	go func() { _ = s.Run(context.Background(), Modules) }()
	<-fn.started
	defer close(fn.release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx, Modules), context.DeadlineExceeded)
}

func TestRunReturnsRefreshError(t *testing.T) {
	s := New(nil)
	boom := errors.New("boom")
	s.Register(Modules, time.Second, func(context.Context) error { return boom })
	assert.ErrorIs(t, s.Run(context.Background(), Modules), boom)
}

func TestUnknownSurface(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.SetActive("settings"))
	assert.Error(t, s.Run(context.Background(), "settings"))
	_, err := s.Tick(context.Background(), "settings")
	assert.Error(t, err)
}

func TestExclusiveHoldsSlot(t *testing.T) {
	s := New(nil)
	var calls atomic.Int32
	s.Register(Modules, time.Second, func(context.Context) error { calls.Add(1); return nil })
	require.NoError(t, s.SetActive(Modules))

	err := s.Exclusive(context.Background(), Modules, func(ctx context.Context) error {
		outcome, _ := s.Tick(ctx, Modules)
		assert.Equal(t, Busy, outcome)
		return s.RunLocked(ctx, Modules)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoopTicksActiveSurface(t *testing.T) {
	s := New(nil)
	var calls atomic.Int32
	s.Register(Modules, 5*time.Millisecond, func(context.Context) error { calls.Add(1); return nil })
	s.Register(Dashboard, 5*time.Millisecond, func(context.Context) error {
		t.Error("inactive surface must not refresh")
		return nil
	})
	require.NoError(t, s.SetActive(Modules))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Greater(t, calls.Load(), int32(1))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "busy", Busy.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
