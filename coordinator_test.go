package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorSingleFlight(t *testing.T) {
	const callers = 25

	var calls atomic.Int32
	release := make(chan struct{})

	c, err := session.NewCoordinator("tenant", func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	})
	require.NoError(t, err)

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.EnsureFreshSession(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return c.Stats().Joined == callers-1
	}, time.Second, time.Millisecond)
	assert.Equal(t, session.PhaseRefreshing, c.Phase())

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.NoError(t, err)
	}

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Flights)
	assert.Equal(t, uint64(1), stats.Renewed)
	assert.Equal(t, uint64(0), stats.Failed)
	assert.Equal(t, session.PhaseIdle, c.Phase())
}

func TestCoordinatorFanOutSharesFailure(t *testing.T) {
	const callers = 10

	cause := errors.New("refresh cookie revoked")
	release := make(chan struct{})
	var calls atomic.Int32

	c, err := session.NewCoordinator("owner", func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return cause
	})
	require.NoError(t, err)

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.EnsureFreshSession(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return c.Stats().Joined == callers-1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	var first *session.RefreshError
	require.ErrorAs(t, errs[0], &first)
	assert.Equal(t, "owner", first.Domain)
	assert.NotEmpty(t, first.FlightID)

	for _, err := range errs {
		assert.ErrorIs(t, err, session.ErrRefreshFailed)
		assert.ErrorIs(t, err, cause)

		var refreshErr *session.RefreshError
		require.ErrorAs(t, err, &refreshErr)
		assert.Same(t, first, refreshErr)
	}
}

func TestCoordinatorDoesNotRetryFailedRefresh(t *testing.T) {
	var calls atomic.Int32
	c, err := session.NewCoordinator("admin", func(ctx context.Context) error {
		calls.Add(1)
		return session.ErrUnauthorized
	})
	require.NoError(t, err)

	err = c.EnsureFreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, session.IsRefreshFailed(err))
	assert.False(t, session.IsUnauthorized(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, session.PhaseIdle, c.Phase())
}

func TestCoordinatorStartsNewFlightAfterCompletion(t *testing.T) {
	var calls atomic.Int32
	c, err := session.NewCoordinator("tenant", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.EnsureFreshSession(context.Background()))
	require.NoError(t, c.EnsureFreshSession(context.Background()))

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, uint64(2), c.Stats().Flights)
}

func TestCoordinatorWaiterCancellationDetaches(t *testing.T) {
	release := make(chan struct{})
	c, err := session.NewCoordinator("tenant", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	leaderDone := make(chan error, 1)
	go func() {
		leaderDone <- c.EnsureFreshSession(context.Background())
	}()

	require.Eventually(t, func() bool {
		return c.Phase() == session.PhaseRefreshing
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		waiterDone <- c.EnsureFreshSession(ctx)
	}()

	require.Eventually(t, func() bool {
		return c.Stats().Joined == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-waiterDone, context.Canceled)
	assert.Equal(t, session.PhaseRefreshing, c.Phase())

	close(release)
	assert.NoError(t, <-leaderDone)
}

func TestCoordinatorCallerCancellationDoesNotAbortRefresh(t *testing.T) {
	release := make(chan struct{})
	refreshCtxErr := make(chan error, 1)

	c, err := session.NewCoordinator("tenant", func(ctx context.Context) error {
		<-release
		refreshCtxErr <- ctx.Err()
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		leaderDone <- c.EnsureFreshSession(ctx)
	}()

	require.Eventually(t, func() bool {
		return c.Phase() == session.PhaseRefreshing
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)

	close(release)
	assert.NoError(t, <-refreshCtxErr)
	require.Eventually(t, func() bool {
		return c.Phase() == session.PhaseIdle
	}, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), c.Stats().Renewed)
}

func TestCoordinatorCloseReleasesWaiters(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c, err := session.NewCoordinator("admin", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	})
	require.NoError(t, err)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- c.EnsureFreshSession(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		return c.Stats().Joined == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-done, session.ErrCoordinatorClosed)
	assert.ErrorIs(t, <-done, session.ErrCoordinatorClosed)

	assert.ErrorIs(t, c.EnsureFreshSession(context.Background()), session.ErrCoordinatorClosed)
	assert.NoError(t, c.Close())
}

func TestCoordinatorRecoversRefreshPanic(t *testing.T) {
	c, err := session.NewCoordinator("owner", func(ctx context.Context) error {
		panic("boom")
	})
	require.NoError(t, err)

	err = c.EnsureFreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, session.IsRefreshFailed(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestCoordinatorRequiresRefreshFunc(t *testing.T) {
	c, err := session.NewCoordinator("owner", nil)
	require.Error(t, err)
	assert.Nil(t, c)
}

func TestCoordinatorReportsMetricsAndActivity(t *testing.T) {
	sink := &recordingSink{}
	metrics := &recordingMetrics{}

	c, err := session.NewCoordinator("tenant", func(ctx context.Context) error {
		return errors.New("gateway timeout")
	}, session.WithActivitySink(sink), session.WithMetrics(metrics))
	require.NoError(t, err)

	require.Error(t, c.EnsureFreshSession(context.Background()))

	assert.Equal(t, 1, metrics.started)
	assert.Equal(t, 1, metrics.finished)
	assert.Equal(t, 1, metrics.failed)
	assert.Equal(t, []session.ActivityEventType{
		session.ActivityEventRefreshStarted,
		session.ActivityEventRefreshFailed,
	}, sink.types())
}
