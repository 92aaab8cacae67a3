package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func loggedInDomain(t *testing.T, backend *MockBackend, opts ...session.Option) *session.Domain[testIdentity] {
	t.Helper()
	payload := MockLoginPayload{Identifier: "user@example.com", Password: "secret"}
	backend.On("Login", mock.Anything, payload).Return(nil).Once()
	backend.On("ResolveIdentity", mock.Anything).Return(testIdentity{ID: "u-1"}, nil).Once()

	d := newTestDomain(t, backend, opts...)
	_, err := d.Login(context.Background(), payload)
	require.NoError(t, err)
	require.True(t, d.State().IsAuthenticated())
	return d
}

func TestNewDomainValidatesArguments(t *testing.T) {
	_, err := session.NewDomain[testIdentity]("", &MockBackend{})
	assert.ErrorIs(t, err, session.ErrDomainRequired)

	_, err = session.NewDomain[testIdentity]("admin", nil)
	require.Error(t, err)
}

func TestDomainLoginResolvesIdentity(t *testing.T) {
	backend := &MockBackend{}
	recorder := &stateRecorder{}
	sink := &recordingSink{}

	payload := MockLoginPayload{Identifier: "owner@example.com", Password: "secret"}
	identity := testIdentity{ID: "o-1", Email: "owner@example.com"}
	backend.On("Login", mock.Anything, payload).Return(nil).Once()
	backend.On("ResolveIdentity", mock.Anything).Return(identity, nil).Once()

	d := newTestDomain(t, backend, session.WithActivitySink(sink))
	d.Subscribe(recorder.observe)

	got, err := d.Login(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
	assert.Equal(t, identity, d.State().Identity)
	assert.Equal(t, []session.Status{session.StatusResolving, session.StatusAuthenticated}, recorder.statuses())
	assert.Equal(t, 1, sink.count(session.ActivityEventLoginSuccess))
	backend.AssertExpectations(t)
}

func TestDomainLoginFailureSignsOut(t *testing.T) {
	backend := &MockBackend{}
	sink := &recordingSink{}
	cause := errors.New("invalid credentials")
	payload := MockLoginPayload{Identifier: "owner@example.com", Password: "wrong"}
	backend.On("Login", mock.Anything, payload).Return(cause).Once()

	d := newTestDomain(t, backend, session.WithActivitySink(sink))

	_, err := d.Login(context.Background(), payload)
	assert.Same(t, cause, err)
	assert.True(t, d.State().IsSignedOut())
	assert.False(t, d.State().IsTransient())
	assert.Equal(t, 1, sink.count(session.ActivityEventLoginFailure))
	backend.AssertNotCalled(t, "ResolveIdentity", mock.Anything)
}

func TestDomainLoginIdentityFailureSignsOut(t *testing.T) {
	backend := &MockBackend{}
	payload := MockLoginPayload{Identifier: "owner@example.com", Password: "secret"}
	backend.On("Login", mock.Anything, payload).Return(nil).Once()
	backend.On("ResolveIdentity", mock.Anything).Return(testIdentity{}, session.ErrUnauthorized).Once()

	d := newTestDomain(t, backend)

	_, err := d.Login(context.Background(), payload)
	assert.ErrorIs(t, err, session.ErrUnauthorized)
	assert.True(t, d.State().IsSignedOut())
	backend.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestDomainLoginValidatesCredentials(t *testing.T) {
	backend := &MockBackend{}
	d := newTestDomain(t, backend)

	_, err := d.Login(context.Background(), session.Credentials{Identifier: "owner@example.com"})
	require.Error(t, err)
	assert.True(t, d.State().IsSignedOut())
	backend.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestDomainLogoutSwallowsBackendError(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Logout", mock.Anything).Return(errors.New("network down")).Once()

	sink := &recordingSink{}
	d := loggedInDomain(t, backend, session.WithActivitySink(sink))

	d.Logout(context.Background())
	assert.True(t, d.State().IsSignedOut())
	assert.False(t, d.State().IsTransient())
	assert.Equal(t, 1, sink.count(session.ActivityEventLogout))
	backend.AssertExpectations(t)
}

func TestDomainFailedRefreshSignsOutOnce(t *testing.T) {
	backend := &MockBackend{}
	release := make(chan struct{})
	backend.On("Refresh", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(session.ErrUnauthorized).Once()

	d := loggedInDomain(t, backend)

	recorder := &stateRecorder{}
	d.Subscribe(recorder.observe)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = d.Do(context.Background(), func(ctx context.Context) error {
				return session.ErrUnauthorized
			})
		}(i)
	}

	require.Eventually(t, func() bool {
		return d.Coordinator().Stats().Joined == callers-1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.True(t, session.IsRefreshFailed(err))
	}
	assert.Equal(t, []session.Status{session.StatusSignedOut}, recorder.statuses())
	assert.True(t, d.State().IsSignedOut())
	backend.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestDomainStoreSignedOutBeforeWaitersRelease(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Refresh", mock.Anything).Return(errors.New("refresh rejected")).Once()

	d := loggedInDomain(t, backend)

	err := d.EnsureFreshSession(context.Background())
	require.Error(t, err)
	assert.True(t, d.State().IsSignedOut())
}

func TestDomainRefreshAfterCloseDoesNotTouchStore(t *testing.T) {
	backend := &MockBackend{}
	release := make(chan struct{})
	backend.On("Refresh", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(errors.New("refresh rejected")).Once()

	d := loggedInDomain(t, backend)

	notified := false
	d.Subscribe(func(session.State[testIdentity]) { notified = true })

	done := make(chan error, 1)
	go func() {
		done <- d.EnsureFreshSession(context.Background())
	}()

	require.Eventually(t, func() bool {
		return d.Coordinator().Phase() == session.PhaseRefreshing
	}, time.Second, time.Millisecond)

	require.NoError(t, d.Close())
	assert.ErrorIs(t, <-done, session.ErrCoordinatorClosed)

	close(release)
	require.Eventually(t, func() bool {
		return d.Coordinator().Phase() == session.PhaseIdle
	}, time.Second, time.Millisecond)

	assert.True(t, d.State().IsAuthenticated())
	assert.False(t, notified)
}

func TestDomainsAreIsolated(t *testing.T) {
	adminBackend := &MockBackend{}
	adminBackend.On("Refresh", mock.Anything).Return(session.ErrUnauthorized).Once()
	admin := loggedInDomain(t, adminBackend)

	tenantBackend := &MockBackend{}
	tenant := loggedInDomain(t, tenantBackend)
	before := tenant.State()

	err := admin.Do(context.Background(), func(ctx context.Context) error {
		return session.ErrUnauthorized
	})
	require.Error(t, err)
	assert.True(t, admin.State().IsSignedOut())

	assert.Equal(t, before, tenant.State())
	assert.Equal(t, session.PhaseIdle, tenant.Coordinator().Phase())
	assert.Equal(t, uint64(0), tenant.Coordinator().Stats().Flights)
	tenantBackend.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestDomainDoReplaysAfterRenewal(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Refresh", mock.Anything).Return(nil).Once()
	d := loggedInDomain(t, backend)

	calls := 0
	err := d.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return session.ErrUnauthorized
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, d.State().IsAuthenticated())
}

func TestDomainCloseFromSubscriberReleasesWaiters(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Refresh", mock.Anything).Return(errors.New("refresh rejected")).Once()

	d := loggedInDomain(t, backend)

	recorder := &stateRecorder{}
	d.Subscribe(func(st session.State[testIdentity]) {
		recorder.observe(st)
		if st.IsSignedOut() {
			assert.NoError(t, d.Close())
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- d.EnsureFreshSession(context.Background())
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, session.IsRefreshFailed(err) || errors.Is(err, session.ErrCoordinatorClosed), err.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("waiter still blocked after the domain was closed from a subscriber")
	}

	assert.True(t, d.State().IsSignedOut())
	assert.Equal(t, []session.Status{session.StatusSignedOut}, recorder.statuses())
	assert.ErrorIs(t, d.EnsureFreshSession(context.Background()), session.ErrCoordinatorClosed)

	_, err := d.Login(context.Background(), MockLoginPayload{Identifier: "user@example.com", Password: "secret"})
	assert.ErrorIs(t, err, session.ErrStoreClosed)
	assert.Equal(t, []session.Status{session.StatusSignedOut}, recorder.statuses())
}

func TestDomainBootstrapAfterCloseStartsNothing(t *testing.T) {
	backend := &MockBackend{}
	d := newTestDomain(t, backend)

	recorder := &stateRecorder{}
	d.Subscribe(recorder.observe)
	require.NoError(t, d.Close())

	st, err := d.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsSignedOut())
	assert.True(t, d.State().IsSignedOut())
	assert.Empty(t, recorder.statuses())

	select {
	case <-d.BootstrapDone():
	default:
		t.Fatal("bootstrap not reported as done")
	}
	backend.AssertNotCalled(t, "ResolveIdentity", mock.Anything)
	backend.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestDomainCloseDuringBootstrapSettlesStore(t *testing.T) {
	backend := &MockBackend{}
	backend.On("ResolveIdentity", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(testIdentity{}, context.Canceled).Once()

	metrics := &recordingMetrics{}
	d := newTestDomain(t, backend, session.WithMetrics(metrics))

	recorder := &stateRecorder{}
	d.Subscribe(recorder.observe)

	type result struct {
		state session.State[testIdentity]
		err   error
	}
	done := make(chan result, 1)
	go func() {
		st, err := d.Bootstrap(context.Background())
		done <- result{st, err}
	}()

	require.Eventually(t, func() bool {
		return d.State().Status == session.StatusResolving
	}, time.Second, time.Millisecond)
	require.NoError(t, d.Close())

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.state.IsSignedOut())
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap did not finish after close")
	}

	assert.True(t, d.State().IsSignedOut())
	assert.Equal(t, []session.Status{session.StatusResolving}, recorder.statuses())
	assert.Empty(t, metrics.bootstraps)
	backend.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestDomainStaleRefreshFailureKeepsNewerLogin(t *testing.T) {
	backend := &MockBackend{}
	release := make(chan struct{})
	backend.On("Refresh", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(errors.New("refresh rejected")).Once()

	d := loggedInDomain(t, backend)

	done := make(chan error, 1)
	go func() {
		done <- d.EnsureFreshSession(context.Background())
	}()
	require.Eventually(t, func() bool {
		return d.Coordinator().Phase() == session.PhaseRefreshing
	}, time.Second, time.Millisecond)

	payload := MockLoginPayload{Identifier: "other@example.com", Password: "secret"}
	backend.On("Login", mock.Anything, payload).Return(nil).Once()
	backend.On("ResolveIdentity", mock.Anything).Return(testIdentity{ID: "u-2"}, nil).Once()
	_, err := d.Login(context.Background(), payload)
	require.NoError(t, err)

	close(release)
	assert.True(t, session.IsRefreshFailed(<-done))

	st := d.State()
	assert.True(t, st.IsAuthenticated())
	assert.Equal(t, "u-2", st.Identity.ID)
}
