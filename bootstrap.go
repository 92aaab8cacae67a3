package session

import (
	"context"
	"sync"
	"sync/atomic"
)

// ResolveFunc returns the identity for the current session.
type ResolveFunc[I any] func(ctx context.Context) (I, error)

// Bootstrapper runs the start-up sequence that decides whether a prior
// session is still valid. The sequence runs once; every caller of Run,
// concurrent or later, receives the same resulting State.
type Bootstrapper[I any] struct {
	domain      string
	store       *Store[I]
	coordinator *Coordinator
	resolve     ResolveFunc[I]

	once   sync.Once
	done   chan struct{}
	state  State[I]
	err    error
	cancel context.CancelFunc
	mu     sync.Mutex
	closed atomic.Bool

	// version of the resolving state this sequence entered
	resolvingAt atomic.Uint64

	resolves  atomic.Uint32
	refreshes atomic.Uint32

	logger   Logger
	activity activityRecorder
	metrics  Metrics
}

// NewBootstrapper wires a bootstrap sequence over store and coordinator.
func NewBootstrapper[I any](store *Store[I], coordinator *Coordinator, resolve ResolveFunc[I], opts ...Option) (*Bootstrapper[I], error) {
	return newBootstrapper(store, coordinator, resolve, buildOptions(opts...))
}

func newBootstrapper[I any](store *Store[I], coordinator *Coordinator, resolve ResolveFunc[I], o *options) (*Bootstrapper[I], error) {
	if store == nil || coordinator == nil || resolve == nil {
		return nil, ErrBackendRequired.Clone().WithMetadata(map[string]any{
			"component": "bootstrapper",
		})
	}

	domain := store.Domain()
	loggerName := "session." + domain + ".bootstrap"
	return &Bootstrapper[I]{
		domain:      domain,
		store:       store,
		coordinator: coordinator,
		resolve:     resolve,
		done:        make(chan struct{}),
		logger:      o.loggerFor(loggerName),
		activity:    o.recorder(domain, loggerName),
		metrics:     o.metrics,
	}, nil
}

// Run starts the sequence on first use and waits for it to finish. The
// sequence is detached from ctx: a caller that gives up receives ctx.Err()
// and the current state while the sequence completes for everyone else.
//
// The returned error is the transient failure recorded in the state, if any.
// A rejected session is reported as a signed out state with a nil error.
func (b *Bootstrapper[I]) Run(ctx context.Context) (State[I], error) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.once.Do(func() {
		if b.closed.Load() {
			b.state = b.settled()
			close(b.done)
			return
		}
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.mu.Lock()
		b.cancel = cancel
		b.mu.Unlock()
		go b.sequence(runCtx)
	})

	select {
	case <-b.done:
		return b.state, b.err
	case <-ctx.Done():
		return b.store.Get(), ctx.Err()
	}
}

// Done returns a channel closed once the sequence has finished.
func (b *Bootstrapper[I]) Done() <-chan struct{} {
	return b.done
}

// Result returns the state a finished sequence produced. ok is false while
// the sequence has not run to completion.
func (b *Bootstrapper[I]) Result() (state State[I], ok bool) {
	select {
	case <-b.done:
		return b.state, true
	default:
		return State[I]{}, false
	}
}

// Close stops a running sequence. Results that arrive afterwards are
// dropped without touching the store, and a store left resolving by the
// sequence settles to signed out. Run after Close starts nothing.
func (b *Bootstrapper[I]) Close() {
	b.closed.Store(true)
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()
	b.store.settle(b.resolvingAt.Load())
}

func (b *Bootstrapper[I]) sequence(ctx context.Context) {
	defer close(b.done)

	st := b.steps(ctx)
	b.state = st
	b.err = st.Err

	if b.closed.Load() {
		b.logger.Debug("bootstrap closed", "domain", b.domain, "status", st.Status)
		return
	}

	b.metrics.BootstrapFinished(b.domain, st.Status, st.IsTransient())
	b.logger.Info("bootstrap completed",
		"domain", b.domain,
		"status", st.Status,
		"resolves", b.resolves.Load(),
		"refreshes", b.refreshes.Load(),
	)

	meta := map[string]any{
		"status":    st.Status,
		"resolves":  b.resolves.Load(),
		"refreshes": b.refreshes.Load(),
	}
	if st.Err != nil {
		meta["error"] = st.Err.Error()
	}
	b.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventBootstrapComplete,
		ToStatus:  st.Status,
		Metadata:  meta,
	})
}

func (b *Bootstrapper[I]) steps(ctx context.Context) State[I] {
	if b.closed.Load() {
		return b.settled()
	}
	if current := b.store.Get(); current.IsAuthenticated() {
		return current
	}

	st, err := b.store.beginResolving(ctx, b.rejectClosed)
	if err != nil {
		if b.closed.Load() {
			return b.settled()
		}
		b.logger.Warn("bootstrap could not enter resolving", "domain", b.domain, "error", err)
		return b.store.Get()
	}
	b.resolvingAt.Store(st.Version)

	identity, err := b.callResolve(ctx)
	if err == nil {
		return b.authenticated(ctx, identity)
	}

	if !IsUnauthorized(err) {
		return b.signedOut(ctx, err)
	}

	b.refreshes.Add(1)
	if ferr := b.coordinator.EnsureFreshSession(ctx); ferr != nil {
		b.logger.Debug("bootstrap refresh failed", "domain", b.domain, "error", ferr)
		return b.signedOut(ctx, transientCause(ferr))
	}

	identity, err = b.callResolve(ctx)
	if err == nil {
		return b.authenticated(ctx, identity)
	}
	return b.signedOut(ctx, transientCause(err))
}

func (b *Bootstrapper[I]) callResolve(ctx context.Context) (I, error) {
	b.resolves.Add(1)
	return b.resolve(ctx)
}

func (b *Bootstrapper[I]) authenticated(ctx context.Context, identity I) State[I] {
	st, err := b.store.authenticate(ctx, identity, b.rejectClosed)
	if err != nil {
		if b.closed.Load() {
			return b.dropped()
		}
		// a concurrent logout or failed refresh won the race
		b.logger.Debug("bootstrap identity discarded", "domain", b.domain, "error", err)
		return b.store.Get()
	}
	return st
}

func (b *Bootstrapper[I]) signedOut(ctx context.Context, cause error) State[I] {
	st, changed := b.store.signOut(ctx, cause, b.rejectClosed)
	if !changed && b.closed.Load() {
		return b.dropped()
	}
	return st
}

func (b *Bootstrapper[I]) rejectClosed(State[I]) bool {
	return b.closed.Load()
}

// dropped settles the resolving state this sequence left behind.
func (b *Bootstrapper[I]) dropped() State[I] {
	b.store.settle(b.resolvingAt.Load())
	return b.settled()
}

// settled is the state reported by a closed sequence. It never reports
// resolving, whatever the store holds.
func (b *Bootstrapper[I]) settled() State[I] {
	st := b.store.Get()
	if st.Status == StatusResolving {
		var zero I
		st.Status = StatusSignedOut
		st.Identity = zero
		st.Err = nil
	}
	return st
}
