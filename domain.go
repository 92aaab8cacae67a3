package session

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Domain bundles the Store, Coordinator and Bootstrapper of one identity
// domain around its Backend. Domains never share mutable state, so a failed
// refresh in one leaves every other domain untouched.
type Domain[I any] struct {
	name         string
	backend      Backend[I]
	store        *Store[I]
	coordinator  *Coordinator
	bootstrapper *Bootstrapper[I]
	logger       Logger
	activity     activityRecorder
	closeOnce    sync.Once
}

// NewDomain wires a domain named name over backend.
func NewDomain[I any](name string, backend Backend[I], opts ...Option) (*Domain[I], error) {
	if name == "" {
		return nil, ErrDomainRequired
	}
	if backend == nil {
		return nil, ErrBackendRequired.Clone().WithMetadata(map[string]any{
			"domain": name,
		})
	}

	o := buildOptions(opts...)
	store := newStore[I](name, o)

	coordinator, err := newCoordinator(name, backend.Refresh, o)
	if err != nil {
		return nil, err
	}
	// A failed refresh only signs out the session it was started for. A login
	// or logout that landed while the flight was running wins.
	coordinator.stamp = func() uint64 { return store.Get().Version }
	coordinator.onFailure = func(ctx context.Context, rerr *RefreshError, version uint64) {
		store.signOut(ctx, transientCause(rerr), func(current State[I]) bool {
			return current.Version != version
		})
	}

	bootstrapper, err := newBootstrapper(store, coordinator, backend.ResolveIdentity, o)
	if err != nil {
		return nil, err
	}

	loggerName := "session." + name
	return &Domain[I]{
		name:         name,
		backend:      backend,
		store:        store,
		coordinator:  coordinator,
		bootstrapper: bootstrapper,
		logger:       o.loggerFor(loggerName),
		activity:     o.recorder(name, loggerName),
	}, nil
}

// Name returns the domain name.
func (d *Domain[I]) Name() string {
	return d.name
}

// State returns the current session state.
func (d *Domain[I]) State() State[I] {
	return d.store.Get()
}

// Store exposes the read side of the domain state.
func (d *Domain[I]) Store() *Store[I] {
	return d.store
}

// Coordinator returns the refresh coordinator of the domain.
func (d *Domain[I]) Coordinator() *Coordinator {
	return d.coordinator
}

// Subscribe registers fn for state changes. See Store.Subscribe.
func (d *Domain[I]) Subscribe(fn func(State[I])) (unsubscribe func()) {
	return d.store.Subscribe(fn)
}

// Bootstrap runs the memoized start-up sequence.
func (d *Domain[I]) Bootstrap(ctx context.Context) (State[I], error) {
	return d.bootstrapper.Run(ctx)
}

// BootstrapDone is closed once the start-up sequence has finished.
func (d *Domain[I]) BootstrapDone() <-chan struct{} {
	return d.bootstrapper.Done()
}

// EnsureFreshSession delegates to the domain coordinator.
func (d *Domain[I]) EnsureFreshSession(ctx context.Context) error {
	return d.coordinator.EnsureFreshSession(ctx)
}

// Do runs call under the replay policy of the domain. See Execute.
func (d *Domain[I]) Do(ctx context.Context, call func(ctx context.Context) error) error {
	_, err := Execute(ctx, d.coordinator, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}

// Login performs the domain login call followed by an identity lookup.
// Any failure leaves the domain signed out and is returned to the caller.
func (d *Domain[I]) Login(ctx context.Context, payload LoginPayload) (I, error) {
	var zero I

	if payload == nil {
		return zero, goerrors.New("login payload is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if validator, ok := payload.(interface{ Validate() error }); ok {
		if err := validator.Validate(); err != nil {
			d.recordLogin(ctx, payload, err)
			return zero, err
		}
	}

	if _, err := d.store.beginResolving(ctx, nil); err != nil {
		return zero, err
	}

	if err := d.backend.Login(ctx, payload); err != nil {
		d.store.signOut(ctx, nil, nil)
		d.recordLogin(ctx, payload, err)
		return zero, err
	}

	identity, err := d.backend.ResolveIdentity(ctx)
	if err != nil {
		d.store.signOut(ctx, transientCause(err), nil)
		d.recordLogin(ctx, payload, err)
		return zero, err
	}

	if _, err := d.store.authenticate(ctx, identity, nil); err != nil {
		d.recordLogin(ctx, payload, err)
		return zero, err
	}

	d.recordLogin(ctx, payload, nil)
	return identity, nil
}

func (d *Domain[I]) recordLogin(ctx context.Context, payload LoginPayload, err error) {
	meta := map[string]any{"identifier": payload.GetIdentifier()}
	event := ActivityEvent{EventType: ActivityEventLoginSuccess, Metadata: meta}
	if err != nil {
		meta["error"] = err.Error()
		event.EventType = ActivityEventLoginFailure
		d.logger.Info("login failed", "domain", d.name, "identifier", payload.GetIdentifier(), "error", err)
	} else {
		d.logger.Info("login succeeded", "domain", d.name, "identifier", payload.GetIdentifier())
	}
	d.activity.record(ctx, event)
}

// Logout calls the backend logout endpoint best effort and then signs the
// domain out regardless of the outcome.
func (d *Domain[I]) Logout(ctx context.Context) {
	if err := d.backend.Logout(ctx); err != nil {
		d.logger.Warn("logout call failed", "domain", d.name, "error", err)
	}

	from := d.store.Get().Status
	if _, _, err := d.store.transition(ctx, StatusSignedOut, nil, signedOutState[I](nil)); goerrors.Is(err, ErrStoreClosed) {
		return
	}
	d.activity.record(ctx, ActivityEvent{
		EventType:  ActivityEventLogout,
		FromStatus: from,
		ToStatus:   StatusSignedOut,
	})
}

// Close tears down the coordinator and any running bootstrap. Waiters
// blocked on a refresh return ErrCoordinatorClosed. The store is sealed
// first: later writes are dropped, subscribers are not called again and a
// resolving state settles to signed out. Close may be called from a
// subscriber.
func (d *Domain[I]) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.store.seal()
		d.bootstrapper.Close()
		err = d.coordinator.Close()
	})
	return err
}
