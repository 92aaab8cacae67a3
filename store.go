package session

import (
	"context"
	"sync"
)

// Store holds the observable authentication state of one identity domain.
// Reads are safe from any goroutine. Writes are reserved to the domain's
// Coordinator, Bootstrapper, Login and Logout.
type Store[I any] struct {
	domain      string
	mu          sync.RWMutex
	state       State[I]
	subsMu      sync.Mutex
	subs        []*subscription[I]
	transitions map[Status]map[Status]struct{}
	logger      Logger
	activity    activityRecorder
	metrics     Metrics
	opts        *options
	sealed      bool
}

type subscription[I any] struct {
	mu     sync.Mutex
	fn     func(State[I])
	active bool
	last   uint64
}

// NewStore returns a store that starts signed out.
func NewStore[I any](domain string, opts ...Option) *Store[I] {
	o := buildOptions(opts...)
	return newStore[I](domain, o)
}

func newStore[I any](domain string, o *options) *Store[I] {
	loggerName := "session." + domain + ".store"
	return &Store[I]{
		domain: domain,
		state: State[I]{
			Status:    StatusSignedOut,
			ChangedAt: o.now(),
		},
		transitions: map[Status]map[Status]struct{}{
			StatusSignedOut: {
				StatusResolving: {},
			},
			StatusResolving: {
				StatusSignedOut:     {},
				StatusAuthenticated: {},
			},
			StatusAuthenticated: {
				StatusSignedOut:     {},
				StatusResolving:     {},
				StatusAuthenticated: {},
			},
		},
		logger:   o.loggerFor(loggerName),
		activity: o.recorder(domain, loggerName),
		metrics:  o.metrics,
		opts:     o,
	}
}

// Domain returns the identity domain name.
func (s *Store[I]) Domain() string {
	return s.domain
}

// Get returns the current state.
func (s *Store[I]) Get() State[I] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to be called after every applied transition.
// Callbacks run synchronously on the writer's goroutine, in subscription
// order, and never receive a state older than one they already saw. The
// returned function unregisters fn; once it returns fn is never invoked
// again. Neither Subscribe nor the unsubscribe call may be issued from inside
// fn, spawn a goroutine for follow-up work instead. Closing the owning Domain
// from inside fn is allowed; no callback starts after the store is sealed.
func (s *Store[I]) Subscribe(fn func(State[I])) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	sub := &subscription[I]{fn: fn, active: true}

	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.mu.Lock()
			sub.active = false
			sub.mu.Unlock()

			s.subsMu.Lock()
			for i, candidate := range s.subs {
				if candidate == sub {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
			s.subsMu.Unlock()
		})
	}
}

// rejectFunc reports whether a write must be dropped given the current state.
// It runs under the store lock, so the check and the write are atomic.
type rejectFunc[I any] func(current State[I]) bool

func (s *Store[I]) beginResolving(ctx context.Context, reject rejectFunc[I]) (State[I], error) {
	st, _, err := s.transition(ctx, StatusResolving, reject, func(st *State[I]) {
		var zero I
		st.Identity = zero
		st.Err = nil
	})
	return st, err
}

func (s *Store[I]) authenticate(ctx context.Context, identity I, reject rejectFunc[I]) (State[I], error) {
	st, _, err := s.transition(ctx, StatusAuthenticated, reject, func(st *State[I]) {
		st.Identity = identity
		st.Err = nil
	})
	return st, err
}

// signOut moves the store to signed out. It reports false when the store
// was already signed out or the write was rejected, in which case no
// notification is sent.
func (s *Store[I]) signOut(ctx context.Context, cause error, reject rejectFunc[I]) (State[I], bool) {
	st, changed, _ := s.transition(ctx, StatusSignedOut, reject, signedOutState[I](cause))
	return st, changed
}

func signedOutState[I any](cause error) func(*State[I]) {
	return func(st *State[I]) {
		var zero I
		st.Identity = zero
		st.Err = cause
	}
}

// seal stops every later write and notification. A store caught resolving
// settles to signed out without notifying anyone.
func (s *Store[I]) seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.sealed = true
	s.settleLocked()
}

// settle moves a store still resolving at version to signed out without
// notifying. It is a no-op when any other write happened since.
func (s *Store[I]) settle(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Version != version {
		return false
	}
	return s.settleLocked()
}

func (s *Store[I]) settleLocked() bool {
	if s.state.Status != StatusResolving {
		return false
	}
	var zero I
	s.state.Status = StatusSignedOut
	s.state.Identity = zero
	s.state.Err = nil
	s.state.Version++
	s.state.ChangedAt = s.opts.now()
	s.logger.Debug("session state settled", "domain", s.domain, "version", s.state.Version)
	return true
}

func (s *Store[I]) isSealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

func (s *Store[I]) transition(ctx context.Context, target Status, reject rejectFunc[I], apply func(*State[I])) (State[I], bool, error) {
	s.mu.Lock()
	from := s.state.Status

	if s.sealed || (reject != nil && reject(s.state)) {
		current := s.state
		s.mu.Unlock()
		s.logger.Debug("session state write dropped", "domain", s.domain, "from", from, "to", target)
		return current, false, ErrStoreClosed
	}

	if from == target && target != StatusAuthenticated {
		current := s.state
		s.mu.Unlock()
		return current, false, nil
	}

	if !s.canTransition(from, target) {
		current := s.state
		s.mu.Unlock()
		s.logger.Debug("session state transition rejected", "domain", s.domain, "from", from, "to", target)
		return current, false, ErrInvalidTransition
	}

	next := s.state
	next.Status = target
	apply(&next)
	next.Version = s.state.Version + 1
	next.ChangedAt = s.opts.now()
	s.state = next
	s.mu.Unlock()

	s.logger.Debug("session state changed", "domain", s.domain, "from", from, "to", target, "version", next.Version)
	s.metrics.StateChanged(s.domain, from, target)

	meta := map[string]any{"version": next.Version}
	if next.Err != nil {
		meta["error"] = next.Err.Error()
	}
	s.activity.record(ctx, ActivityEvent{
		EventType:  ActivityEventStateChanged,
		FromStatus: from,
		ToStatus:   target,
		Metadata:   meta,
	})

	s.notify(next)
	return next, true, nil
}

func (s *Store[I]) canTransition(from, to Status) bool {
	if allowed, ok := s.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (s *Store[I]) notify(state State[I]) {
	s.subsMu.Lock()
	subs := make([]*subscription[I], len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		if s.isSealed() {
			return
		}
		sub.mu.Lock()
		if sub.active && state.Version > sub.last {
			sub.last = state.Version
			sub.fn(state)
		}
		sub.mu.Unlock()
	}
}
