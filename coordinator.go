package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RefreshFunc performs the domain's refresh call. A nil error means the
// session was renewed. The renewed credential travels outside the
// coordinator (an HTTP-only cookie set by the server).
type RefreshFunc func(ctx context.Context) error

// CoordinatorStats is a snapshot of coordinator counters.
type CoordinatorStats struct {
	Flights uint64 `json:"flights"`
	Joined  uint64 `json:"joined"`
	Renewed uint64 `json:"renewed"`
	Failed  uint64 `json:"failed"`
}

// Coordinator guarantees that at most one refresh is in flight for a domain
// and that every caller asking for a fresh session while it runs receives
// that refresh's outcome.
type Coordinator struct {
	domain  string
	refresh RefreshFunc

	mu      sync.Mutex
	flight  *flight
	closed  bool
	closeCh chan struct{}

	// stamp tags a flight at start; onFailure receives the tag back
	stamp     func() uint64
	onFailure func(ctx context.Context, err *RefreshError, stamp uint64)

	logger   Logger
	activity activityRecorder
	metrics  Metrics
	now      func() time.Time

	flights atomic.Uint64
	joined  atomic.Uint64
	renewed atomic.Uint64
	failed  atomic.Uint64
}

type flight struct {
	id      string
	done    chan struct{}
	err     *RefreshError
	cancel  context.CancelFunc
	started time.Time
	stamp   uint64
}

// NewCoordinator returns an idle coordinator for domain.
func NewCoordinator(domain string, refresh RefreshFunc, opts ...Option) (*Coordinator, error) {
	return newCoordinator(domain, refresh, buildOptions(opts...))
}

func newCoordinator(domain string, refresh RefreshFunc, o *options) (*Coordinator, error) {
	if refresh == nil {
		return nil, ErrBackendRequired.Clone().WithMetadata(map[string]any{
			"domain":    domain,
			"component": "coordinator",
		})
	}

	loggerName := "session." + domain + ".coordinator"
	return &Coordinator{
		domain:   domain,
		refresh:  refresh,
		closeCh:  make(chan struct{}),
		logger:   o.loggerFor(loggerName),
		activity: o.recorder(domain, loggerName),
		metrics:  o.metrics,
		now:      o.now,
	}, nil
}

// Domain returns the identity domain this coordinator serves.
func (c *Coordinator) Domain() string {
	return c.domain
}

// EnsureFreshSession starts a refresh when none is running, or attaches to
// the one in flight, and blocks until it completes. It returns nil when the
// session was renewed and a *RefreshError when it could not be. Every caller
// attached to the same flight receives the same *RefreshError value.
//
// Cancelling ctx detaches the caller, which then gets ctx.Err(); the refresh
// itself keeps running for the remaining waiters.
func (c *Coordinator) EnsureFreshSession(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}

	f := c.flight
	if f == nil {
		f = c.startLocked(ctx)
	} else {
		c.joined.Add(1)
		c.metrics.WaiterJoined(c.domain)
		c.logger.Debug("waiting for in-flight refresh", "domain", c.domain, "flight", f.id)
	}
	c.mu.Unlock()

	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeCh:
		select {
		case <-f.done:
			return f.result()
		default:
			return ErrCoordinatorClosed
		}
	}
}

func (f *flight) result() error {
	if f.err != nil {
		return f.err
	}
	return nil
}

func (c *Coordinator) startLocked(ctx context.Context) *flight {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{
		id:      uuid.NewString(),
		done:    make(chan struct{}),
		cancel:  cancel,
		started: c.now(),
	}
	if c.stamp != nil {
		f.stamp = c.stamp()
	}
	c.flight = f
	c.flights.Add(1)

	c.metrics.RefreshStarted(c.domain)
	c.logger.Debug("refresh started", "domain", c.domain, "flight", f.id)
	c.activity.record(runCtx, ActivityEvent{
		EventType: ActivityEventRefreshStarted,
		Metadata:  map[string]any{"flight_id": f.id},
	})

	go c.run(runCtx, f)
	return f
}

func (c *Coordinator) run(ctx context.Context, f *flight) {
	defer f.cancel()

	err := c.invoke(ctx)
	elapsed := c.now().Sub(f.started)

	var refreshErr *RefreshError
	if err != nil {
		refreshErr = &RefreshError{Domain: c.domain, FlightID: f.id, Cause: err}
	}

	// hooks run without any coordinator lock held: a hook may end up in
	// Close through a store subscriber
	if !c.isClosed() {
		if refreshErr != nil {
			c.failed.Add(1)
			c.logger.Warn("refresh failed", "domain", c.domain, "flight", f.id, "error", err)
			if c.onFailure != nil {
				c.onFailure(ctx, refreshErr, f.stamp)
			}
			c.activity.record(ctx, ActivityEvent{
				EventType: ActivityEventRefreshFailed,
				Metadata:  refreshErr.Metadata(),
			})
		} else {
			c.renewed.Add(1)
			c.logger.Debug("refresh renewed", "domain", c.domain, "flight", f.id, "elapsed", elapsed)
			c.activity.record(ctx, ActivityEvent{
				EventType: ActivityEventRefreshRenewed,
				Metadata:  map[string]any{"flight_id": f.id},
			})
		}
	}

	c.metrics.RefreshFinished(c.domain, err, elapsed)

	c.mu.Lock()
	f.err = refreshErr
	if c.flight == f {
		c.flight = nil
	}
	c.mu.Unlock()

	close(f.done)
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Coordinator) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	return c.refresh(ctx)
}

// Phase reports whether a refresh is currently in flight.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flight != nil {
		return PhaseRefreshing
	}
	return PhaseIdle
}

// Stats returns a snapshot of the coordinator counters.
func (c *Coordinator) Stats() CoordinatorStats {
	return CoordinatorStats{
		Flights: c.flights.Load(),
		Joined:  c.joined.Load(),
		Renewed: c.renewed.Load(),
		Failed:  c.failed.Load(),
	}
}

// Close tears the coordinator down. Blocked waiters return
// ErrCoordinatorClosed, later calls fail fast, and a refresh still in flight
// is cancelled and its outcome is dropped without running the failure hook.
// Close never waits on a hook that is already running, so it is safe to call
// from one. Close is idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	if c.flight != nil {
		c.flight.cancel()
		c.logger.Debug("coordinator closed with refresh in flight", "domain", c.domain, "flight", c.flight.id)
	}
	return nil
}
