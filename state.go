package session

import "time"

// Status is the observable authentication status of one identity domain.
type Status string

const (
	StatusSignedOut     Status = "signed_out"
	StatusResolving     Status = "resolving"
	StatusAuthenticated Status = "authenticated"
)

func (s Status) String() string {
	return string(s)
}

// State is the Session Store value for a domain. Identity is only populated
// while authenticated. Err is set when the domain is signed out because of a
// transient failure (network, server error) rather than a rejected session.
type State[I any] struct {
	Status    Status    `json:"status"`
	Identity  I         `json:"identity,omitempty"`
	Err       error     `json:"-"`
	Version   uint64    `json:"version"`
	ChangedAt time.Time `json:"changed_at"`
}

// IsAuthenticated reports whether the state holds an identity.
func (s State[I]) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// IsSignedOut reports whether the state is signed out.
func (s State[I]) IsSignedOut() bool {
	return s.Status == StatusSignedOut
}

// IsTransient reports whether a signed out state was caused by a non-auth
// failure, which a UI may surface as a retryable error.
func (s State[I]) IsTransient() bool {
	return s.Status == StatusSignedOut && s.Err != nil
}

// Phase is the refresh phase of a Coordinator.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRefreshing
)

func (p Phase) String() string {
	if p == PhaseRefreshing {
		return "refreshing"
	}
	return "idle"
}
