package session

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized      = "SESSION_UNAUTHORIZED"
	TextCodeRefreshFailed     = "SESSION_REFRESH_FAILED"
	TextCodeReplayRejected    = "SESSION_REPLAY_REJECTED"
	TextCodeCoordinatorClosed = "SESSION_COORDINATOR_CLOSED"
	TextCodeStoreClosed       = "SESSION_STORE_CLOSED"
	TextCodeInvalidTransition = "INVALID_SESSION_STATE_TRANSITION"
	TextCodeBackendRequired   = "SESSION_BACKEND_REQUIRED"
	TextCodeDomainRequired    = "SESSION_DOMAIN_REQUIRED"
)

// ErrUnauthorized marks an API call rejected because the access credential
// is missing or expired. It is the only outcome that involves the Coordinator.
var ErrUnauthorized = goerrors.New("session unauthorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshFailed is matched by every *RefreshError.
var ErrRefreshFailed = goerrors.New("session refresh failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrReplayRejected is matched by every *ReplayError.
var ErrReplayRejected = goerrors.New("request rejected after session refresh", goerrors.CategoryAuth).
	WithTextCode(TextCodeReplayRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrCoordinatorClosed is returned to waiters once the coordinator is torn down.
var ErrCoordinatorClosed = goerrors.New("session coordinator closed", goerrors.CategoryOperation).
	WithTextCode(TextCodeCoordinatorClosed).
	WithCode(goerrors.CodeConflict)

// ErrStoreClosed is returned for a state write dropped because the domain was
// torn down or the write no longer applies to the current state.
var ErrStoreClosed = goerrors.New("session state write dropped", goerrors.CategoryOperation).
	WithTextCode(TextCodeStoreClosed).
	WithCode(goerrors.CodeConflict)

// ErrInvalidTransition is returned when a session state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// ErrBackendRequired is returned when a domain is built without a backend.
var ErrBackendRequired = goerrors.New("session backend is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeBackendRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrDomainRequired is returned when a domain is built without a name.
var ErrDomainRequired = goerrors.New("session domain name is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeDomainRequired).
	WithCode(goerrors.CodeBadRequest)

// RefreshError is the Failed(cause) outcome of a refresh flight. Every waiter
// attached to the same flight receives the same *RefreshError value.
type RefreshError struct {
	Domain   string
	FlightID string
	Cause    error
}

func (e *RefreshError) Error() string {
	if e == nil {
		return ErrRefreshFailed.Message
	}
	scope := "session refresh failed"
	if e.Domain != "" {
		scope = fmt.Sprintf("%s session refresh failed", e.Domain)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", scope, e.Cause)
	}
	return scope
}

func (e *RefreshError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports a match against ErrRefreshFailed.
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

// Metadata returns details suitable for go-errors metadata and logs.
func (e *RefreshError) Metadata() map[string]any {
	if e == nil {
		return nil
	}
	meta := map[string]any{}
	if e.Domain != "" {
		meta["domain"] = e.Domain
	}
	if e.FlightID != "" {
		meta["flight_id"] = e.FlightID
	}
	if e.Cause != nil {
		meta["error"] = e.Cause.Error()
	}
	return meta
}

// ReplayError is returned when a request replayed after a successful refresh
// is rejected as unauthorized again. It is terminal for that call.
type ReplayError struct {
	Domain string
	Cause  error
}

func (e *ReplayError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrReplayRejected.Message
	}
	return fmt.Sprintf("%s: %v", ErrReplayRejected.Message, e.Cause)
}

func (e *ReplayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports a match against ErrReplayRejected.
func (e *ReplayError) Is(target error) bool {
	return target == ErrReplayRejected
}

// Outcome is the result of a single API call as seen by calling code.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnauthorized
	OutcomeOtherError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "other_error"
	}
}

// Classify maps an error returned by a call into an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case IsUnauthorized(err):
		return OutcomeUnauthorized
	default:
		return OutcomeOtherError
	}
}

// IsUnauthorized reports whether err means the access credential expired.
// Refresh failures and rejected replays are terminal and never match, even
// when they wrap an unauthorized cause.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}

	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		return false
	}

	var replayErr *ReplayError
	if errors.As(err, &replayErr) {
		return false
	}

	if errors.Is(err, ErrUnauthorized) {
		return true
	}

	var rich *goerrors.Error
	if errors.As(err, &rich) && rich != nil {
		return rich.TextCode == TextCodeUnauthorized
	}

	return false
}

// transientCause returns err when it is a non-auth failure that a UI can
// present as retryable, and nil for rejected sessions.
func transientCause(err error) error {
	if err == nil {
		return nil
	}

	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		if refreshErr.Cause == nil || IsUnauthorized(refreshErr.Cause) {
			return nil
		}
		return err
	}

	if IsUnauthorized(err) || errors.Is(err, ErrReplayRejected) {
		return nil
	}
	return err
}

// IsRefreshFailed reports whether err carries a failed refresh outcome.
func IsRefreshFailed(err error) bool {
	var refreshErr *RefreshError
	return errors.As(err, &refreshErr)
}

// IsReplayRejected reports whether err is a rejected replay.
func IsReplayRejected(err error) bool {
	var replayErr *ReplayError
	return errors.As(err, &replayErr)
}
