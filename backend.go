package session

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// LoginPayload carries the credentials for a domain login call.
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

// Credentials is the default LoginPayload.
type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// GetIdentifier returns the identifier
func (c Credentials) GetIdentifier() string {
	return c.Identifier
}

// GetPassword returns the password
func (c Credentials) GetPassword() string {
	return c.Password
}

// GetExtendedSession reports whether a long lived session was requested
func (c Credentials) GetExtendedSession() bool {
	return c.RememberMe
}

// Validate will run validation rules
func (c Credentials) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.Identifier, validation.Required),
			validation.Field(&c.Password, validation.Required),
		)
	}, "invalid login payload"); err != nil {
		return err
	}
	return nil
}

// Backend is the set of network calls a domain needs. ResolveIdentity is
// the Identity Resolver and Refresh the Refresh Invoker. Implementations
// report an expired access credential with an error matching
// ErrUnauthorized.
type Backend[I any] interface {
	ResolveIdentity(ctx context.Context) (I, error)
	Refresh(ctx context.Context) error
	Login(ctx context.Context, payload LoginPayload) error
	Logout(ctx context.Context) error
}

// BackendFuncs adapts plain functions to Backend. Nil Login and Logout
// functions are treated as no-ops.
type BackendFuncs[I any] struct {
	ResolveFunc func(ctx context.Context) (I, error)
	RefreshFunc func(ctx context.Context) error
	LoginFunc   func(ctx context.Context, payload LoginPayload) error
	LogoutFunc  func(ctx context.Context) error
}

// ResolveIdentity implements Backend.
func (b BackendFuncs[I]) ResolveIdentity(ctx context.Context) (I, error) {
	if b.ResolveFunc == nil {
		var zero I
		return zero, ErrBackendRequired
	}
	return b.ResolveFunc(ctx)
}

// Refresh implements Backend.
func (b BackendFuncs[I]) Refresh(ctx context.Context) error {
	if b.RefreshFunc == nil {
		return ErrBackendRequired
	}
	return b.RefreshFunc(ctx)
}

// Login implements Backend.
func (b BackendFuncs[I]) Login(ctx context.Context, payload LoginPayload) error {
	if b.LoginFunc == nil {
		return nil
	}
	return b.LoginFunc(ctx, payload)
}

// Logout implements Backend.
func (b BackendFuncs[I]) Logout(ctx context.Context) error {
	if b.LogoutFunc == nil {
		return nil
	}
	return b.LogoutFunc(ctx)
}
