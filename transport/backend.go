package transport

import (
	"context"
	"net/http"
	"strings"

	session "github.com/goliatone/go-session"
)

// Endpoints are the auth routes of one identity domain.
type Endpoints struct {
	Login   string
	Refresh string
	Me      string
	Logout  string
}

// DomainEndpoints returns the endpoints mounted under prefix, for example
// "/api/v1/tenant".
func DomainEndpoints(prefix string) Endpoints {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return Endpoints{
		Login:   prefix + "/auth/login",
		Refresh: prefix + "/auth/refresh",
		Me:      prefix + "/auth/me",
		Logout:  prefix + "/auth/logout",
	}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Backend implements session.Backend[I] over HTTP. The identity endpoint
// response is decoded into I.
type Backend[I any] struct {
	client    *Client
	endpoints Endpoints
}

// NewBackend returns a Backend for the given endpoints.
func NewBackend[I any](client *Client, endpoints Endpoints) *Backend[I] {
	return &Backend[I]{client: client, endpoints: endpoints}
}

// Client returns the underlying client, for calls protected by the session.
func (b *Backend[I]) Client() *Client {
	return b.client
}

// ResolveIdentity implements session.Backend.
func (b *Backend[I]) ResolveIdentity(ctx context.Context) (I, error) {
	var identity I
	if err := b.client.Do(ctx, http.MethodGet, b.endpoints.Me, nil, &identity); err != nil {
		var zero I
		return zero, err
	}
	return identity, nil
}

// Refresh implements session.Backend. The server rotates the refresh cookie
// in the response and the jar picks it up.
func (b *Backend[I]) Refresh(ctx context.Context) error {
	return b.client.Do(ctx, http.MethodPost, b.endpoints.Refresh, nil, nil)
}

// Login implements session.Backend.
func (b *Backend[I]) Login(ctx context.Context, payload session.LoginPayload) error {
	return b.client.Do(ctx, http.MethodPost, b.endpoints.Login, loginRequest{
		Identifier: payload.GetIdentifier(),
		Password:   payload.GetPassword(),
		RememberMe: payload.GetExtendedSession(),
	}, nil)
}

// Logout implements session.Backend.
func (b *Backend[I]) Logout(ctx context.Context) error {
	return b.client.Do(ctx, http.MethodPost, b.endpoints.Logout, nil, nil)
}
