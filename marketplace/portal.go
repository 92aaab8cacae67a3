package marketplace

import (
	"context"
	"net/http"

	session "github.com/goliatone/go-session"
	"github.com/goliatone/go-session/config"
	"github.com/goliatone/go-session/transport"
)

// Portal is one identity domain of the marketplace client: a session domain
// over its own transport client and cookie jar.
type Portal[I any] struct {
	*session.Domain[I]
	client *transport.Client
	prefix string
}

func newPortal[I any](name string, cfg config.ClientConfig, logger session.Logger, opts ...session.Option) (*Portal[I], error) {
	client, err := transport.New(transport.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		UserAgent: cfg.UserAgent,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.DomainPrefix(name)
	backend := transport.NewBackend[I](client, transport.DomainEndpoints(prefix))

	domain, err := session.NewDomain[I](name, backend, opts...)
	if err != nil {
		return nil, err
	}

	return &Portal[I]{
		Domain: domain,
		client: client,
		prefix: prefix,
	}, nil
}

// Client returns the transport client of the portal.
func (p *Portal[I]) Client() *transport.Client {
	return p.client
}

// Prefix returns the route prefix of the portal's domain.
func (p *Portal[I]) Prefix() string {
	return p.prefix
}

// Get runs a protected GET against path, relative to the domain prefix, and
// decodes the response into out. An expired session is renewed once.
func (p *Portal[I]) Get(ctx context.Context, path string, out any) error {
	return p.Do(ctx, func(ctx context.Context) error {
		return p.client.Do(ctx, http.MethodGet, p.prefix+path, nil, out)
	})
}

// Dashboard fetches the protected dashboard of the domain.
func (p *Portal[I]) Dashboard(ctx context.Context) (Dashboard, error) {
	return session.Execute(ctx, p.Coordinator(), func(ctx context.Context) (Dashboard, error) {
		var out Dashboard
		err := p.client.Do(ctx, http.MethodGet, p.prefix+"/dashboard", nil, &out)
		return out, err
	})
}

// Summary describes the current session state of the portal.
func (p *Portal[I]) Summary() Summary {
	st := p.State()
	summary := Summary{
		Domain:    p.Name(),
		Status:    st.Status,
		Version:   st.Version,
		ChangedAt: st.ChangedAt,
		Stats:     p.Coordinator().Stats(),
	}
	if st.IsAuthenticated() {
		summary.Identity = st.Identity
	}
	if st.Err != nil {
		summary.Error = st.Err.Error()
	}
	return summary
}
