// Package marketplace wires the admin, owner and tenant session domains of
// the marketplace client. Each domain has its own transport client, cookie
// jar, store and refresh coordinator.
package marketplace

import (
	"context"
	"errors"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/goliatone/go-session/config"
	"golang.org/x/sync/errgroup"
)

const (
	DomainAdmin  = "admin"
	DomainOwner  = "owner"
	DomainTenant = "tenant"
)

// Summary is a printable view of a portal session.
type Summary struct {
	Domain    string                   `json:"domain"`
	Status    session.Status           `json:"status"`
	Identity  any                      `json:"identity,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Version   uint64                   `json:"version"`
	ChangedAt time.Time                `json:"changed_at"`
	Stats     session.CoordinatorStats `json:"stats"`
}

// Portals holds the three marketplace domains.
type Portals struct {
	Admin  *Portal[AdminInfo]
	Owner  *Portal[OwnerInfo]
	Tenant *Portal[TenantInfo]
}

// PortalsOption configures NewPortals.
type PortalsOption func(*portalsOptions)

type portalsOptions struct {
	sessionOpts    []session.Option
	loggerProvider session.LoggerProvider
}

// WithSessionOptions applies opts to every domain.
func WithSessionOptions(opts ...session.Option) PortalsOption {
	return func(o *portalsOptions) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

// WithLoggerProvider hands scoped loggers to the domains and their clients.
func WithLoggerProvider(provider session.LoggerProvider) PortalsOption {
	return func(o *portalsOptions) {
		o.loggerProvider = provider
	}
}

// NewPortals builds the admin, owner and tenant domains from cfg.
func NewPortals(cfg config.ClientConfig, opts ...PortalsOption) (*Portals, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &portalsOptions{}
	for _, opt := range opts {
		opt(o)
	}

	sessionOpts := o.sessionOpts
	if o.loggerProvider != nil {
		sessionOpts = append([]session.Option{session.WithLoggerProvider(o.loggerProvider)}, sessionOpts...)
	}

	p := &Portals{}
	var err error

	if p.Admin, err = newPortal[AdminInfo](DomainAdmin, cfg, o.transportLogger(DomainAdmin), sessionOpts...); err != nil {
		return nil, err
	}
	if p.Owner, err = newPortal[OwnerInfo](DomainOwner, cfg, o.transportLogger(DomainOwner), sessionOpts...); err != nil {
		_ = p.Close()
		return nil, err
	}
	if p.Tenant, err = newPortal[TenantInfo](DomainTenant, cfg, o.transportLogger(DomainTenant), sessionOpts...); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (o *portalsOptions) transportLogger(domain string) session.Logger {
	if o.loggerProvider == nil {
		return nil
	}
	return o.loggerProvider.GetLogger("transport." + domain)
}

// BootstrapAll bootstraps the three domains concurrently and waits for all
// of them. A failure in one domain does not cut the others short; the first
// error, a transient failure or ctx.Err(), is returned with the summaries.
func (p *Portals) BootstrapAll(ctx context.Context) (map[string]Summary, error) {
	var g errgroup.Group

	g.Go(func() error {
		_, err := p.Admin.Bootstrap(ctx)
		return err
	})
	g.Go(func() error {
		_, err := p.Owner.Bootstrap(ctx)
		return err
	})
	g.Go(func() error {
		_, err := p.Tenant.Bootstrap(ctx)
		return err
	})

	err := g.Wait()
	return p.Summaries(), err
}

// Summaries returns the current state of every domain keyed by name.
func (p *Portals) Summaries() map[string]Summary {
	out := map[string]Summary{}
	if p.Admin != nil {
		out[DomainAdmin] = p.Admin.Summary()
	}
	if p.Owner != nil {
		out[DomainOwner] = p.Owner.Summary()
	}
	if p.Tenant != nil {
		out[DomainTenant] = p.Tenant.Summary()
	}
	return out
}

// Close tears down every domain.
func (p *Portals) Close() error {
	var errs []error
	if p.Admin != nil {
		errs = append(errs, p.Admin.Close())
	}
	if p.Owner != nil {
		errs = append(errs, p.Owner.Close())
	}
	if p.Tenant != nil {
		errs = append(errs, p.Tenant.Close())
	}
	return errors.Join(errs...)
}
