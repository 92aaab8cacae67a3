package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	session "github.com/goliatone/go-session"
	"github.com/goliatone/go-session/activitymap"
	"github.com/goliatone/go-session/marketplace"
	"github.com/goliatone/go-session/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Bootstrap the portals and run concurrent protected calls",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base-url",
				Aliases: []string{"u"},
				Usage:   "Auth API origin, overrides client.base_url",
			},
			&cli.StringFlag{
				Name:  "login",
				Usage: "Domain to log into before probing: admin, owner or tenant",
			},
			&cli.StringFlag{
				Name:  "identifier",
				Usage: "Login identifier",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Login password",
			},
			&cli.IntFlag{
				Name:  "calls",
				Usage: "Concurrent protected calls per authenticated domain",
				Value: 5,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall probe timeout",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Include a metrics snapshot in the report",
			},
			&cli.BoolFlag{
				Name:  "activity",
				Usage: "Include the normalized session activity in the report",
			},
		},
		Action: runProbe,
	}
}

type callReport struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type probeReport struct {
	Bootstrap map[string]marketplace.Summary `json:"bootstrap"`
	Login     string                         `json:"login,omitempty"`
	Calls     map[string]*callReport         `json:"calls"`
	Sessions  map[string]marketplace.Summary `json:"sessions"`
	Metrics   map[string]float64             `json:"metrics,omitempty"`
	Activity  []activitymap.Normalized       `json:"activity,omitempty"`
}

func runProbe(c *cli.Context) error {
	overrides := map[string]any{}
	if v := c.String("base-url"); v != "" {
		overrides["client.base_url"] = v
	}

	cfg, err := loadConfig(c, overrides)
	if err != nil {
		return err
	}

	lgr := newLogger(c)
	logger := lgr.GetLogger("probe")

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	registry := prometheus.NewRegistry()
	collector := metrics.New("").MustRegister(registry)

	recorder := activitymap.NewRecorder(activitymap.WithActorFallback("sessionctl"))
	activity := session.ActivitySinkFunc(func(ctx context.Context, event session.ActivityEvent) error {
		logger.Debug("session activity",
			"domain", event.Domain,
			"event", event.EventType,
			"from", event.FromStatus,
			"to", event.ToStatus,
		)
		return recorder.Record(ctx, event)
	})

	portals, err := marketplace.NewPortals(cfg.Client,
		marketplace.WithLoggerProvider(loggerProvider(lgr)),
		marketplace.WithSessionOptions(
			session.WithMetrics(collector),
			session.WithActivitySink(activity),
		),
	)
	if err != nil {
		return err
	}
	defer portals.Close()

	report := probeReport{Calls: map[string]*callReport{}}

	report.Bootstrap, err = portals.BootstrapAll(ctx)
	if err != nil {
		logger.Warn("bootstrap reported an error", "error", err)
	}

	if domain := c.String("login"); domain != "" {
		if err := probeLogin(ctx, portals, domain, session.Credentials{
			Identifier: c.String("identifier"),
			Password:   c.String("password"),
		}); err != nil {
			return err
		}
		report.Login = domain
	}

	calls := c.Int("calls")
	var mu sync.Mutex
	var g errgroup.Group
	for domain, call := range dashboards(portals) {
		if !authenticated(portals, domain) {
			continue
		}

		result := &callReport{}
		report.Calls[domain] = result

		for i := 0; i < calls; i++ {
			g.Go(func() error {
				err := call(ctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, err.Error())
					return nil
				}
				result.Succeeded++
				return nil
			})
		}
	}
	_ = g.Wait()

	report.Sessions = portals.Summaries()

	if c.Bool("metrics") {
		if report.Metrics, err = metrics.Snapshot(registry); err != nil {
			return err
		}
	}

	if c.Bool("activity") {
		report.Activity = recorder.Records()
	}

	fmt.Fprintln(c.App.Writer, print.MaybePrettyJSON(report))
	return nil
}

func probeLogin(ctx context.Context, p *marketplace.Portals, domain string, creds session.Credentials) error {
	var err error
	switch domain {
	case marketplace.DomainAdmin:
		_, err = p.Admin.Login(ctx, creds)
	case marketplace.DomainOwner:
		_, err = p.Owner.Login(ctx, creds)
	case marketplace.DomainTenant:
		_, err = p.Tenant.Login(ctx, creds)
	default:
		return goerrors.New("unknown domain", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"domain": domain})
	}
	return err
}

func dashboards(p *marketplace.Portals) map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		marketplace.DomainAdmin: func(ctx context.Context) error {
			_, err := p.Admin.Dashboard(ctx)
			return err
		},
		marketplace.DomainOwner: func(ctx context.Context) error {
			_, err := p.Owner.Dashboard(ctx)
			return err
		},
		marketplace.DomainTenant: func(ctx context.Context) error {
			_, err := p.Tenant.Dashboard(ctx)
			return err
		},
	}
}

func authenticated(p *marketplace.Portals, domain string) bool {
	switch domain {
	case marketplace.DomainAdmin:
		return p.Admin.State().IsAuthenticated()
	case marketplace.DomainOwner:
		return p.Owner.State().IsAuthenticated()
	case marketplace.DomainTenant:
		return p.Tenant.State().IsAuthenticated()
	}
	return false
}
