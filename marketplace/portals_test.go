package marketplace_test

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/goliatone/go-session/authapi"
	"github.com/goliatone/go-session/config"
	"github.com/goliatone/go-session/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	cfg   *config.Config
	clock *testClock
	srv   *authapi.Server
}

func startAuthAPI(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg, err := config.Load(
		config.WithEnvPrefix("GOSESSION_MARKETPLACE_TEST_"),
		config.WithOverrides(map[string]any{
			"client.base_url":         "http://" + ln.Addr().String(),
			"server.access_token_ttl": "1m",
		}),
	)
	require.NoError(t, err)

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())

	dir, err := authapi.NewDirectory(bcrypt.MinCost, cfg.Server.Accounts...)
	require.NoError(t, err)

	clock := &testClock{now: time.Now().UTC()}
	srv, err := authapi.NewServer(ctx, authapi.ServerConfig{
		Config:    cfg.Server,
		DB:        db,
		Directory: dir,
		Domains:   cfg.Server.Domains,
		Now:       clock.Now,
	})
	require.NoError(t, err)

	go func() {
		_ = srv.ServeListener(ln)
	}()

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = db.Close()
	})

	return &harness{cfg: cfg, clock: clock, srv: srv}
}

func (h *harness) portals(t *testing.T, opts ...marketplace.PortalsOption) *marketplace.Portals {
	t.Helper()
	opts = append([]marketplace.PortalsOption{
		marketplace.WithSessionOptions(session.WithLogger(session.NoopLogger())),
	}, opts...)

	p, err := marketplace.NewPortals(h.cfg.Client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func loginTenant(t *testing.T, p *marketplace.Portals) marketplace.TenantInfo {
	t.Helper()
	tenant, err := p.Tenant.Login(context.Background(), session.Credentials{
		Identifier: "tenant@example.com",
		Password:   "tenant-pass",
	})
	require.NoError(t, err)
	return tenant
}

func TestPortals_BootstrapWithoutSession(t *testing.T) {
	h := startAuthAPI(t)
	p := h.portals(t)

	summaries, err := p.BootstrapAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	for _, domain := range []string{marketplace.DomainAdmin, marketplace.DomainOwner, marketplace.DomainTenant} {
		s := summaries[domain]
		assert.Equal(t, session.StatusSignedOut, s.Status, domain)
		assert.Empty(t, s.Error, domain)
		assert.Equal(t, uint64(1), s.Stats.Flights, domain)
		assert.Equal(t, uint64(1), s.Stats.Failed, domain)
	}
}

func TestPortals_LoginAndBootstrap(t *testing.T) {
	h := startAuthAPI(t)
	p := h.portals(t)

	tenant := loginTenant(t, p)
	assert.Equal(t, "tenant-1", tenant.ID)
	assert.Equal(t, "lease-001", tenant.LeaseID)

	summaries, err := p.BootstrapAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.StatusAuthenticated, summaries[marketplace.DomainTenant].Status)
	assert.Equal(t, uint64(0), summaries[marketplace.DomainTenant].Stats.Flights)
	assert.Equal(t, session.StatusSignedOut, summaries[marketplace.DomainAdmin].Status)
	assert.Equal(t, session.StatusSignedOut, summaries[marketplace.DomainOwner].Status)

	dash, err := p.Tenant.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tenant", dash.Domain)
	assert.Equal(t, "tenant-1", dash.Subject)
}

func TestPortals_DomainIsolation(t *testing.T) {
	h := startAuthAPI(t)
	p := h.portals(t)

	loginTenant(t, p)

	assert.NotEmpty(t, p.Tenant.Client().CookiesFor(p.Tenant.Prefix()+"/auth/me"))
	assert.Empty(t, p.Tenant.Client().CookiesFor(p.Owner.Prefix()+"/auth/me"))
	assert.Empty(t, p.Admin.Client().CookiesFor(p.Tenant.Prefix()+"/auth/me"))

	_, err := p.Owner.Dashboard(context.Background())
	require.Error(t, err)
	assert.True(t, session.IsRefreshFailed(err))

	assert.True(t, p.Tenant.State().IsAuthenticated())
	assert.True(t, p.Owner.State().IsSignedOut())
	assert.Equal(t, uint64(0), p.Tenant.Coordinator().Stats().Flights)
}

func TestPortals_ExpiredAccessIsRenewedOnce(t *testing.T) {
	h := startAuthAPI(t)
	p := h.portals(t)

	loginTenant(t, p)
	h.clock.Advance(2 * time.Minute)

	dash, err := p.Tenant.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", dash.Subject)

	stats := p.Tenant.Coordinator().Stats()
	assert.Equal(t, uint64(1), stats.Flights)
	assert.Equal(t, uint64(1), stats.Renewed)
	assert.True(t, p.Tenant.State().IsAuthenticated())
}

func TestPortals_ExpiredRefreshSignsOut(t *testing.T) {
	h := startAuthAPI(t)
	p := h.portals(t)

	loginTenant(t, p)
	h.clock.Advance(authapi.DefaultRefreshTokenTTL + time.Hour)

	var statuses []session.Status
	var mu sync.Mutex
	unsubscribe := p.Tenant.Subscribe(func(st session.State[marketplace.TenantInfo]) {
		mu.Lock()
		statuses = append(statuses, st.Status)
		mu.Unlock()
	})
	defer unsubscribe()

	_, err := p.Tenant.Dashboard(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrRefreshFailed))
	assert.Equal(t, session.OutcomeOtherError, session.Classify(err))

	assert.True(t, p.Tenant.State().IsSignedOut())
	mu.Lock()
	assert.Equal(t, []session.Status{session.StatusSignedOut}, statuses)
	mu.Unlock()
}

func TestPortals_ConcurrentCallsShareRefresh(t *testing.T) {
	h := startAuthAPI(t)
	p := h.portals(t)

	loginTenant(t, p)
	h.clock.Advance(2 * time.Minute)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Tenant.Dashboard(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	stats := p.Tenant.Coordinator().Stats()
	assert.GreaterOrEqual(t, stats.Renewed, uint64(1))
	assert.Equal(t, uint64(0), stats.Failed)
	assert.True(t, p.Tenant.State().IsAuthenticated())
}

func TestPortals_Logout(t *testing.T) {
	h := startAuthAPI(t)
	p := h.portals(t)

	loginTenant(t, p)
	p.Tenant.Logout(context.Background())
	assert.True(t, p.Tenant.State().IsSignedOut())

	err := p.Tenant.Get(context.Background(), "/auth/me", &marketplace.TenantInfo{})
	require.Error(t, err)
	assert.True(t, session.IsRefreshFailed(err))
}

func TestNewPortals_InvalidConfig(t *testing.T) {
	_, err := marketplace.NewPortals(config.ClientConfig{})
	assert.Error(t, err)
}
