package authapi_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-session/authapi"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type testConfig struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (c testConfig) GetSigningKey() string                     { return "test-signing-key" }
func (c testConfig) GetIssuer() string                         { return "go-session-test" }
func (c testConfig) GetAccessTokenTTL() time.Duration          { return c.accessTTL }
func (c testConfig) GetRefreshTokenTTL() time.Duration         { return c.refreshTTL }
func (c testConfig) GetExtendedRefreshTokenTTL() time.Duration { return 2 * c.refreshTTL }
func (c testConfig) GetAccessCookieName() string               { return "" }
func (c testConfig) GetRefreshCookieName() string              { return "" }
func (c testConfig) GetCookieSecure() bool                     { return false }
func (c testConfig) GetCookieSameSite() string                 { return "" }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func seedAccounts() []authapi.SeedAccount {
	return []authapi.SeedAccount{
		{Domain: "admin", ID: "a-1", Email: "admin@example.com", Name: "Ada Admin", Password: "admin-pass"},
		{Domain: "owner", ID: "o-1", Email: "owner@example.com", Name: "Olga Owner", Password: "owner-pass",
			Attributes: map[string]any{"properties": 3}},
		{Domain: "tenant", ID: "t-1", Email: "tenant@example.com", Name: "Tomas Tenant", Password: "tenant-pass",
			Attributes: map[string]any{"lease_id": "lease-42"}},
	}
}

func newTestDirectory(t *testing.T) *authapi.Directory {
	t.Helper()
	dir, err := authapi.NewDirectory(bcrypt.MinCost, seedAccounts()...)
	require.NoError(t, err)
	return dir
}

func newTestServer(t *testing.T, cfg testConfig, now func() time.Time) *authapi.Server {
	t.Helper()
	srv, err := authapi.NewServer(context.Background(), authapi.ServerConfig{
		Config:    cfg,
		DB:        newTestDB(t),
		Directory: newTestDirectory(t),
		Now:       now,
	})
	require.NoError(t, err)
	return srv
}
