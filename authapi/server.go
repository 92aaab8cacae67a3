package authapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	session "github.com/goliatone/go-session"
	"github.com/uptrace/bun"
)

// DefaultDomains are the identity domains of the marketplace.
var DefaultDomains = []string{"admin", "owner", "tenant"}

// APIPrefix is the mount point of every domain group.
const APIPrefix = "/api/v1"

// DomainPrefix returns the route prefix of domain, for example /api/v1/owner.
func DomainPrefix(domain string) string {
	return APIPrefix + "/" + domain
}

// ServerConfig wires the dependencies of NewServer.
type ServerConfig struct {
	Config    Config
	DB        *bun.DB
	Directory *Directory
	Domains   []string
	Logger    session.LoggerProvider
	Now       func() time.Time
}

// Server is the development auth API, one controller per domain.
type Server struct {
	adapter       router.Server[*fiber.App]
	app           *fiber.App
	tokens        *TokenIssuer
	refreshTokens *RefreshTokenRepository
	controllers   map[string]*Controller
	logger        session.Logger
}

// NewServer builds a fiber backed router with the domain controllers
// mounted under /api/v1/{domain}.
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil || cfg.DB == nil || cfg.Directory == nil {
		return nil, goerrors.New("auth api server requires config, db and directory", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	domains := cfg.Domains
	if len(domains) == 0 {
		domains = DefaultDomains
	}

	loggerFor := func(name string) session.Logger {
		if cfg.Logger == nil {
			return session.NoopLogger()
		}
		return cfg.Logger.GetLogger(name)
	}

	refreshTokens := NewRefreshTokenRepository(cfg.DB)
	if cfg.Now != nil {
		refreshTokens.WithClock(cfg.Now)
	}
	if err := refreshTokens.CreateSchema(ctx); err != nil {
		return nil, err
	}

	st := settingsFrom(cfg.Config)
	tokens := NewTokenIssuer(st.signingKey, st.issuer, st.accessTTL, loggerFor("authapi.tokens"))
	if cfg.Now != nil {
		tokens.WithClock(cfg.Now)
	}

	var app *fiber.App
	adapter := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app = router.DefaultFiberOptions(fiber.New(fiber.Config{
			DisableStartupMessage: true,
			StrictRouting:         false,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
		}))
		return app
	})

	s := &Server{
		adapter:       adapter,
		app:           app,
		tokens:        tokens,
		refreshTokens: refreshTokens,
		controllers:   map[string]*Controller{},
		logger:        loggerFor("authapi.server"),
	}

	r := adapter.Router()
	r.Get("/healthz", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]any{"status": "ok", "domains": domains})
	})

	for _, domain := range domains {
		controller := NewController(ControllerConfig{
			Domain:        domain,
			CookiePath:    DomainPrefix(domain),
			Config:        cfg.Config,
			Tokens:        tokens,
			RefreshTokens: refreshTokens,
			Directory:     cfg.Directory,
			Logger:        loggerFor("authapi." + domain),
		})
		controller.Register(r.Group(DomainPrefix(domain)))
		s.controllers[domain] = controller
	}

	return s, nil
}

// Controller returns the controller mounted for domain.
func (s *Server) Controller(domain string) (*Controller, bool) {
	c, ok := s.controllers[domain]
	return c, ok
}

// Tokens returns the access token issuer.
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

// RefreshTokens returns the refresh token repository.
func (s *Server) RefreshTokens() *RefreshTokenRepository {
	return s.refreshTokens
}

// Test runs req against the server without a network listener.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}

// Serve listens on addr until Shutdown is called.
func (s *Server) Serve(addr string) error {
	s.logger.Info("auth api listening", "addr", addr)
	return s.adapter.Serve(addr)
}

// ServeListener serves on an existing listener until Shutdown is called.
func (s *Server) ServeListener(ln net.Listener) error {
	s.logger.Info("auth api listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
