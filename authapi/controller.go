package authapi

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	session "github.com/goliatone/go-session"
)

const claimsLocalsKey = "session_claims"

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword returns the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether a long lived refresh token was requested
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(
				&r.Identifier,
				validation.Required,
				is.Email,
			),
			validation.Field(
				&r.Password,
				validation.Required,
			),
		)
	}, "invalid login request payload"); err != nil {
		return err
	}
	return nil
}

// ControllerConfig configures a domain controller.
type ControllerConfig struct {
	Domain string
	// CookiePath scopes the session cookies to the domain routes
	CookiePath    string
	Config        Config
	Tokens        *TokenIssuer
	RefreshTokens *RefreshTokenRepository
	Directory     *Directory
	Logger        session.Logger
}

// Controller serves the auth routes of one identity domain.
type Controller struct {
	domain        string
	cookiePath    string
	settings      settings
	tokens        *TokenIssuer
	refreshTokens *RefreshTokenRepository
	directory     *Directory
	logger        session.Logger
}

// NewController creates a controller for cfg.Domain.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = session.NoopLogger()
	}
	cookiePath := cfg.CookiePath
	if cookiePath == "" {
		cookiePath = "/"
	}
	return &Controller{
		domain:        cfg.Domain,
		cookiePath:    cookiePath,
		settings:      settingsFrom(cfg.Config),
		tokens:        cfg.Tokens,
		refreshTokens: cfg.RefreshTokens,
		directory:     cfg.Directory,
		logger:        logger,
	}
}

// Register registers the auth routes relative to the domain group.
func (c *Controller) Register(r RouteRegistrar) {
	r.Post("/auth/login", c.Login)
	r.Post("/auth/refresh", c.Refresh)
	r.Post("/auth/logout", c.Logout)
	r.Get("/auth/me", c.Me, c.Protected())
	r.Get("/dashboard", c.Dashboard, c.Protected())
}

// Protected rejects requests without a valid access cookie for the domain.
func (c *Controller) Protected() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw := ctx.Cookies(c.settings.accessCookieName)
			if raw == "" {
				return c.fail(ctx, ErrTokenMissing)
			}

			claims, err := c.tokens.Validate(raw, c.domain)
			if err != nil {
				return c.fail(ctx, err)
			}

			ctx.Locals(claimsLocalsKey, claims)
			return next(ctx)
		}
	}
}

// Login checks the credentials and starts a new session.
func (c *Controller) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.fail(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid login request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return c.fail(ctx, err)
	}

	account, err := c.directory.Authenticate(c.domain, payload.Identifier, payload.Password)
	if err != nil {
		c.logger.Info("login rejected", "domain", c.domain, "identifier", payload.Identifier)
		return c.fail(ctx, err)
	}

	raw, _, err := c.refreshTokens.Issue(ctx.Context(), c.domain, account.ID, payload.RememberMe, c.refreshTTL(payload.RememberMe))
	if err != nil {
		return c.fail(ctx, err)
	}

	if err := c.setSession(ctx, account.ID, raw, payload.RememberMe); err != nil {
		return c.fail(ctx, err)
	}

	c.logger.Info("login accepted", "domain", c.domain, "subject", account.ID)
	return ctx.JSON(router.StatusOK, account.Profile())
}

// Refresh rotates the refresh cookie and issues a new access cookie.
func (c *Controller) Refresh(ctx router.Context) error {
	raw := ctx.Cookies(c.settings.refreshCookieName)
	if raw == "" {
		return c.fail(ctx, ErrRefreshTokenInvalid)
	}

	nextRaw, next, err := c.refreshTokens.Rotate(ctx.Context(), c.domain, raw, c.refreshTTL)
	if err != nil {
		c.logger.Info("refresh rejected", "domain", c.domain, "error", err)
		c.clearSession(ctx)
		return c.fail(ctx, err)
	}

	if _, err := c.directory.Lookup(c.domain, next.Subject); err != nil {
		c.clearSession(ctx)
		return c.fail(ctx, ErrRefreshTokenInvalid)
	}

	if err := c.setSession(ctx, next.Subject, nextRaw, next.Extended); err != nil {
		return c.fail(ctx, err)
	}

	c.logger.Debug("refresh accepted", "domain", c.domain, "subject", next.Subject, "family", next.FamilyID)
	return ctx.JSON(router.StatusOK, map[string]any{
		"status":     "renewed",
		"expires_at": next.ExpiresAt,
	})
}

// Me returns the identity of the current session.
func (c *Controller) Me(ctx router.Context) error {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	account, err := c.directory.Lookup(c.domain, claims.Subject)
	if err != nil {
		return c.fail(ctx, ErrTokenMalformed)
	}
	return ctx.JSON(router.StatusOK, account.Profile())
}

// Dashboard is a protected resource used by clients and probes.
func (c *Controller) Dashboard(ctx router.Context) error {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(router.StatusOK, map[string]any{
		"domain":  c.domain,
		"subject": claims.Subject,
		"expires": claims.ExpiresAt.Time,
	})
}

// Logout revokes the refresh token family and clears the cookies.
func (c *Controller) Logout(ctx router.Context) error {
	if raw := ctx.Cookies(c.settings.refreshCookieName); raw != "" {
		if err := c.refreshTokens.Revoke(ctx.Context(), c.domain, raw); err != nil {
			c.logger.Warn("logout could not revoke refresh token", "domain", c.domain, "error", err)
		}
	}
	c.clearSession(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{"status": "signed_out"})
}

func (c *Controller) refreshTTL(extended bool) time.Duration {
	if extended {
		return c.settings.extendedTTL
	}
	return c.settings.refreshTTL
}

func (c *Controller) setSession(ctx router.Context, subject, refreshRaw string, extended bool) error {
	access, expires, err := c.tokens.Issue(c.domain, subject)
	if err != nil {
		return err
	}

	c.setCookie(ctx, c.settings.accessCookieName, access, expires)
	c.setCookie(ctx, c.settings.refreshCookieName, refreshRaw, time.Now().Add(c.refreshTTL(extended)))
	return nil
}

func (c *Controller) clearSession(ctx router.Context) {
	expired := time.Now().Add(-time.Hour * (24 * 365))
	c.setCookie(ctx, c.settings.accessCookieName, "", expired)
	c.setCookie(ctx, c.settings.refreshCookieName, "", expired)
}

func (c *Controller) setCookie(ctx router.Context, name, value string, expires time.Time) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.cookiePath,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   c.settings.cookieSecure,
		SameSite: c.settings.cookieSameSite,
	})
}

func (c *Controller) fail(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "an unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		switch richErr.Category {
		case goerrors.CategoryAuth:
			status = http.StatusUnauthorized
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
	}

	if status >= http.StatusInternalServerError {
		c.logger.Error("auth api error", "domain", c.domain, "error", err)
	}

	return ctx.JSON(status, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func claimsFrom(ctx router.Context) (*Claims, error) {
	claims, ok := ctx.Locals(claimsLocalsKey).(*Claims)
	if !ok || claims == nil {
		return nil, ErrTokenMissing
	}
	return claims, nil
}
