package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session/authapi"
)

// Config is the root configuration of the client portals and the
// development auth API.
type Config struct {
	Client ClientConfig `koanf:"client" json:"client"`
	Server ServerConfig `koanf:"server" json:"server"`
}

// Validate will run validation rules
func (c Config) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return err
	}
	return c.Server.Validate()
}

// ClientConfig configures the portals talking to the auth API.
type ClientConfig struct {
	BaseURL   string        `koanf:"base_url" json:"base_url"`
	APIPrefix string        `koanf:"api_prefix" json:"api_prefix"`
	Timeout   time.Duration `koanf:"timeout" json:"timeout"`
	RateLimit float64       `koanf:"rate_limit" json:"rate_limit"`
	Burst     int           `koanf:"burst" json:"burst"`
	UserAgent string        `koanf:"user_agent" json:"user_agent"`
}

// DomainPrefix returns the endpoint prefix of domain, e.g. /api/v1/owner.
func (c ClientConfig) DomainPrefix(domain string) string {
	prefix := c.APIPrefix
	if prefix == "" {
		prefix = authapi.APIPrefix
	}
	return prefix + "/" + domain
}

// Validate will run validation rules
func (c ClientConfig) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.BaseURL, validation.Required, is.URL),
			validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
			validation.Field(&c.RateLimit, validation.Min(float64(0))),
			validation.Field(&c.Burst, validation.Min(0)),
		)
	}, "invalid client configuration"); err != nil {
		return err
	}
	return nil
}

// ServerConfig configures the development auth API. It satisfies
// authapi.Config.
type ServerConfig struct {
	Address                 string                `koanf:"address" json:"address"`
	DSN                     string                `koanf:"dsn" json:"dsn"`
	SigningKey              string                `koanf:"signing_key" json:"-"`
	Issuer                  string                `koanf:"issuer" json:"issuer"`
	AccessTokenTTL          time.Duration         `koanf:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL         time.Duration         `koanf:"refresh_token_ttl" json:"refresh_token_ttl"`
	ExtendedRefreshTokenTTL time.Duration         `koanf:"extended_refresh_token_ttl" json:"extended_refresh_token_ttl"`
	AccessCookieName        string                `koanf:"access_cookie_name" json:"access_cookie_name"`
	RefreshCookieName       string                `koanf:"refresh_cookie_name" json:"refresh_cookie_name"`
	CookieSecure            bool                  `koanf:"cookie_secure" json:"cookie_secure"`
	CookieSameSite          string                `koanf:"cookie_same_site" json:"cookie_same_site"`
	PasswordCost            int                   `koanf:"password_cost" json:"password_cost"`
	Domains                 []string              `koanf:"domains" json:"domains"`
	Accounts                []authapi.SeedAccount `koanf:"accounts" json:"accounts"`
}

// Validate will run validation rules
func (c ServerConfig) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.Address, validation.Required),
			validation.Field(&c.DSN, validation.Required),
			validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
			validation.Field(&c.AccessTokenTTL, validation.Required),
			validation.Field(&c.RefreshTokenTTL, validation.Required),
			validation.Field(&c.CookieSameSite, validation.In("Lax", "Strict", "None")),
		)
	}, "invalid server configuration"); err != nil {
		return err
	}

	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return goerrors.New("access token ttl must be shorter than refresh token ttl", goerrors.CategoryValidation).
			WithMetadata(map[string]any{
				"access_token_ttl":  c.AccessTokenTTL.String(),
				"refresh_token_ttl": c.RefreshTokenTTL.String(),
			})
	}

	for i, account := range c.Accounts {
		if err := account.Validate(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid seed account").
				WithMetadata(map[string]any{"index": i, "email": account.Email})
		}
	}
	return nil
}

func (c ServerConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c ServerConfig) GetIssuer() string {
	return c.Issuer
}

func (c ServerConfig) GetAccessTokenTTL() time.Duration {
	return c.AccessTokenTTL
}

func (c ServerConfig) GetRefreshTokenTTL() time.Duration {
	return c.RefreshTokenTTL
}

func (c ServerConfig) GetExtendedRefreshTokenTTL() time.Duration {
	return c.ExtendedRefreshTokenTTL
}

func (c ServerConfig) GetAccessCookieName() string {
	return c.AccessCookieName
}

func (c ServerConfig) GetRefreshCookieName() string {
	return c.RefreshCookieName
}

func (c ServerConfig) GetCookieSecure() bool {
	return c.CookieSecure
}

func (c ServerConfig) GetCookieSameSite() string {
	return c.CookieSameSite
}
