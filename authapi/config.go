package authapi

import "time"

// Config holds the settings the auth API reads at construction time.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetExtendedRefreshTokenTTL() time.Duration
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetCookieSecure() bool
	GetCookieSameSite() string
}

const (
	DefaultAccessTokenTTL    = 5 * time.Minute
	DefaultRefreshTokenTTL   = 24 * time.Hour
	DefaultAccessCookieName  = "access_token"
	DefaultRefreshCookieName = "refresh_token"
	DefaultCookieSameSite    = "Lax"
)

type settings struct {
	signingKey        []byte
	issuer            string
	accessTTL         time.Duration
	refreshTTL        time.Duration
	extendedTTL       time.Duration
	accessCookieName  string
	refreshCookieName string
	cookieSecure      bool
	cookieSameSite    string
}

func settingsFrom(cfg Config) settings {
	s := settings{
		signingKey:        []byte(cfg.GetSigningKey()),
		issuer:            cfg.GetIssuer(),
		accessTTL:         cfg.GetAccessTokenTTL(),
		refreshTTL:        cfg.GetRefreshTokenTTL(),
		extendedTTL:       cfg.GetExtendedRefreshTokenTTL(),
		accessCookieName:  cfg.GetAccessCookieName(),
		refreshCookieName: cfg.GetRefreshCookieName(),
		cookieSecure:      cfg.GetCookieSecure(),
		cookieSameSite:    cfg.GetCookieSameSite(),
	}

	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTokenTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTokenTTL
	}
	if s.extendedTTL < s.refreshTTL {
		s.extendedTTL = s.refreshTTL
	}
	if s.accessCookieName == "" {
		s.accessCookieName = DefaultAccessCookieName
	}
	if s.refreshCookieName == "" {
		s.refreshCookieName = DefaultRefreshCookieName
	}
	if s.cookieSameSite == "" {
		s.cookieSameSite = DefaultCookieSameSite
	}
	return s
}
