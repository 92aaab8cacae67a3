package config

import "github.com/goliatone/go-session/authapi"

// Defaults returns the development defaults as a nested map.
func Defaults() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"base_url":   "http://127.0.0.1:8572",
			"api_prefix": authapi.APIPrefix,
			"timeout":    "10s",
			"rate_limit": 0,
			"burst":      1,
			"user_agent": "go-session/sessionctl",
		},
		"server": map[string]any{
			"address":                    ":8572",
			"dsn":                        "file::memory:?cache=shared",
			"signing_key":                "development-signing-key-change-me",
			"issuer":                     "go-session",
			"access_token_ttl":           authapi.DefaultAccessTokenTTL.String(),
			"refresh_token_ttl":          authapi.DefaultRefreshTokenTTL.String(),
			"extended_refresh_token_ttl": "720h",
			"access_cookie_name":         authapi.DefaultAccessCookieName,
			"refresh_cookie_name":        authapi.DefaultRefreshCookieName,
			"cookie_secure":              false,
			"cookie_same_site":           authapi.DefaultCookieSameSite,
			"password_cost":              0,
			"domains":                    append([]string(nil), authapi.DefaultDomains...),
			"accounts":                   DefaultAccounts(),
		},
	}
}

// DefaultAccounts are the development accounts, one per domain.
func DefaultAccounts() []any {
	return []any{
		map[string]any{
			"domain":   "admin",
			"id":       "admin-1",
			"email":    "admin@example.com",
			"name":     "Marketplace Admin",
			"password": "admin-pass",
		},
		map[string]any{
			"domain":   "owner",
			"id":       "owner-1",
			"email":    "owner@example.com",
			"name":     "Property Owner",
			"password": "owner-pass",
			"attributes": map[string]any{
				"properties": 2,
			},
		},
		map[string]any{
			"domain":   "tenant",
			"id":       "tenant-1",
			"email":    "tenant@example.com",
			"name":     "Resident Tenant",
			"password": "tenant-pass",
			"attributes": map[string]any{
				"lease_id": "lease-001",
			},
		},
	}
}
