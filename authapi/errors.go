package authapi

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTokenMissing        = "TOKEN_MISSING"
	TextCodeWrongAudience       = "TOKEN_WRONG_AUDIENCE"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeRefreshTokenInvalid = "REFRESH_TOKEN_INVALID"
	TextCodeRefreshTokenReused  = "REFRESH_TOKEN_REUSED"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
)

// ErrTokenExpired is returned when the access token is past its expiry
var ErrTokenExpired = goerrors.New("access token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to parse or verify
var ErrTokenMalformed = goerrors.New("access token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMissing is returned when the request has no access cookie
var ErrTokenMissing = goerrors.New("access token missing", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrWrongAudience is returned for tokens minted for another domain
var ErrWrongAudience = goerrors.New("access token issued for another domain", goerrors.CategoryAuth).
	WithTextCode(TextCodeWrongAudience).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned for unknown identifiers or bad passwords
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenInvalid is returned for refresh tokens that are unknown or no longer valid
var ErrRefreshTokenInvalid = goerrors.New("refresh token invalid or expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenReused is returned when a rotated refresh token is presented again
var ErrRefreshTokenReused = goerrors.New("refresh token reuse detected", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenReused).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned when a token subject has no account
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrEmptyPassword is returned when hashing an empty password
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)
