package authapi

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokenModel is the Bun model for rotating refresh tokens. Only the
// SHA-256 hash of a token is stored; tokens issued from the same login share
// a family so a replayed token can revoke the whole chain.
type RefreshTokenModel struct {
	bun.BaseModel `bun:"table:refresh_tokens"`

	ID         string     `bun:"id,pk"`
	FamilyID   string     `bun:"family_id,notnull"`
	Domain     string     `bun:"domain,notnull"`
	Subject    string     `bun:"subject,notnull"`
	TokenHash  string     `bun:"token_hash,notnull,unique"`
	Extended   bool       `bun:"extended,notnull"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull"`
	RevokedAt  *time.Time `bun:"revoked_at"`
	ReplacedBy string     `bun:"replaced_by"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
}

// Active reports whether the token can still be exchanged at now.
func (m *RefreshTokenModel) Active(now time.Time) bool {
	return m.RevokedAt == nil && now.Before(m.ExpiresAt)
}

// RefreshTokenRepository stores refresh tokens using Bun.
type RefreshTokenRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewRefreshTokenRepository creates a new repository.
func NewRefreshTokenRepository(db *bun.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: time.Now}
}

// WithClock overrides the repository clock.
func (r *RefreshTokenRepository) WithClock(now func() time.Time) *RefreshTokenRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// CreateSchema creates the refresh_tokens table when missing.
func (r *RefreshTokenRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*RefreshTokenModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create refresh_tokens table")
	}
	return nil
}

// Issue starts a new token family for subject and returns the raw token.
func (r *RefreshTokenRepository) Issue(ctx context.Context, domain, subject string, extended bool, ttl time.Duration) (string, *RefreshTokenModel, error) {
	raw, model, err := r.newToken(domain, subject, uuid.NewString(), extended, ttl)
	if err != nil {
		return "", nil, err
	}

	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token")
	}
	return raw, model, nil
}

// Rotate exchanges raw for a new token in the same family. The presented
// token is revoked. Presenting a token that was already rotated revokes the
// whole family and returns ErrRefreshTokenReused.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, domain, raw string, ttlFor func(extended bool) time.Duration) (string, *RefreshTokenModel, error) {
	hash := hashToken(raw)
	now := r.now()

	var (
		nextRaw     string
		next        *RefreshTokenModel
		reusedChain string
	)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(RefreshTokenModel)
		err := tx.NewSelect().
			Model(current).
			Where("token_hash = ?", hash).
			Where("domain = ?", domain).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRefreshTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load refresh token")
		}

		if current.RevokedAt != nil {
			reusedChain = current.FamilyID
			return ErrRefreshTokenReused
		}
		if !current.Active(now) {
			return ErrRefreshTokenInvalid
		}

		nextRaw, next, err = r.newToken(domain, current.Subject, current.FamilyID, current.Extended, ttlFor(current.Extended))
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*RefreshTokenModel)(nil)).
			Set("revoked_at = ?", now).
			Set("replaced_by = ?", next.ID).
			Where("id = ?", current.ID).
			Where("revoked_at IS NULL").
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			reusedChain = current.FamilyID
			return ErrRefreshTokenReused
		}

		if _, err := tx.NewInsert().Model(next).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token")
		}
		return nil
	})

	if err != nil {
		if reusedChain != "" {
			if rerr := r.RevokeFamily(ctx, reusedChain); rerr != nil {
				return "", nil, rerr
			}
		}
		return "", nil, err
	}

	return nextRaw, next, nil
}

// Revoke revokes the token family raw belongs to. Unknown tokens are ignored.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, domain, raw string) error {
	current := new(RefreshTokenModel)
	err := r.db.NewSelect().
		Model(current).
		Where("token_hash = ?", hashToken(raw)).
		Where("domain = ?", domain).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load refresh token")
	}
	return r.RevokeFamily(ctx, current.FamilyID)
}

// RevokeFamily revokes every active token of a family.
func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := r.db.NewUpdate().
		Model((*RefreshTokenModel)(nil)).
		Set("revoked_at = ?", r.now()).
		Where("family_id = ?", familyID).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token family")
	}
	return nil
}

// Find returns the stored token for raw.
func (r *RefreshTokenRepository) Find(ctx context.Context, domain, raw string) (*RefreshTokenModel, error) {
	model := new(RefreshTokenModel)
	err := r.db.NewSelect().
		Model(model).
		Where("token_hash = ?", hashToken(raw)).
		Where("domain = ?", domain).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load refresh token")
	}
	return model, nil
}

func (r *RefreshTokenRepository) newToken(domain, subject, familyID string, extended bool, ttl time.Duration) (string, *RefreshTokenModel, error) {
	raw, err := randomToken()
	if err != nil {
		return "", nil, err
	}
	now := r.now()
	return raw, &RefreshTokenModel{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Domain:    domain,
		Subject:   subject,
		TokenHash: hashToken(raw),
		Extended:  extended,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
