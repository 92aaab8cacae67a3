package authapi

import (
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SeedAccount describes an account loaded into a Directory at start-up.
type SeedAccount struct {
	Domain     string         `json:"domain" koanf:"domain"`
	ID         string         `json:"id" koanf:"id"`
	Email      string         `json:"email" koanf:"email"`
	Name       string         `json:"name" koanf:"name"`
	Password   string         `json:"password" koanf:"password"`
	Attributes map[string]any `json:"attributes" koanf:"attributes"`
}

// Validate will run validation rules
func (s SeedAccount) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Domain, validation.Required),
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Password, validation.Required),
	)
}

// Account is an identity known to the auth API.
type Account struct {
	ID           string
	Domain       string
	Email        string
	Name         string
	PasswordHash string
	Attributes   map[string]any
}

// Profile returns the identity payload served by the me endpoint.
func (a Account) Profile() map[string]any {
	profile := make(map[string]any, len(a.Attributes)+4)
	for k, v := range a.Attributes {
		profile[k] = v
	}
	profile["id"] = a.ID
	profile["domain"] = a.Domain
	profile["email"] = a.Email
	profile["name"] = a.Name
	return profile
}

// Directory is an in-memory account store partitioned by domain.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]map[string]Account
	byID    map[string]map[string]Account
}

// NewDirectory hashes the seed passwords with cost and indexes the accounts.
func NewDirectory(cost int, seeds ...SeedAccount) (*Directory, error) {
	d := &Directory{
		byEmail: map[string]map[string]Account{},
		byID:    map[string]map[string]Account{},
	}

	for _, seed := range seeds {
		if err := seed.Validate(); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid seed account").
				WithMetadata(map[string]any{"email": seed.Email, "domain": seed.Domain})
		}

		hash, err := HashPassword(seed.Password, cost)
		if err != nil {
			return nil, err
		}

		id := seed.ID
		if id == "" {
			id = uuid.NewString()
		}

		d.Add(Account{
			ID:           id,
			Domain:       seed.Domain,
			Email:        seed.Email,
			Name:         seed.Name,
			PasswordHash: hash,
			Attributes:   seed.Attributes,
		})
	}
	return d, nil
}

// Add stores account, replacing any account with the same email or id.
func (d *Directory) Add(account Account) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.byEmail[account.Domain] == nil {
		d.byEmail[account.Domain] = map[string]Account{}
		d.byID[account.Domain] = map[string]Account{}
	}
	d.byEmail[account.Domain][normalizeEmail(account.Email)] = account
	d.byID[account.Domain][account.ID] = account
}

// Authenticate checks the password of the account identified by email.
func (d *Directory) Authenticate(domain, email, password string) (Account, error) {
	d.mu.RLock()
	account, ok := d.byEmail[domain][normalizeEmail(email)]
	d.mu.RUnlock()

	if !ok {
		return Account{}, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Lookup returns the account with id in domain.
func (d *Directory) Lookup(domain, id string) (Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	account, ok := d.byID[domain][id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
