package auth

import (
	"context"
	"errors"

	"github.com/mkowalczyk/svchub/internal/domain/user"
	"github.com/mkowalczyk/svchub/internal/security"
)

// IdentityClaim is the minimal authenticated-user fact produced after a
// successful credential check. It never carries the password hash or any
// account internals.
type IdentityClaim struct {
	ID    string
	Email string
}

// ErrInvalidCredentials covers both unknown email and wrong password so the
// response cannot distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

// Authenticator validates email+password against stored hashes. Read-only;
// the constant-time comparison is delegated to bcrypt.
type Authenticator struct {
	users UserReader
}

func NewAuthenticator(users UserReader) *Authenticator {
	return &Authenticator{users: users}
}

func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (IdentityClaim, error) {
	u, err := a.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return IdentityClaim{}, ErrInvalidCredentials
		}

		return IdentityClaim{}, err
	}

	err = security.CheckPassword(u.PasswordHash, password)

	if err != nil {
		return IdentityClaim{}, ErrInvalidCredentials
	}

	return IdentityClaim{ID: u.ID, Email: u.Email}, nil
}
