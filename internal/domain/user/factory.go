package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkowalczyk/svchub/internal/security"
)

// New builds a user with the password already hashed. Construction is the
// only way a password enters the model, so a plaintext value can never be
// persisted by accident.
func New(accountID, name, email, password string) (User, error) {
	hash, err := security.HashPassword(password)

	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()

	return User{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetPassword rehashes on every password change.
func (u *User) SetPassword(password string) error {
	hash, err := security.HashPassword(password)

	if err != nil {
		return err
	}

	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()

	return nil
}
