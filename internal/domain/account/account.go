package account

import (
	"errors"
	"time"
)

// Account is the tenant boundary. Users and services hang off an account
// via account_id foreign keys; deleting an account cascades to both.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("account not found")
