package catalog

import (
	"time"

	"github.com/google/uuid"
)

func NewService(accountID, name, description string) Service {
	now := time.Now().UTC()

	return Service{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewVersion(serviceID, name, description string) Version {
	now := time.Now().UTC()

	return Version{
		ID:          uuid.NewString(),
		ServiceID:   serviceID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
