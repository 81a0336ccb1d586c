package catalog

import (
	"errors"
	"time"
)

// Service belongs to exactly one account. Cross-account lookups resolve to
// ErrNotFound, never to a forbidden error, so existence is not leaked.
type Service struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Versions []Version `json:"versions,omitempty"`
}

// Version of a service. (service_id, name) is unique.
type Version struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrNotFound             = errors.New("service not found")
	ErrDuplicateVersionName = errors.New("version name already used for this service")
)

// ListFilter carries the optional query knobs for a tenant-scoped listing.
// Page and PageSize arrive already defaulted (1 and 12).
type ListFilter struct {
	Search   string
	Page     int
	PageSize int
}

const DefaultPageSize = 12

// ListResult is one page of matching services plus the paging envelope.
// Total counts every match regardless of the page window.
type ListResult struct {
	Items    []Service
	Total    int
	Page     int
	PageSize int
	LastPage int
}

// LastPage is ceil(total/pageSize); an empty result keeps it at 0.
func LastPage(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}

	return (total + pageSize - 1) / pageSize
}
