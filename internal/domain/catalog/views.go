package catalog

import (
	"sort"
	"time"
)

// View selects which output shape a service is projected into.
type View int

const (
	// ViewListing is the summary shape used by the list endpoint: scalar
	// fields plus a versions summary (count + most recent few), version
	// descriptions omitted.
	ViewListing View = iota
	// ViewFull is the detail shape: scalar fields plus every version
	// including its description.
	ViewFull
)

// RecentVersionsLimit caps the recentVersions slice in the listing view.
const RecentVersionsLimit = 10

type ListingVersion struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionsInfo is the computed versions field of the listing view. Count is
// the true total even when recentVersions is truncated.
type VersionsInfo struct {
	Count          int              `json:"count"`
	RecentVersions []ListingVersion `json:"recentVersions"`
}

type ListingService struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Versions    VersionsInfo `json:"versions"`
}

type FullVersion struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type FullService struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Versions    []FullVersion `json:"versions"`
}

// Project maps a service into the shape named by the view tag. It is a pure
// function: the input is never mutated and projecting twice yields identical
// output. Neither shape carries the owning account.
func Project(s Service, view View) any {
	switch view {
	case ViewFull:
		return ProjectFull(s)
	default:
		return ProjectListing(s)
	}
}

func ProjectListing(s Service) ListingService {
	versions := sortedByRecency(s.Versions)

	recent := make([]ListingVersion, 0, RecentVersionsLimit)

	for i, v := range versions {
		if i == RecentVersionsLimit {
			break
		}

		recent = append(recent, ListingVersion{
			ID:        v.ID,
			Name:      v.Name,
			CreatedAt: v.CreatedAt,
			UpdatedAt: v.UpdatedAt,
		})
	}

	return ListingService{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Versions: VersionsInfo{
			Count:          len(versions),
			RecentVersions: recent,
		},
	}
}

func ProjectFull(s Service) FullService {
	versions := sortedByRecency(s.Versions)

	full := make([]FullVersion, 0, len(versions))

	for _, v := range versions {
		full = append(full, FullVersion{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Description,
			CreatedAt:   v.CreatedAt,
			UpdatedAt:   v.UpdatedAt,
		})
	}

	return FullService{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Versions:    full,
	}
}

// sortedByRecency returns a copy ordered by updated_at descending. The sort
// is stable so versions with equal timestamps keep their relative order.
func sortedByRecency(versions []Version) []Version {
	out := make([]Version, len(versions))
	copy(out, versions)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out
}
